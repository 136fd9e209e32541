package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrosmart/config"
	"agrosmart/log"
	"agrosmart/services"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var (
	interval     = flag.Duration("interval", 10*time.Second, "Reporting interval")
	startSoil    = flag.Float64("soil", 40, "Initial soil moisture (%)")
	seed         = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	dryRun       = flag.Bool("dry-run", false, "Use an in-memory store instead of Firebase")
	humidityOnly = flag.Bool("humidity-only", false, "Simulate a node without a soil probe")
	secondsTs    = flag.Bool("seconds", false, "Report timestamps in epoch seconds instead of milliseconds")
)

// nodesim stands in for the ESP8266 field controller
func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log.Configure(cfg.LogLevel, true)
	logger := log.GetInstance().With(zap.String("component", "nodesim"))
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store services.Store
	if *dryRun {
		store = services.NewMemoryStore()
	} else {
		fs, err := services.InitFirebase(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase store", zap.Error(err))
		}
		store = fs
	}

	node := NewNode(cfg.ZoneID, store, *startSoil, *seed, logger)
	node.humidityOnly = *humidityOnly
	node.secondsTs = *secondsTs

	if cfg.MQTTBroker != "" {
		client := subscribeCommands(cfg, node, logger)
		defer client.Disconnect(250)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping node")
		cancel()
	}()

	logger.Info("Node simulator started",
		zap.String("zone_id", cfg.ZoneID),
		zap.Duration("interval", *interval),
		zap.Bool("dry_run", *dryRun),
		zap.Bool("humidity_only", *humidityOnly))

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	samples := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("Node simulator stopped", zap.Int("samples", samples))
			return
		case now := <-ticker.C:
			if err := node.Step(ctx, now, *interval); err != nil {
				logger.Error("Failed to report sample", zap.Error(err))
				continue
			}
			samples++
			if samples%30 == 0 {
				logger.Info("Samples reported", zap.Int("count", samples))
			}
		}
	}
}

// subscribeCommands listens on the retained command topic the monitor mirrors to
func subscribeCommands(cfg *config.Config, node *Node, logger *zap.Logger) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.MQTTBroker))
	opts.SetClientID(fmt.Sprintf("agrosmart-node-%s", cfg.ZoneID))
	opts.SetUsername(cfg.MQTTUser)
	opts.SetPassword(cfg.MQTTPass)
	opts.SetAutoReconnect(true)

	topic := fmt.Sprintf("%s/%s/command", cfg.MQTTTopicPrefix, cfg.ZoneID)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))
		token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			var cmd services.CommandMessage
			if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
				logger.Warn("Ignoring malformed command", zap.Error(err))
				return
			}
			logger.Info("Command received over MQTT", zap.String("command", string(cmd.Command)))
			node.SetCommand(cmd.Command)
		})
		if token.Wait() && token.Error() != nil {
			logger.Error("Failed to subscribe", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal("Failed to connect to MQTT broker", zap.Error(token.Error()))
	}
	return client
}
