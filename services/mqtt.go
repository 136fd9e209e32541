package services

import (
	"encoding/json"
	"fmt"
	"time"

	"agrosmart/config"
	"agrosmart/models"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const mqttPublishTimeout = 5 * time.Second

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// CommandMessage is the retained payload a node finds on its command topic
type CommandMessage struct {
	ZoneID    string         `json:"zone_id"`
	Command   models.Command `json:"command"`
	CommandTs int64          `json:"command_ts"`
}

// CommandMirror republishes operator commands on MQTT for nodes that subscribe instead of polling
type CommandMirror struct {
	client mqttPublisher
	prefix string
	logger *zap.Logger
}

// NewCommandMirror connects to the broker, retrying with exponential backoff
func NewCommandMirror(cfg *config.Config, logger *zap.Logger) (*CommandMirror, mqtt.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.MQTTBroker))
	opts.SetClientID(fmt.Sprintf("agrosmart-monitor-%s", cfg.ZoneID))
	opts.SetUsername(cfg.MQTTUser)
	opts.SetPassword(cfg.MQTTPass)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Error("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	err := backoff.Retry(func() error {
		token := client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("timed out connecting to %s", cfg.MQTTBroker)
		}
		if err := token.Error(); err != nil {
			logger.Warn("MQTT connect failed", zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithMaxRetries(bo, 4))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return newCommandMirror(client, cfg.MQTTTopicPrefix, logger), client, nil
}

func newCommandMirror(client mqttPublisher, prefix string, logger *zap.Logger) *CommandMirror {
	return &CommandMirror{client: client, prefix: prefix, logger: logger}
}

// CommandTopic is where commands for zoneID are published
func (m *CommandMirror) CommandTopic(zoneID string) string {
	return fmt.Sprintf("%s/%s/command", m.prefix, zoneID)
}

// PublishCommand sends cmd as a retained QoS 1 message
func (m *CommandMirror) PublishCommand(zoneID string, cmd models.Command, sentAt time.Time) error {
	payload, err := json.Marshal(CommandMessage{
		ZoneID:    zoneID,
		Command:   cmd,
		CommandTs: sentAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := m.CommandTopic(zoneID)
	token := m.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	m.logger.Debug("Mirrored command to MQTT",
		zap.String("topic", topic),
		zap.String("command", string(cmd)))
	return nil
}
