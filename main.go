package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"agrosmart/config"
	"agrosmart/log"
	"agrosmart/models"
	"agrosmart/services"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.GetInstance().Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize structured logger
	log.Configure(cfg.LogLevel, cfg.LogDevelopment)
	logger := log.GetInstance()
	defer logger.Sync()

	logger.Info("Configuration loaded", zap.Any("config", cfg.Redacted()))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firebaseStore, err := services.InitFirebase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase store", zap.Error(err))
	}
	defer firebaseStore.Close()

	store := services.NewBreakerStore(firebaseStore, cfg.BreakerFailures, cfg.BreakerOpenFor, cfg.StoreTimeout, logger)
	defaults := models.Thresholds{StartPct: cfg.DefaultStartPct, StopPct: cfg.DefaultStopPct}
	thresholds := services.NewThresholdService(store, defaults, logger)

	// Optional outputs
	var notifiers []services.Notifier
	var telegram *services.TelegramNotifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		telegram, err = services.NewTelegramNotifier(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
		}
		notifiers = append(notifiers, telegram)
	}

	if cfg.RabbitMQURL != "" {
		rabbit, err := services.NewRabbitMQNotifier(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ notifier", zap.Error(err))
		}
		defer rabbit.Close()
		notifiers = append(notifiers, rabbit)
	}

	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, services.NewWebhookNotifier(logger, cfg.AlertWebhookURL))
		logger.Info("Webhook notifier initialized", zap.String("url", cfg.AlertWebhookURL))
	}

	var publisher services.CommandPublisher
	if cfg.MQTTBroker != "" {
		mirror, client, err := services.NewCommandMirror(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize MQTT command mirror", zap.Error(err))
		}
		defer client.Disconnect(250)
		publisher = mirror
	}

	commands := services.NewCommandService(store, publisher, logger)
	monitor := services.NewZoneMonitor(
		store,
		thresholds,
		services.NewLivenessClassifier(cfg.HeartbeatAge(), cfg.StaleAge()),
		services.MonitorOptions{
			ZoneID:       cfg.ZoneID,
			LogLimit:     cfg.LogLimit,
			PollInterval: cfg.PollInterval,
			Location:     cfg.Location(),
		},
		logger,
		notifiers...,
	)

	api := services.NewAPI(monitor, commands, thresholds, store, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if telegram != nil {
		if err := telegram.SendStartupMessage(cfg.ZoneID); err != nil {
			logger.Warn("Failed to send startup message", zap.Error(err))
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		logger.Info("HTTP API listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("AgroSmart monitoring service started",
		zap.String("zone_id", cfg.ZoneID),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("heartbeat_seconds", cfg.HeartbeatSeconds),
		zap.Int("stale_seconds", cfg.StaleSeconds),
		zap.Int("notifiers", len(notifiers)),
	)

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping services")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}

	wg.Wait()
	logger.Info("AgroSmart monitoring service stopped")
}
