package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"agrosmart/config"
	"agrosmart/log"
	"agrosmart/models"
	"agrosmart/services"

	"go.uber.org/zap"
)

var (
	zoneID     = flag.String("zone", "", "Zone to dump (defaults to ZONE_ID)")
	withSeries = flag.Bool("series", false, "Include the full reading series")
	timeout    = flag.Duration("timeout", 30*time.Second, "Overall timeout")
)

// zonedump runs a single poll cycle against Firebase and prints the result as JSON
func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *zoneID != "" {
		cfg.ZoneID = *zoneID
	}

	log.Configure(cfg.LogLevel, cfg.LogDevelopment)
	logger := log.GetInstance()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := services.InitFirebase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase store", zap.Error(err))
	}

	defaults := models.Thresholds{StartPct: cfg.DefaultStartPct, StopPct: cfg.DefaultStopPct}
	monitor := services.NewZoneMonitor(
		store,
		services.NewThresholdService(store, defaults, logger),
		services.NewLivenessClassifier(cfg.HeartbeatAge(), cfg.StaleAge()),
		services.MonitorOptions{
			ZoneID:   cfg.ZoneID,
			LogLimit: cfg.LogLimit,
			Location: cfg.Location(),
		},
		logger,
	)

	view := monitor.Refresh(ctx)
	if !*withSeries {
		view.Series = nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		logger.Fatal("Failed to encode zone view", zap.Error(err))
	}

	fmt.Fprintf(os.Stderr, "%s %s | last seen %s (%s) | %s\n",
		view.Health.Status.GetStatusEmoji(), view.Health.Status,
		view.Snapshot.LastSeen(), view.Health.AgeLabel, view.Advisory)
}
