package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"agrosmart/models"
	"agrosmart/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Node simulates the field controller: it samples the zone, drives the valve and reports to the store
type Node struct {
	zoneID       string
	store        services.Store
	thresholds   *services.ThresholdService
	rng          *rand.Rand
	humidityOnly bool
	secondsTs    bool
	logger       *zap.Logger

	soilPct   float64
	valveOpen bool

	mu      sync.Mutex
	command models.Command
}

// NewNode creates a node starting at soilPct with the valve closed
func NewNode(zoneID string, store services.Store, soilPct float64, seed int64, logger *zap.Logger) *Node {
	return &Node{
		zoneID:     zoneID,
		store:      store,
		thresholds: services.NewThresholdService(store, models.DefaultThresholds, logger),
		rng:        rand.New(rand.NewSource(seed)),
		logger:     logger,
		soilPct:    soilPct,
		command:    models.CommandAuto,
	}
}

// SetCommand applies a command received out of band, e.g. over MQTT
func (n *Node) SetCommand(cmd models.Command) {
	if !cmd.Valid() {
		return
	}
	n.mu.Lock()
	n.command = cmd
	n.mu.Unlock()
}

func (n *Node) currentCommand() models.Command {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.command
}

// Step advances the simulation by dt and reports one sample
func (n *Node) Step(ctx context.Context, now time.Time, dt time.Duration) error {
	n.pollCommand(ctx)
	n.applyValve(ctx)

	// Roughly 1%/min drying, 4%/min while irrigating
	rate := -1.0
	if n.valveOpen {
		rate = 4.0
	}
	n.soilPct += rate*dt.Minutes() + (n.rng.Float64()-0.5)*0.4
	n.soilPct = math.Max(0, math.Min(100, n.soilPct))

	return n.report(ctx, now)
}

func (n *Node) pollCommand(ctx context.Context) {
	zone, err := n.store.Read(ctx, services.ZonePath(n.zoneID))
	if err != nil {
		n.logger.Warn("Failed to read zone record", zap.Error(err))
		return
	}
	if v, ok := zone["command"].(string); ok {
		if cmd, valid := models.ParseCommand(v); valid {
			n.SetCommand(cmd)
		}
	}
}

// applyValve follows manual commands; in AUTO it opens below start and closes at stop
func (n *Node) applyValve(ctx context.Context) {
	switch n.currentCommand() {
	case models.CommandOpen:
		n.valveOpen = true
	case models.CommandClose:
		n.valveOpen = false
	default:
		moisture := n.soilPct
		switch services.Advise(&moisture, n.thresholds.Get(ctx, n.zoneID)) {
		case models.AdvisoryNeedsWater:
			n.valveOpen = true
		case models.AdvisorySufficient:
			n.valveOpen = false
		}
	}
}

func (n *Node) valveState() string {
	if n.valveOpen {
		return "OPEN"
	}
	return "CLOSED"
}

func (n *Node) timestamp(now time.Time) interface{} {
	if n.secondsTs {
		return now.Unix()
	}
	return now.UnixMilli()
}

func (n *Node) report(ctx context.Context, now time.Time) error {
	soil := math.Round(n.soilPct*10) / 10
	humidity := math.Round((55+n.rng.Float64()*20)*10) / 10
	temp := math.Round((24+n.rng.Float64()*8)*10) / 10

	record := map[string]interface{}{
		"ts":           n.timestamp(now),
		"humidity_pct": humidity,
		"temp_c":       temp,
		"valve_state":  n.valveState(),
	}
	if !n.humidityOnly {
		record["soil_pct"] = soil
	}

	key := uuid.NewString()
	if err := n.store.MergeWrite(ctx, services.LogsPath(n.zoneID), map[string]interface{}{key: record}); err != nil {
		return fmt.Errorf("error appending log record: %w", err)
	}

	zone := map[string]interface{}{
		"last_ts":      n.timestamp(now),
		"humidity_pct": humidity,
		"temp_c":       temp,
		"valve_state":  n.valveState(),
	}
	if !n.humidityOnly {
		zone["soil_pct"] = soil
	}
	if err := n.store.MergeWrite(ctx, services.ZonePath(n.zoneID), zone); err != nil {
		return fmt.Errorf("error updating zone record: %w", err)
	}

	n.logger.Debug("Reported sample",
		zap.String("zone_id", n.zoneID),
		zap.String("key", key),
		zap.Float64("soil_pct", soil),
		zap.String("valve_state", n.valveState()),
		zap.String("command", string(n.currentCommand())))
	return nil
}
