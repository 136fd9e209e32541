package main

import (
	"context"
	"testing"
	"time"

	"agrosmart/models"
	"agrosmart/services"

	"go.uber.org/zap"
)

var simStart = time.Date(2025, 9, 1, 6, 0, 0, 0, time.UTC)

func TestNodeAutoHysteresis(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	node := NewNode("Z1", store, 25, 1, zap.NewNop())

	if err := node.Step(ctx, simStart, time.Minute); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !node.valveOpen {
		t.Fatal("valve closed below the start threshold in AUTO")
	}

	// Irrigate through the dead band; the valve must stay open until stop is reached
	now := simStart
	for i := 0; i < 30 && node.valveOpen; i++ {
		now = now.Add(time.Minute)
		before := node.soilPct
		if err := node.Step(ctx, now, time.Minute); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if !node.valveOpen && before < float64(models.DefaultThresholds.StopPct) {
			t.Fatalf("valve closed at %.1f%%, below the stop threshold", before)
		}
	}
	if node.valveOpen {
		t.Error("valve never closed while irrigating")
	}
}

func TestNodeManualCommand(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	store.Put(services.ZonePath("Z1"), map[string]interface{}{"command": "OPEN"})
	node := NewNode("Z1", store, 80, 1, zap.NewNop())

	_ = node.Step(ctx, simStart, time.Minute)
	if !node.valveOpen {
		t.Error("OPEN command ignored at high moisture")
	}

	_ = store.MergeWrite(ctx, services.ZonePath("Z1"), map[string]interface{}{"command": "CLOSE"})
	_ = node.Step(ctx, simStart.Add(time.Minute), time.Minute)
	if node.valveOpen {
		t.Error("CLOSE command ignored")
	}
}

func TestNodeReportsAreReadableByMonitor(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	node := NewNode("Z1", store, 40, 1, zap.NewNop())
	node.humidityOnly = true
	node.secondsTs = true

	for i := 0; i < 5; i++ {
		if err := node.Step(ctx, simStart.Add(time.Duration(i)*10*time.Second), 10*time.Second); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}

	logs, _ := store.Read(ctx, services.LogsPath("Z1"))
	series := services.BuildSeries(logs, 300, time.UTC)
	if len(series) != 5 {
		t.Fatalf("series length = %d, expected 5", len(series))
	}
	if !series[4].Time.Equal(simStart.Add(40 * time.Second)) {
		t.Errorf("latest time = %v", series[4].Time)
	}

	zone, _ := store.Read(ctx, services.ZonePath("Z1"))
	snapshot := services.BuildSnapshot(zone, series, time.UTC)
	if _, source := snapshot.Latest.Moisture(); source != models.MoistureFromAirHumidity {
		t.Errorf("moisture source = %s, expected air_humidity", source)
	}
}
