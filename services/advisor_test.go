package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"agrosmart/models"
)

func TestAdvise(t *testing.T) {
	th := models.Thresholds{StartPct: 30, StopPct: 45}

	tests := []struct {
		name     string
		moisture *float64
		expected models.Advisory
	}{
		{"no data", nil, models.AdvisoryNeutral},
		{"29", ptr(29), models.AdvisoryNeedsWater},
		{"29.9", ptr(29.9), models.AdvisoryNeedsWater},
		{"30 lower edge of dead band", ptr(30), models.AdvisoryNeutral},
		{"44", ptr(44), models.AdvisoryNeutral},
		{"44.99", ptr(44.99), models.AdvisoryNeutral},
		{"45", ptr(45), models.AdvisorySufficient},
		{"100", ptr(100), models.AdvisorySufficient},
		{"0", ptr(0), models.AdvisoryNeedsWater},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Advise(tt.moisture, th); got != tt.expected {
				t.Errorf("Advise() = %s, expected %s", got, tt.expected)
			}
		})
	}
}

func TestValidateThresholds(t *testing.T) {
	tests := []struct {
		name    string
		th      models.Thresholds
		wantErr bool
	}{
		{"valid", models.Thresholds{StartPct: 20, StopPct: 50}, false},
		{"defaults", models.DefaultThresholds, false},
		{"inverted", models.Thresholds{StartPct: 50, StopPct: 40}, true},
		{"equal", models.Thresholds{StartPct: 40, StopPct: 40}, true},
		{"start below range", models.Thresholds{StartPct: 4, StopPct: 40}, true},
		{"stop above range", models.Thresholds{StartPct: 30, StopPct: 91}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateThresholds(tt.th)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateThresholds() error = %v, wantErr %v", err, tt.wantErr)
			}
			var verr *ValidationError
			if err != nil && !errors.As(err, &verr) {
				t.Errorf("error %T is not a *ValidationError", err)
			}
		})
	}
}

func TestThresholdServiceUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewThresholdService(store, models.DefaultThresholds, nil)
	svc.now = func() time.Time { return time.UnixMilli(1756708200000) }

	if got := svc.Get(ctx, "Z1"); got != models.DefaultThresholds {
		t.Fatalf("Get() on empty store = %+v, expected defaults", got)
	}

	err := svc.Update(ctx, "Z1", models.Thresholds{StartPct: 50, StopPct: 40})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Update(50, 40) error = %v, expected *ValidationError", err)
	}
	if meta, _ := store.Read(ctx, MetaPath("Z1")); meta != nil {
		t.Fatalf("rejected update was persisted: %v", meta)
	}

	if err := svc.Update(ctx, "Z1", models.Thresholds{StartPct: 20, StopPct: 50}); err != nil {
		t.Fatalf("Update(20, 50) error = %v", err)
	}
	if got := svc.Get(ctx, "Z1"); got != (models.Thresholds{StartPct: 20, StopPct: 50}) {
		t.Errorf("Get() after update = %+v, expected {20 50}", got)
	}

	meta, _ := store.Read(ctx, MetaPath("Z1"))
	if meta[metaUpdatedTsKey] != int64(1756708200000) {
		t.Errorf("updated_ts = %v, expected 1756708200000", meta[metaUpdatedTsKey])
	}

	if err := svc.Update(ctx, "Z1", models.Thresholds{StartPct: 60, StopPct: 55}); err == nil {
		t.Fatal("Update(60, 55) accepted")
	}
	if got := svc.Get(ctx, "Z1"); got != (models.Thresholds{StartPct: 20, StopPct: 50}) {
		t.Errorf("Get() after rejected update = %+v, expected {20 50}", got)
	}
}

func TestThresholdServicePartialMeta(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Put(MetaPath("Z1"), map[string]interface{}{
		metaStartKey: 25.0,
		metaStopKey:  "not a number",
	})
	svc := NewThresholdService(store, models.DefaultThresholds, nil)

	if got := svc.Get(ctx, "Z1"); got != (models.Thresholds{StartPct: 25, StopPct: 45}) {
		t.Errorf("Get() = %+v, expected {25 45}", got)
	}
}

func TestThresholdServiceInconsistentMerge(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]interface{}
	}{
		{"start only above default stop", map[string]interface{}{metaStartKey: 50.0}},
		{"stop only below default start", map[string]interface{}{metaStopKey: 20.0}},
		{"start equals stop", map[string]interface{}{metaStartKey: 40.0, metaStopKey: 40.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			store.Put(MetaPath("Z1"), tt.meta)
			svc := NewThresholdService(store, models.DefaultThresholds, nil)

			th := svc.Get(context.Background(), "Z1")
			if th != models.DefaultThresholds {
				t.Fatalf("Get() = %+v, expected defaults %+v", th, models.DefaultThresholds)
			}
			if got := Advise(ptr(47), th); got != models.AdvisorySufficient {
				t.Errorf("Advise(47) = %s, expected SUFFICIENT", got)
			}
		})
	}
}

func TestThresholdServiceStoreFailure(t *testing.T) {
	svc := NewThresholdService(failingStore{}, models.DefaultThresholds, nil)

	if got := svc.Get(context.Background(), "Z1"); got != models.DefaultThresholds {
		t.Errorf("Get() with failing store = %+v, expected defaults", got)
	}
	if err := svc.Update(context.Background(), "Z1", models.Thresholds{StartPct: 20, StopPct: 50}); err == nil {
		t.Error("Update() with failing store returned nil error")
	}
}

// failingStore simulates an unreachable database
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failingStore) Read(context.Context, string) (map[string]interface{}, error) {
	return nil, errStoreDown
}

func (failingStore) MergeWrite(context.Context, string, map[string]interface{}) error {
	return errStoreDown
}
