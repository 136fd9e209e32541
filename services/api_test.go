package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agrosmart/models"

	"github.com/sony/gobreaker"
)

type fixedBreaker gobreaker.State

func (b fixedBreaker) State() gobreaker.State { return gobreaker.State(b) }

func newTestAPI(t *testing.T, store *MemoryStore, breaker BreakerReporter) http.Handler {
	t.Helper()
	thresholds := NewThresholdService(store, models.DefaultThresholds, nil)
	monitor := newTestMonitor(store, testBase.Add(10*time.Second))
	return NewAPI(monitor, NewCommandService(store, nil, nil), thresholds, breaker, nil).Router()
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIGetZone(t *testing.T) {
	store := NewMemoryStore()
	store.Put(ZonePath("Z1"), map[string]interface{}{
		"last_ts":     float64(testBase.UnixMilli()),
		"soil_pct":    35.0,
		"valve_state": "CLOSED",
	})
	h := newTestAPI(t, store, nil)

	rec := doRequest(h, http.MethodGet, "/api/v1/zones/Z1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var view models.ZoneView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Health.Status != models.LivenessOnline {
		t.Errorf("liveness = %s, expected ONLINE", view.Health.Status)
	}
	if view.Advisory != models.AdvisoryNeutral {
		t.Errorf("advisory = %s, expected NEUTRAL", view.Advisory)
	}
	if view.Snapshot.ValveState != "CLOSED" {
		t.Errorf("valve state = %s", view.Snapshot.ValveState)
	}
}

func TestAPIUnknownZone(t *testing.T) {
	h := newTestAPI(t, NewMemoryStore(), nil)

	for _, path := range []string{"/api/v1/zones/Z9", "/api/v1/zones/Z9/series", "/api/v1/zones/Z9/thresholds"} {
		if rec := doRequest(h, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, expected 404", path, rec.Code)
		}
	}
}

func TestAPISeriesEmpty(t *testing.T) {
	h := newTestAPI(t, NewMemoryStore(), nil)

	rec := doRequest(h, http.MethodGet, "/api/v1/zones/Z1/series", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %s, expected []", body)
	}
}

func TestAPICommand(t *testing.T) {
	store := NewMemoryStore()
	h := newTestAPI(t, store, nil)

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"open", `{"command":"open"}`, http.StatusAccepted},
		{"unknown", `{"command":"flood"}`, http.StatusBadRequest},
		{"malformed", `{command`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, http.MethodPost, "/api/v1/zones/Z1/command", tt.body)
			if rec.Code != tt.expected {
				t.Errorf("status = %d, expected %d (%s)", rec.Code, tt.expected, rec.Body)
			}
		})
	}

	zone, _ := store.Read(context.Background(), ZonePath("Z1"))
	if zone["command"] != "OPEN" {
		t.Errorf("stored command = %v, expected OPEN", zone["command"])
	}
}

func TestAPIThresholds(t *testing.T) {
	store := NewMemoryStore()
	h := newTestAPI(t, store, nil)

	rec := doRequest(h, http.MethodPut, "/api/v1/zones/Z1/thresholds", `{"start_pct":50,"stop_pct":40}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid PUT status = %d, expected 422", rec.Code)
	}
	var errResp errorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &errResp)
	if errResp.Error != "Start threshold must be less than Stop threshold." {
		t.Errorf("error message = %q", errResp.Error)
	}

	rec = doRequest(h, http.MethodPut, "/api/v1/zones/Z1/thresholds", `{"start_pct":20,"stop_pct":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid PUT status = %d (%s)", rec.Code, rec.Body)
	}

	rec = doRequest(h, http.MethodGet, "/api/v1/zones/Z1/thresholds", "")
	var th models.Thresholds
	if err := json.Unmarshal(rec.Body.Bytes(), &th); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if th != (models.Thresholds{StartPct: 20, StopPct: 50}) {
		t.Errorf("thresholds = %+v, expected 20/50", th)
	}
}

func TestAPIHealth(t *testing.T) {
	h := newTestAPI(t, NewMemoryStore(), fixedBreaker(gobreaker.StateOpen))

	rec := doRequest(h, http.MethodGet, "/healthz", "")
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.StoreBreaker != "open" || resp.ZoneID != "Z1" {
		t.Errorf("health = %+v", resp)
	}
}
