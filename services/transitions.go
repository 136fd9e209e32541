package services

import (
	"context"
	"sync"
	"time"

	"agrosmart/models"

	"go.uber.org/zap"
)

// Notifier is told about liveness and advisory changes of a zone
type Notifier interface {
	Notify(ctx context.Context, event models.ZoneEvent) error
}

// TransitionTracker remembers the previous cycle's verdicts and reports what changed
type TransitionTracker struct {
	mu        sync.Mutex
	seen      bool
	liveness  models.Liveness
	advisory  models.Advisory
	offlineAt time.Time
}

// NewTransitionTracker creates a tracker with no history
func NewTransitionTracker() *TransitionTracker {
	return &TransitionTracker{}
}

// Observe compares view with the previous one and returns the resulting events.
// The first observation only sets the baseline.
func (t *TransitionTracker) Observe(view *models.ZoneView) []models.ZoneEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := view.Health.Status
	if !t.seen {
		t.seen = true
		t.liveness = status
		t.advisory = view.Advisory
		if status == models.LivenessOffline {
			t.offlineAt = view.RefreshedAt
		}
		return nil
	}

	var events []models.ZoneEvent

	if status != t.liveness {
		event := models.ZoneEvent{
			Type:      models.EventLivenessChanged,
			ZoneID:    view.ZoneID,
			From:      string(t.liveness),
			To:        string(status),
			LastSeen:  view.Health.LastSeen,
			Timestamp: view.RefreshedAt,
		}
		switch {
		case status == models.LivenessOffline:
			t.offlineAt = view.RefreshedAt
		case t.liveness == models.LivenessOffline && !t.offlineAt.IsZero():
			event.Downtime = view.RefreshedAt.Sub(t.offlineAt)
			t.offlineAt = time.Time{}
		}
		events = append(events, event)
		t.liveness = status
	}

	if view.Advisory != t.advisory {
		events = append(events, models.ZoneEvent{
			Type:      models.EventAdvisoryChanged,
			ZoneID:    view.ZoneID,
			From:      string(t.advisory),
			To:        string(view.Advisory),
			Moisture:  view.Moisture,
			LastSeen:  view.Health.LastSeen,
			Timestamp: view.RefreshedAt,
		})
		t.advisory = view.Advisory
	}

	return events
}

// dispatch sends each event to every notifier; failures are logged and skipped
func dispatch(ctx context.Context, notifiers []Notifier, events []models.ZoneEvent, logger *zap.Logger) {
	for _, event := range events {
		logger.Info("Zone state changed",
			zap.String("zone_id", event.ZoneID),
			zap.String("type", string(event.Type)),
			zap.String("from", event.From),
			zap.String("to", event.To))

		for _, n := range notifiers {
			if err := n.Notify(ctx, event); err != nil {
				logger.Error("Failed to send zone notification",
					zap.String("zone_id", event.ZoneID),
					zap.String("type", string(event.Type)),
					zap.Error(err))
			}
		}
	}
}
