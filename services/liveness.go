package services

import (
	"fmt"
	"time"

	"agrosmart/models"
)

// Default liveness boundaries
const (
	DefaultHeartbeat = 45 * time.Second
	DefaultStale     = 240 * time.Second
)

// ClassifyLiveness maps the age of the latest reading onto a liveness state.
// hasReading is false when no reading exists at all. Ages equal to a boundary
// fall on the better side of it.
func ClassifyLiveness(age time.Duration, hasReading bool, heartbeat, stale time.Duration) models.Liveness {
	if !hasReading {
		return models.LivenessOffline
	}
	if age < 0 {
		age = 0
	}
	switch {
	case age <= heartbeat:
		return models.LivenessOnline
	case age <= stale:
		return models.LivenessStale
	default:
		return models.LivenessOffline
	}
}

// LivenessClassifier holds the configured boundaries for a zone
type LivenessClassifier struct {
	heartbeat time.Duration
	stale     time.Duration
}

// NewLivenessClassifier creates a classifier; non-positive values fall back to the defaults
func NewLivenessClassifier(heartbeat, stale time.Duration) *LivenessClassifier {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if stale <= 0 {
		stale = DefaultStale
	}
	return &LivenessClassifier{heartbeat: heartbeat, stale: stale}
}

// Evaluate classifies the latest reading as of now
func (c *LivenessClassifier) Evaluate(latest *models.Reading, now time.Time) models.DeviceHealth {
	if latest == nil {
		return models.DeviceHealth{
			Status:   ClassifyLiveness(0, false, c.heartbeat, c.stale),
			AgeLabel: FormatAge(0, false),
		}
	}

	age := now.Sub(latest.Time)
	if age < 0 {
		age = 0
	}
	lastSeen := latest.Time

	return models.DeviceHealth{
		Status:   ClassifyLiveness(age, true, c.heartbeat, c.stale),
		LastSeen: &lastSeen,
		Age:      &age,
		AgeLabel: FormatAge(age, true),
	}
}

// FormatAge renders the elapsed time since the last reading for display
func FormatAge(age time.Duration, hasReading bool) string {
	if !hasReading {
		return "—"
	}
	if age < 0 {
		age = 0
	}
	secs := int(age / time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", secs)
	}
	return fmt.Sprintf("%dm %02ds ago", secs/60, secs%60)
}
