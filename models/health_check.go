package models

import (
	"time"
)

// Liveness represents how recently the sensor node was heard from
type Liveness string

const (
	LivenessOnline  Liveness = "ONLINE"
	LivenessStale   Liveness = "STALE"
	LivenessOffline Liveness = "OFFLINE"
)

// GetStatusEmoji returns the indicator shown next to the liveness state
func (l Liveness) GetStatusEmoji() string {
	switch l {
	case LivenessOnline:
		return "🟢"
	case LivenessStale:
		return "🟡"
	default:
		return "🔴"
	}
}

// DeviceHealth is the liveness verdict for the latest reading of a zone
type DeviceHealth struct {
	Status   Liveness       `json:"status"`
	LastSeen *time.Time     `json:"last_seen"`
	Age      *time.Duration `json:"age_ns"`
	AgeLabel string         `json:"age_label"`
}
