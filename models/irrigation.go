package models

import (
	"strings"
	"time"
)

// Command is an operator instruction for the valve controller
type Command string

const (
	CommandOpen  Command = "OPEN"
	CommandClose Command = "CLOSE"
	CommandAuto  Command = "AUTO"
)

// Valid reports whether c is one of the known commands
func (c Command) Valid() bool {
	switch c {
	case CommandOpen, CommandClose, CommandAuto:
		return true
	}
	return false
}

// ParseCommand converts operator input into a Command, ignoring case and surrounding spaces
func ParseCommand(s string) (Command, bool) {
	c := Command(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Thresholds are the AUTO-mode moisture bounds; StartPct must stay below StopPct
type Thresholds struct {
	StartPct int `json:"start_pct"`
	StopPct  int `json:"stop_pct"`
}

// DefaultThresholds is used whenever nothing is persisted for a zone
var DefaultThresholds = Thresholds{StartPct: 30, StopPct: 45}

// Advisory is the irrigation recommendation for the current moisture
type Advisory string

const (
	AdvisoryNeedsWater Advisory = "NEEDS_WATER"
	AdvisorySufficient Advisory = "SUFFICIENT"
	AdvisoryNeutral    Advisory = "NEUTRAL"
)

// Message returns the operator-facing text for the advisory, empty when neutral
func (a Advisory) Message() string {
	switch a {
	case AdvisoryNeedsWater:
		return "Moisture is below start threshold — irrigation may be needed."
	case AdvisorySufficient:
		return "At/above stop threshold — likely sufficient."
	default:
		return ""
	}
}

// ZoneView is everything computed for a zone in one poll cycle
type ZoneView struct {
	ZoneID         string         `json:"zone_id"`
	CycleID        string         `json:"cycle_id"`
	RefreshedAt    time.Time      `json:"refreshed_at"`
	Snapshot       LatestSnapshot `json:"snapshot"`
	Series         Series         `json:"series"`
	Moisture       *float64       `json:"moisture_pct"`
	MoistureSource MoistureSource `json:"moisture_source"`
	MoistureLabel  string         `json:"moisture_label"`
	Health         DeviceHealth   `json:"health"`
	Thresholds     Thresholds     `json:"thresholds"`
	Advisory       Advisory       `json:"advisory"`
	AdvisoryText   string         `json:"advisory_text,omitempty"`
}

// HasData reports whether any telemetry is available for display
func (v *ZoneView) HasData() bool {
	return v.Snapshot.Latest != nil || len(v.Series) > 0
}

// ZoneEventType identifies the kind of state change being reported
type ZoneEventType string

const (
	EventLivenessChanged ZoneEventType = "liveness_changed"
	EventAdvisoryChanged ZoneEventType = "advisory_changed"
)

// ZoneEvent records a change of liveness or advisory between two poll cycles
type ZoneEvent struct {
	Type      ZoneEventType `json:"type"`
	ZoneID    string        `json:"zone_id"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Moisture  *float64      `json:"moisture_pct,omitempty"`
	LastSeen  *time.Time    `json:"last_seen,omitempty"`
	Downtime  time.Duration `json:"downtime_ns,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
