package models

import (
	"time"
)

// MoistureSource reports which telemetry field fed the moisture KPI
type MoistureSource string

const (
	MoistureFromSoilProbe   MoistureSource = "soil_probe"
	MoistureFromAirHumidity MoistureSource = "air_humidity"
	MoistureUnavailable     MoistureSource = "none"
)

// Label returns the display label for the moisture KPI
func (s MoistureSource) Label() string {
	switch s {
	case MoistureFromSoilProbe:
		return "Soil moisture (%)"
	case MoistureFromAirHumidity:
		return "Humidity / Moisture (%)"
	default:
		return "Moisture (%)"
	}
}

// Reading is one telemetry sample from the sensor node.
// Nil fields were not reported and must stay nil.
type Reading struct {
	Time            time.Time `json:"time"`
	SoilMoisturePct *float64  `json:"soil_moisture_pct"`
	AirHumidityPct  *float64  `json:"air_humidity_pct"`
	TemperatureC    *float64  `json:"temperature_c"`
}

// Moisture returns the KPI moisture value: soil probe first, air humidity as a proxy
func (r Reading) Moisture() (*float64, MoistureSource) {
	if r.SoilMoisturePct != nil {
		return r.SoilMoisturePct, MoistureFromSoilProbe
	}
	if r.AirHumidityPct != nil {
		return r.AirHumidityPct, MoistureFromAirHumidity
	}
	return nil, MoistureUnavailable
}

// Series is a time-ordered, size-bounded run of readings
type Series []Reading

// Latest returns the newest reading in the series
func (s Series) Latest() (Reading, bool) {
	if len(s) == 0 {
		return Reading{}, false
	}
	return s[len(s)-1], true
}

// ValveUnknown is reported when the node has not published a valve state
const ValveUnknown = "UNKNOWN"

// LatestSnapshot is the newest known state of a zone
type LatestSnapshot struct {
	Latest     *Reading   `json:"latest"`
	ValveState string     `json:"valve_state"`
	Mode       Command    `json:"mode"`
	CommandAt  *time.Time `json:"command_at"`
}

// LastSeen formats the latest reading time for display
func (s LatestSnapshot) LastSeen() string {
	if s.Latest == nil {
		return "—"
	}
	return s.Latest.Time.Format("2006-01-02 15:04:05")
}
