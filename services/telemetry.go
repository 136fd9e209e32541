package services

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"agrosmart/models"
)

// Accepted key names per telemetry field, checked in order; first present key wins.
// Renamed firmware fields go at the end of the matching list.
var (
	timestampKeys    = []string{"ts"}
	soilMoistureKeys = []string{"soil_pct", "soil_moisture_pct"}
	humidityKeys     = []string{"humidity_pct", "moisture_pct"}
	temperatureKeys  = []string{"temp_c"}
)

// Zone record keys outside the telemetry fields
const (
	zoneLastSeenKey   = "last_ts"
	zoneValveStateKey = "valve_state"
	zoneCommandKey    = "command"
	zoneCommandTsKey  = "command_ts"
)

// BuildReading maps one raw record onto a Reading using timeKeys for its time.
// The boolean is false when the record has no resolvable time.
func BuildReading(record map[string]interface{}, timeKeys []string, loc *time.Location) (models.Reading, bool) {
	if record == nil {
		return models.Reading{}, false
	}

	ts, ok := NormalizeValue(firstPresent(record, timeKeys), loc)
	if !ok {
		return models.Reading{}, false
	}

	return models.Reading{
		Time:            ts,
		SoilMoisturePct: firstNumber(record, soilMoistureKeys),
		AirHumidityPct:  firstNumber(record, humidityKeys),
		TemperatureC:    firstNumber(record, temperatureKeys),
	}, true
}

// BuildSeries turns the raw /logs collection into an ascending series holding at most limit readings.
// Records without a resolvable time are dropped. A limit of zero or less keeps everything.
func BuildSeries(records map[string]interface{}, limit int, loc *time.Location) models.Series {
	if len(records) == 0 {
		return models.Series{}
	}

	// Iterate keys in order so equal timestamps keep a stable, repeatable order
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	series := make(models.Series, 0, len(records))
	for _, k := range keys {
		record, ok := records[k].(map[string]interface{})
		if !ok {
			continue
		}
		if reading, ok := BuildReading(record, timestampKeys, loc); ok {
			series = append(series, reading)
		}
	}

	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Time.Before(series[j].Time)
	})

	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}

	return series
}

// BuildSnapshot derives the latest zone state from the /zones record and the series.
// The latest reading is whichever of the zone record and the newest log entry is more recent.
func BuildSnapshot(zone map[string]interface{}, series models.Series, loc *time.Location) models.LatestSnapshot {
	snapshot := models.LatestSnapshot{
		ValveState: models.ValveUnknown,
		Mode:       models.CommandAuto,
	}

	if zone != nil {
		if v, ok := zone[zoneValveStateKey].(string); ok && strings.TrimSpace(v) != "" {
			snapshot.ValveState = strings.TrimSpace(v)
		}
		if v, ok := zone[zoneCommandKey].(string); ok {
			if cmd, valid := models.ParseCommand(v); valid {
				snapshot.Mode = cmd
			}
		}
		if at, ok := NormalizeValue(zone[zoneCommandTsKey], loc); ok {
			snapshot.CommandAt = &at
		}
		if reading, ok := BuildReading(zone, []string{zoneLastSeenKey}, loc); ok {
			snapshot.Latest = &reading
		}
	}

	if last, ok := series.Latest(); ok {
		if snapshot.Latest == nil || last.Time.After(snapshot.Latest.Time) {
			snapshot.Latest = &last
		}
	}

	return snapshot
}

func firstPresent(record map[string]interface{}, keys []string) interface{} {
	for _, k := range keys {
		if v, ok := record[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstNumber returns the first key in keys holding a usable number
func firstNumber(record map[string]interface{}, keys []string) *float64 {
	for _, k := range keys {
		if f, ok := toFloat(record[k]); ok {
			return &f
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
