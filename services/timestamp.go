package services

import (
	"math"
	"strconv"
	"strings"
	"time"

	"agrosmart/models"
)

// millisecondCutoff separates epoch seconds from epoch milliseconds by magnitude.
// Seconds values above it would be dates after ~33700 CE.
const millisecondCutoff = 1e12

// Calendar bounds for a resolvable instant: 0001-01-01 to 9999-12-31 UTC
const (
	minUnixSeconds = -62135596800
	maxUnixSeconds = 253402300799
)

// NormalizeTimestamp resolves a raw store timestamp to an instant in loc.
// The boolean is false when the value cannot be resolved; it never substitutes the current time.
func NormalizeTimestamp(raw models.RawTimestamp, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	switch raw.Kind {
	case models.RawInstant:
		if raw.Instant.IsZero() {
			return time.Time{}, false
		}
		return raw.Instant.In(loc), true
	case models.RawNumber:
		return epochToTime(raw.Number, loc)
	case models.RawText:
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			return time.Time{}, false
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return time.Time{}, false
		}
		return epochToTime(v, loc)
	default:
		// absent, server placeholder, or unsupported shape
		return time.Time{}, false
	}
}

// NormalizeValue classifies and resolves a loosely-typed store value in one step
func NormalizeValue(v interface{}, loc *time.Location) (time.Time, bool) {
	return NormalizeTimestamp(models.RawTimestampOf(v), loc)
}

func epochToTime(v float64, loc *time.Location) (time.Time, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}

	var t time.Time
	if v > millisecondCutoff {
		if v/1000 > maxUnixSeconds {
			return time.Time{}, false
		}
		whole := math.Floor(v)
		frac := v - whole
		t = time.UnixMilli(int64(whole)).Add(time.Duration(math.Round(frac * float64(time.Millisecond))))
	} else {
		if v < minUnixSeconds || v > maxUnixSeconds {
			return time.Time{}, false
		}
		whole := math.Floor(v)
		frac := v - whole
		t = time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second))))
	}

	return t.UTC().In(loc), true
}
