package models

import (
	"encoding/json"
	"time"
)

// RawTimestampKind identifies which shape a raw timestamp arrived in
type RawTimestampKind int

const (
	// RawAbsent is a missing or null timestamp
	RawAbsent RawTimestampKind = iota
	// RawNumber is a numeric epoch value in seconds or milliseconds
	RawNumber
	// RawText is a numeric epoch value encoded as text
	RawText
	// RawServerValue is an unresolved Firebase server value such as {".sv":"timestamp"}
	RawServerValue
	// RawInstant is an already resolved point in time
	RawInstant
	// RawUnsupported is any other value shape (bool, list, arbitrary object)
	RawUnsupported
)

func (k RawTimestampKind) String() string {
	switch k {
	case RawAbsent:
		return "absent"
	case RawNumber:
		return "number"
	case RawText:
		return "text"
	case RawServerValue:
		return "server_value"
	case RawInstant:
		return "instant"
	default:
		return "unsupported"
	}
}

// serverValueKey marks a placeholder the database replaces on write
const serverValueKey = ".sv"

// RawTimestamp is a timestamp exactly as read from the store, before normalization.
// Only the field matching Kind is meaningful.
type RawTimestamp struct {
	Kind    RawTimestampKind
	Number  float64
	Text    string
	Instant time.Time
}

// RawTimestampOf classifies a loosely-typed value decoded from the store
func RawTimestampOf(v interface{}) RawTimestamp {
	switch t := v.(type) {
	case nil:
		return RawTimestamp{Kind: RawAbsent}
	case RawTimestamp:
		return t
	case time.Time:
		return RawTimestamp{Kind: RawInstant, Instant: t}
	case *time.Time:
		if t == nil {
			return RawTimestamp{Kind: RawAbsent}
		}
		return RawTimestamp{Kind: RawInstant, Instant: *t}
	case string:
		return RawTimestamp{Kind: RawText, Text: t}
	case json.Number:
		return RawTimestamp{Kind: RawText, Text: t.String()}
	case float64:
		return RawTimestamp{Kind: RawNumber, Number: t}
	case float32:
		return RawTimestamp{Kind: RawNumber, Number: float64(t)}
	case int:
		return RawTimestamp{Kind: RawNumber, Number: float64(t)}
	case int32:
		return RawTimestamp{Kind: RawNumber, Number: float64(t)}
	case int64:
		return RawTimestamp{Kind: RawNumber, Number: float64(t)}
	case uint32:
		return RawTimestamp{Kind: RawNumber, Number: float64(t)}
	case uint64:
		return RawTimestamp{Kind: RawNumber, Number: float64(t)}
	case map[string]interface{}:
		if _, ok := t[serverValueKey]; ok {
			return RawTimestamp{Kind: RawServerValue}
		}
		return RawTimestamp{Kind: RawUnsupported}
	default:
		return RawTimestamp{Kind: RawUnsupported}
	}
}
