package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"agrosmart/models"

	"go.uber.org/zap"
)

// Operator input ranges for thresholds
const (
	MinStartPct = 5
	MaxStartPct = 80
	MinStopPct  = 10
	MaxStopPct  = 90
)

// Keys under /meta/<zone>
const (
	metaStartKey     = "theta_start_pct"
	metaStopKey      = "theta_stop_pct"
	metaUpdatedTsKey = "updated_ts"
)

// Advise applies the start/stop thresholds with a dead band between them.
// Missing moisture is never guessed at.
func Advise(moisture *float64, th models.Thresholds) models.Advisory {
	if moisture == nil {
		return models.AdvisoryNeutral
	}
	switch {
	case *moisture < float64(th.StartPct):
		return models.AdvisoryNeedsWater
	case *moisture >= float64(th.StopPct):
		return models.AdvisorySufficient
	default:
		return models.AdvisoryNeutral
	}
}

// ValidationError is a rejected threshold edit with an operator-facing message
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateThresholds checks a proposed edit before it may be persisted
func ValidateThresholds(th models.Thresholds) error {
	if th.StartPct < MinStartPct || th.StartPct > MaxStartPct {
		return &ValidationError{
			Field:   "start_pct",
			Message: fmt.Sprintf("Start threshold must be between %d and %d.", MinStartPct, MaxStartPct),
		}
	}
	if th.StopPct < MinStopPct || th.StopPct > MaxStopPct {
		return &ValidationError{
			Field:   "stop_pct",
			Message: fmt.Sprintf("Stop threshold must be between %d and %d.", MinStopPct, MaxStopPct),
		}
	}
	if th.StartPct >= th.StopPct {
		return &ValidationError{
			Field:   "start_pct",
			Message: "Start threshold must be less than Stop threshold.",
		}
	}
	return nil
}

// ThresholdService reads and writes the persisted thresholds of a zone
type ThresholdService struct {
	store    Store
	defaults models.Thresholds
	logger   *zap.Logger
	now      func() time.Time
}

// NewThresholdService creates a threshold service; defaults apply when nothing is persisted
func NewThresholdService(store Store, defaults models.Thresholds, logger *zap.Logger) *ThresholdService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThresholdService{
		store:    store,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the persisted thresholds, filling each missing value from the defaults.
// Store failures are logged and also yield the defaults, as does a merged pair
// whose start is not below its stop.
func (s *ThresholdService) Get(ctx context.Context, zoneID string) models.Thresholds {
	meta := readOrEmpty(ctx, s.store, MetaPath(zoneID), s.logger)
	th := thresholdsFromMeta(meta, s.defaults)
	if th.StartPct >= th.StopPct {
		s.logger.Warn("Persisted thresholds inconsistent, using defaults",
			zap.String("zone_id", zoneID),
			zap.Int("start_pct", th.StartPct),
			zap.Int("stop_pct", th.StopPct))
		return s.defaults
	}
	return th
}

// Update validates and persists new thresholds together with an update timestamp.
// Invalid edits return a *ValidationError and leave the store untouched.
func (s *ThresholdService) Update(ctx context.Context, zoneID string, th models.Thresholds) error {
	if err := ValidateThresholds(th); err != nil {
		s.logger.Info("Rejected threshold update",
			zap.String("zone_id", zoneID),
			zap.Int("start_pct", th.StartPct),
			zap.Int("stop_pct", th.StopPct),
			zap.Error(err))
		return err
	}

	fields := map[string]interface{}{
		metaStartKey:     th.StartPct,
		metaStopKey:      th.StopPct,
		metaUpdatedTsKey: s.now().UnixMilli(),
	}
	if err := s.store.MergeWrite(ctx, MetaPath(zoneID), fields); err != nil {
		return fmt.Errorf("error writing thresholds: %w", err)
	}

	s.logger.Info("Thresholds updated",
		zap.String("zone_id", zoneID),
		zap.Int("start_pct", th.StartPct),
		zap.Int("stop_pct", th.StopPct))
	return nil
}

func thresholdsFromMeta(meta map[string]interface{}, defaults models.Thresholds) models.Thresholds {
	th := defaults
	if meta == nil {
		return th
	}
	if v, ok := toFloat(meta[metaStartKey]); ok {
		th.StartPct = int(math.Trunc(v))
	}
	if v, ok := toFloat(meta[metaStopKey]); ok {
		th.StopPct = int(math.Trunc(v))
	}
	return th
}
