package services

import (
	"context"
	"sync"
	"time"

	"agrosmart/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MonitorOptions configures a ZoneMonitor
type MonitorOptions struct {
	ZoneID       string
	LogLimit     int
	PollInterval time.Duration
	Location     *time.Location
}

// ZoneMonitor runs the poll cycle for one zone: read, normalize, classify, advise
type ZoneMonitor struct {
	store      Store
	thresholds *ThresholdService
	liveness   *LivenessClassifier
	tracker    *TransitionTracker
	notifiers  []Notifier
	opts       MonitorOptions
	logger     *zap.Logger
	now        func() time.Time

	mu   sync.RWMutex
	last *models.ZoneView
}

// NewZoneMonitor wires the monitor; notifiers may be empty
func NewZoneMonitor(store Store, thresholds *ThresholdService, liveness *LivenessClassifier, opts MonitorOptions, logger *zap.Logger, notifiers ...Notifier) *ZoneMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &ZoneMonitor{
		store:      store,
		thresholds: thresholds,
		liveness:   liveness,
		tracker:    NewTransitionTracker(),
		notifiers:  notifiers,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// ZoneID returns the monitored zone
func (m *ZoneMonitor) ZoneID() string {
	return m.opts.ZoneID
}

// Refresh runs one poll cycle and returns its view.
// Store failures degrade to "no data"; the cycle itself never fails.
func (m *ZoneMonitor) Refresh(ctx context.Context) *models.ZoneView {
	cycleID := uuid.NewString()
	logger := m.logger.With(zap.String("zone_id", m.opts.ZoneID), zap.String("cycle_id", cycleID))

	zone := readOrEmpty(ctx, m.store, ZonePath(m.opts.ZoneID), logger)
	logs := readOrEmpty(ctx, m.store, LogsPath(m.opts.ZoneID), logger)
	th := m.thresholds.Get(ctx, m.opts.ZoneID)

	series := BuildSeries(logs, m.opts.LogLimit, m.opts.Location)
	snapshot := BuildSnapshot(zone, series, m.opts.Location)

	now := m.now().In(m.opts.Location)
	view := &models.ZoneView{
		ZoneID:      m.opts.ZoneID,
		CycleID:     cycleID,
		RefreshedAt: now,
		Snapshot:    snapshot,
		Series:      series,
		Thresholds:  th,
		Health:      m.liveness.Evaluate(snapshot.Latest, now),
	}

	view.MoistureSource = models.MoistureUnavailable
	if snapshot.Latest != nil {
		view.Moisture, view.MoistureSource = snapshot.Latest.Moisture()
	}
	view.MoistureLabel = view.MoistureSource.Label()
	view.Advisory = Advise(view.Moisture, th)
	view.AdvisoryText = view.Advisory.Message()

	logger.Debug("Poll cycle complete",
		zap.Int("series_len", len(series)),
		zap.String("liveness", string(view.Health.Status)),
		zap.String("advisory", string(view.Advisory)),
		zap.String("moisture_source", string(view.MoistureSource)))

	m.mu.Lock()
	m.last = view
	m.mu.Unlock()

	return view
}

// Last returns the view from the most recent cycle, or nil before the first one
func (m *ZoneMonitor) Last() *models.ZoneView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run polls until ctx is cancelled, forwarding liveness and advisory changes to the notifiers
func (m *ZoneMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	m.logger.Info("Starting zone polling",
		zap.String("zone_id", m.opts.ZoneID),
		zap.Duration("interval", m.opts.PollInterval))

	m.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Zone polling stopped", zap.String("zone_id", m.opts.ZoneID))
			return
		case <-ticker.C:
			m.cycle(ctx)
		}
	}
}

func (m *ZoneMonitor) cycle(ctx context.Context) {
	view := m.Refresh(ctx)
	if ctx.Err() != nil {
		return
	}
	dispatch(ctx, m.notifiers, m.tracker.Observe(view), m.logger)
}
