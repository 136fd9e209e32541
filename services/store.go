package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Store is the hierarchical key-value database shared with the sensor node
type Store interface {
	// Read returns the mapping stored at path, or nil when nothing is there
	Read(ctx context.Context, path string) (map[string]interface{}, error)
	// MergeWrite atomically sets only the given fields at path
	MergeWrite(ctx context.Context, path string, fields map[string]interface{}) error
}

// ZonePath is the node holding the latest readings, valve state and pending command
func ZonePath(zoneID string) string { return "/zones/" + zoneID }

// LogsPath is the node holding the timestamped reading history
func LogsPath(zoneID string) string { return "/logs/" + zoneID }

// MetaPath is the node holding the persisted thresholds
func MetaPath(zoneID string) string { return "/meta/" + zoneID }

// MemoryStore is an in-process Store, used by tests and dry runs
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]interface{}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]interface{})}
}

func (m *MemoryStore) Read(ctx context.Context, path string) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.data[cleanPath(path)]
	if !ok {
		return nil, nil
	}
	return copyMap(node), nil
}

func (m *MemoryStore) MergeWrite(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := cleanPath(path)
	node, ok := m.data[key]
	if !ok {
		node = make(map[string]interface{}, len(fields))
		m.data[key] = node
	}
	for k, v := range fields {
		node[k] = copyValue(v)
	}
	return nil
}

// Put replaces the whole mapping at path
func (m *MemoryStore) Put(path string, value map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[cleanPath(path)] = copyMap(value)
}

func cleanPath(path string) string {
	return "/" + strings.Trim(path, "/")
}

// copyMap deep-copies nested mappings so callers never share store data
func copyMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// BreakerStore guards a Store with a circuit breaker and a per-call timeout.
// While the breaker is open calls fail fast with gobreaker.ErrOpenState.
type BreakerStore struct {
	next    Store
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewBreakerStore wraps next; the breaker opens after failures consecutive errors for openFor
func NewBreakerStore(next Store, failures int, openFor, timeout time.Duration, logger *zap.Logger) *BreakerStore {
	if failures < 1 {
		failures = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "store",
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BreakerStore{next: next, cb: cb, timeout: timeout}
}

// An empty path would address the database root
var errEmptyPath = errors.New("empty store path")

func (b *BreakerStore) Read(ctx context.Context, path string) (map[string]interface{}, error) {
	if strings.Trim(path, "/") == "" {
		return nil, errEmptyPath
	}
	res, err := b.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := b.callContext(ctx)
		defer cancel()
		return b.next.Read(callCtx, path)
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m, _ := res.(map[string]interface{})
	return m, nil
}

func (b *BreakerStore) MergeWrite(ctx context.Context, path string, fields map[string]interface{}) error {
	if strings.Trim(path, "/") == "" {
		return errEmptyPath
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := b.callContext(ctx)
		defer cancel()
		return nil, b.next.MergeWrite(callCtx, path, fields)
	})
	if err != nil {
		return fmt.Errorf("merge write %s: %w", path, err)
	}
	return nil
}

// State exposes the breaker state for health reporting
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// readOrEmpty reads path and treats any failure as "no data", logging it
func readOrEmpty(ctx context.Context, store Store, path string, logger *zap.Logger) map[string]interface{} {
	data, err := store.Read(ctx, path)
	if err != nil {
		logger.Warn("Store read failed, treating as no data",
			zap.String("path", path),
			zap.Error(err))
		return nil
	}
	return data
}
