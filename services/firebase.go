package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agrosmart/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FirebaseStore is the Store backed by Firebase Realtime Database
type FirebaseStore struct {
	client *db.Client
	logger *zap.Logger
}

var (
	firebaseOnce     sync.Once
	firebaseInstance *FirebaseStore
	firebaseErr      error
)

// InitFirebase connects to the Realtime Database once per process.
// Later calls return the first result, whatever config they pass.
func InitFirebase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*FirebaseStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	firebaseOnce.Do(func() {
		firebaseInstance, firebaseErr = newFirebaseStore(ctx, cfg, logger)
	})
	return firebaseInstance, firebaseErr
}

func newFirebaseStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*FirebaseStore, error) {
	if cfg.FirebaseDbUrl == "" || cfg.FirebaseServiceAccountJSON == "" {
		return nil, fmt.Errorf("firebase configuration is required")
	}

	// Parse the service account JSON from environment variable
	serviceAccountJSON := []byte(cfg.FirebaseServiceAccountJSON)

	conf := &firebase.Config{
		DatabaseURL: cfg.FirebaseDbUrl,
	}

	opt := option.WithCredentialsJSON(serviceAccountJSON)
	app, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	fs := &FirebaseStore{
		client: client,
		logger: logger,
	}

	if err := fs.testConnection(ctx, cfg.ZoneID); err != nil {
		logger.Error("Firebase connection test failed", zap.Error(err))
		return nil, fmt.Errorf("firebase connection test failed: %w", err)
	}

	return fs, nil
}

// testConnection reads the zone's threshold node with exponential backoff
func (fs *FirebaseStore) testConnection(ctx context.Context, zoneID string) error {
	const maxRetries = 3
	attempt := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		attempt++
		fs.logger.Info("Testing Firebase connection", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		var data interface{}
		err := fs.client.NewRef(MetaPath(zoneID)).Get(ctx, &data)
		if err == nil {
			fs.logger.Info("Firebase connection successful")
			return nil
		}

		fs.logger.Warn("Firebase connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries-1), ctx))
}

// Read fetches the node at path. Non-object nodes are reported as malformed.
func (fs *FirebaseStore) Read(ctx context.Context, path string) (map[string]interface{}, error) {
	var data interface{}
	if err := fs.client.NewRef(path).Get(ctx, &data); err != nil {
		return nil, fmt.Errorf("error getting %s: %w", path, err)
	}
	if data == nil {
		return nil, nil
	}
	m, ok := data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("malformed node at %s: expected object, got %T", path, data)
	}
	return m, nil
}

// MergeWrite sets only the given children of path in a single update
func (fs *FirebaseStore) MergeWrite(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := fs.client.NewRef(path).Update(ctx, fields); err != nil {
		return fmt.Errorf("error updating %s: %w", path, err)
	}
	fs.logger.Debug("Firebase node updated",
		zap.String("path", path),
		zap.Int("field_count", len(fields)))
	return nil
}

// Close closes the Firebase connection
func (fs *FirebaseStore) Close() error {
	fs.logger.Info("Closing Firebase store")
	// Firebase client doesn't require explicit closing but we log it
	return nil
}
