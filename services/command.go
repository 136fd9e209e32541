package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agrosmart/models"

	"go.uber.org/zap"
)

// ErrUnknownCommand is returned for anything other than OPEN, CLOSE or AUTO
var ErrUnknownCommand = errors.New("unknown command")

// CommandPublisher receives a copy of every command written to the store
type CommandPublisher interface {
	PublishCommand(zoneID string, cmd models.Command, sentAt time.Time) error
}

// CommandService writes operator commands for the node to pick up.
// Commands are fire-and-forget; no acknowledgement is tracked.
type CommandService struct {
	store     Store
	publisher CommandPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewCommandService creates a command writer; publisher may be nil
func NewCommandService(store Store, publisher CommandPublisher, logger *zap.Logger) *CommandService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Send stamps cmd with the send time in milliseconds and merges it into the zone record
func (s *CommandService) Send(ctx context.Context, zoneID string, cmd models.Command) (time.Time, error) {
	if !cmd.Valid() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	sentAt := s.now()
	fields := map[string]interface{}{
		zoneCommandKey:   string(cmd),
		zoneCommandTsKey: sentAt.UnixMilli(),
	}
	if err := s.store.MergeWrite(ctx, ZonePath(zoneID), fields); err != nil {
		return time.Time{}, fmt.Errorf("error writing command: %w", err)
	}

	s.logger.Info("Command sent",
		zap.String("zone_id", zoneID),
		zap.String("command", string(cmd)),
		zap.Int64("command_ts", sentAt.UnixMilli()))

	if s.publisher != nil {
		if err := s.publisher.PublishCommand(zoneID, cmd, sentAt); err != nil {
			s.logger.Warn("Failed to mirror command",
				zap.String("zone_id", zoneID),
				zap.String("command", string(cmd)),
				zap.Error(err))
		}
	}

	return sentAt, nil
}
