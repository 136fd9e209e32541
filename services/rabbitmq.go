package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"agrosmart/config"
	"agrosmart/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQNotifier publishes zone events as JSON to a topic exchange.
// Routing keys are "<zone>.<event type>".
type RabbitMQNotifier struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	channel   amqpPublisher
	isClosing bool
}

// NewRabbitMQNotifier connects and declares the events exchange
func NewRabbitMQNotifier(cfg *config.Config, logger *zap.Logger) (*RabbitMQNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RabbitMQNotifier{
		url:      cfg.RabbitMQURL,
		exchange: cfg.RabbitMQExchange,
		logger:   logger,
	}

	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

// connect dials with retry, opens a channel and declares the exchange
func (r *RabbitMQNotifier) connect() error {
	r.logger.Info("Connecting to RabbitMQ", zap.String("exchange", r.exchange))

	const maxRetries = 5
	conn, err := dialWithRetry(r.url, amqp.Dial, 2*time.Second, maxRetries, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		r.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.channel = ch
	r.mu.Unlock()

	r.logger.Info("Connected to RabbitMQ", zap.String("exchange", r.exchange))

	go r.handleReconnect(conn)
	return nil
}

// dialWithRetry dials with exponential backoff, giving up after maxRetries attempts
func dialWithRetry(url string, dial func(string) (*amqp.Connection, error), initial time.Duration, maxRetries int, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	attempt := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial

	err := backoff.Retry(func() error {
		attempt++
		c, err := dial(url)
		if err != nil {
			logger.Warn("Failed to connect to RabbitMQ",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxRetries),
				zap.Error(err))
			return err
		}
		conn = c
		return nil
	}, backoff.WithMaxRetries(bo, uint64(maxRetries-1)))
	return conn, err
}

// handleReconnect redials after the broker drops the connection
func (r *RabbitMQNotifier) handleReconnect(conn *amqp.Connection) {
	closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))

	r.mu.Lock()
	closing := r.isClosing
	r.mu.Unlock()
	if closing {
		r.logger.Info("RabbitMQ connection closed gracefully")
		return
	}

	r.logger.Error("RabbitMQ connection lost", zap.Error(closeErr))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	_ = backoff.RetryNotify(r.connect, bo, func(err error, next time.Duration) {
		r.logger.Error("Failed to reconnect", zap.Error(err), zap.Duration("retry_in", next))
	})
	r.logger.Info("Successfully reconnected to RabbitMQ")
}

// Notify publishes the event; it fails fast while disconnected
func (r *RabbitMQNotifier) Notify(ctx context.Context, event models.ZoneEvent) error {
	key, msg, err := eventPublishing(event)
	if err != nil {
		return err
	}

	r.mu.Lock()
	ch := r.channel
	r.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("rabbitmq channel not open")
	}

	if err := ch.PublishWithContext(ctx,
		r.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		msg,
	); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	r.logger.Debug("Published zone event to RabbitMQ",
		zap.String("zone_id", event.ZoneID),
		zap.String("routing_key", key),
		zap.String("message_id", msg.MessageId))
	return nil
}

func eventPublishing(event models.ZoneEvent) (string, amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("failed to marshal zone event: %w", err)
	}
	return event.ZoneID + "." + string(event.Type), amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
	}, nil
}

// Close gracefully closes the RabbitMQ connection
func (r *RabbitMQNotifier) Close() error {
	r.mu.Lock()
	r.isClosing = true
	conn := r.conn
	r.mu.Unlock()

	r.logger.Info("Closing RabbitMQ connection")
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		r.logger.Error("Error closing connection", zap.Error(err))
		return err
	}
	r.logger.Info("RabbitMQ connection closed")
	return nil
}
