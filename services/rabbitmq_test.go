package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"agrosmart/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type capturingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (c *capturingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func TestRabbitMQNotifierPublishesEvent(t *testing.T) {
	ch := &capturingChannel{}
	r := &RabbitMQNotifier{exchange: "agrosmart.events", logger: zap.NewNop(), channel: ch}

	event := models.ZoneEvent{
		Type:      models.EventAdvisoryChanged,
		ZoneID:    "Z1",
		From:      "NEUTRAL",
		To:        "NEEDS_WATER",
		Moisture:  ptr(22.5),
		Timestamp: testBase,
	}
	if err := r.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if ch.exchange != "agrosmart.events" || ch.key != "Z1.advisory_changed" {
		t.Errorf("published to %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.ContentType != "application/json" || ch.msg.DeliveryMode != amqp.Persistent {
		t.Errorf("publishing headers = %s/%d", ch.msg.ContentType, ch.msg.DeliveryMode)
	}
	if ch.msg.MessageId == "" {
		t.Error("message id not set")
	}

	var decoded models.ZoneEvent
	if err := json.Unmarshal(ch.msg.Body, &decoded); err != nil {
		t.Fatalf("body is not a zone event: %v", err)
	}
	if decoded.To != "NEEDS_WATER" || decoded.Moisture == nil || *decoded.Moisture != 22.5 {
		t.Errorf("decoded event = %+v", decoded)
	}
}

func TestRabbitMQNotifierErrors(t *testing.T) {
	r := &RabbitMQNotifier{exchange: "x", logger: zap.NewNop()}
	if err := r.Notify(context.Background(), models.ZoneEvent{ZoneID: "Z1"}); err == nil {
		t.Error("Notify() without a channel returned nil error")
	}

	r.channel = &capturingChannel{err: errors.New("channel closed")}
	if err := r.Notify(context.Background(), models.ZoneEvent{ZoneID: "Z1"}); err == nil {
		t.Error("Notify() returned nil error on publish failure")
	}
}

func TestDialWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		expectErr bool
		attempts  int
	}{
		{"first attempt", 0, false, 1},
		{"recovers before limit", 2, false, 3},
		{"gives up at limit", 10, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			dial := func(url string) (*amqp.Connection, error) {
				attempts++
				if url != "amqp://broker" {
					t.Errorf("dialled %q", url)
				}
				if attempts <= tt.failures {
					return nil, errors.New("connection refused")
				}
				return &amqp.Connection{}, nil
			}

			conn, err := dialWithRetry("amqp://broker", dial, time.Millisecond, 3, zap.NewNop())
			if tt.expectErr {
				if err == nil || conn != nil {
					t.Errorf("dialWithRetry() = %v, %v; expected an error", conn, err)
				}
			} else if err != nil || conn == nil {
				t.Errorf("dialWithRetry() = %v, %v", conn, err)
			}
			if attempts != tt.attempts {
				t.Errorf("dial called %d times, expected %d", attempts, tt.attempts)
			}
		})
	}
}
