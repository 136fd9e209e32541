package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agrosmart/models"

	"go.uber.org/zap"
)

// WebhookNotifier posts zone events to an external alerting endpoint (siren, pager bridge)
type WebhookNotifier struct {
	logger     *zap.Logger
	apiURL     string
	httpClient *http.Client
}

// WebhookPayload is the body posted for every event
type WebhookPayload struct {
	Event     models.ZoneEvent `json:"event"`
	Severity  string           `json:"severity"`
	AlertType string           `json:"alert_type"`
}

// NewWebhookNotifier creates a notifier posting to apiURL
func NewWebhookNotifier(logger *zap.Logger, apiURL string) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		logger: logger,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify sends the event via HTTP POST
func (h *WebhookNotifier) Notify(ctx context.Context, event models.ZoneEvent) error {
	payload := WebhookPayload{
		Event:     event,
		Severity:  eventSeverity(event),
		AlertType: string(event.Type),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/zone-alert", h.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "AgroSmart-Monitor/1.0")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Error("Failed to send webhook alert",
			zap.Error(err),
			zap.String("zone_id", event.ZoneID),
			zap.String("url", endpoint))
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		h.logger.Info("Webhook alert sent",
			zap.String("zone_id", event.ZoneID),
			zap.String("severity", payload.Severity),
			zap.Int("status_code", resp.StatusCode))
		return nil
	}

	h.logger.Error("Webhook returned error",
		zap.String("zone_id", event.ZoneID),
		zap.Int("status_code", resp.StatusCode),
		zap.String("status", resp.Status))
	return fmt.Errorf("webhook error: %s", resp.Status)
}

// eventSeverity ranks an event by the state it moved to
func eventSeverity(event models.ZoneEvent) string {
	switch event.To {
	case string(models.LivenessOffline):
		return "critical"
	case string(models.AdvisoryNeedsWater):
		return "high"
	case string(models.LivenessStale):
		return "medium"
	}
	return "low"
}
