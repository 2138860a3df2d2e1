package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// webhookRetryIntervals backs off event delivery to downstream consumers.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PushNotifier implements ports.Notifier against the notification
// service's internal HTTP API. Failures are the caller's to log; they
// never affect settlement outcomes.
type PushNotifier struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewPushNotifier creates a new PushNotifier.
func NewPushNotifier(baseURL, apiKey string, httpClient HTTPClient, log zerolog.Logger) *PushNotifier {
	return &PushNotifier{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient, log: log}
}

// Notify posts one push notification for an owner.
func (n *PushNotifier) Notify(ctx context.Context, ownerID uuid.UUID, title, body string) error {
	payload, err := json.Marshal(map[string]string{
		"owner_id": ownerID.String(),
		"title":    title,
		"body":     body,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/internal/notifications", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification service returned %d", resp.StatusCode)
	}
	return nil
}

// eventPayload is the JSON structure delivered to the event sink.
type eventPayload struct {
	EventType string          `json:"event_type"`
	OwnerID   string          `json:"owner_id"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
	Timestamp int64           `json:"timestamp"`
}

// HTTPWebhookDispatcher implements ports.WebhookDispatcher by posting
// signed events to a configured sink with retries.
type HTTPWebhookDispatcher struct {
	sinkURL    string
	secretKey  string
	sigSvc     *HMACSignatureService
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewHTTPWebhookDispatcher creates a new HTTPWebhookDispatcher.
func NewHTTPWebhookDispatcher(sinkURL, secretKey string, sigSvc *HMACSignatureService, httpClient HTTPClient, log zerolog.Logger) *HTTPWebhookDispatcher {
	return &HTTPWebhookDispatcher{
		sinkURL:    sinkURL,
		secretKey:  secretKey,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
	}
}

// Deliver signs and delivers one event. Delivery retries happen in a
// detached goroutine so the caller never blocks on the sink.
func (d *HTTPWebhookDispatcher) Deliver(ctx context.Context, ownerID uuid.UUID, eventType string, payload any) error {
	if d.sinkURL == "" {
		d.log.Debug().Str("event_type", eventType).Msg("no event sink configured, skipping")
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	event := eventPayload{
		EventType: eventType,
		OwnerID:   ownerID.String(),
		Data:      data,
		Signature: d.sigSvc.SignSHA256(d.secretKey, data),
		Timestamp: time.Now().Unix(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	go d.deliverWithRetries(body, eventType)
	return nil
}

func (d *HTTPWebhookDispatcher) deliverWithRetries(body []byte, eventType string) {
	for attempt := 0; attempt <= len(webhookRetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(webhookRetryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, d.sinkURL, bytes.NewReader(body))
		if err != nil {
			d.log.Error().Err(err).Str("event_type", eventType).Msg("webhook: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.httpClient.Do(req)
		if err != nil {
			d.log.Warn().Err(err).Str("event_type", eventType).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			d.log.Info().Str("event_type", eventType).Int("attempt", attempt+1).Msg("webhook: delivered")
			return
		}
		d.log.Warn().Str("event_type", eventType).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}
	d.log.Error().Str("event_type", eventType).Msg("webhook: all retry attempts exhausted")
}
