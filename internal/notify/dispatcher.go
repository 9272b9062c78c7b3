// Package notify persists orchestrator events and delivers them to the live
// event stream and an optional webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// Store persists events.
type Store interface {
	SaveNotification(ctx context.Context, ev domain.Event) error
	MarkNotificationDelivered(ctx context.Context, id string) error
	ListNotifications(ctx context.Context, limit int) ([]domain.Event, error)
}

// Broadcaster pushes events to live subscribers and reports how many got it.
type Broadcaster interface {
	Broadcast(ev domain.Event) int
}

// Config controls webhook delivery.
type Config struct {
	WebhookURL  string
	MinSeverity domain.Severity
	Timeout     time.Duration
}

// Dispatcher implements the orchestrator's notification port.
type Dispatcher struct {
	store  Store
	hub    Broadcaster
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. hub may be nil.
func NewDispatcher(store Store, hub Broadcaster, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = domain.SeverityWarning
	}
	return &Dispatcher{
		store: store,
		hub:   hub,
		cfg:   cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// EmitNotification persists ev and delivers it. Only a persistence failure
// is returned; delivery failures are logged and leave the event undelivered.
func (d *Dispatcher) EmitNotification(ctx context.Context, ev domain.Event) error {
	if err := d.store.SaveNotification(ctx, ev); err != nil {
		return fmt.Errorf("saving notification: %w", err)
	}

	delivered := false
	if d.hub != nil && d.hub.Broadcast(ev) > 0 {
		delivered = true
	}

	if d.cfg.WebhookURL != "" && severityMatches(ev.Severity, d.cfg.MinSeverity) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encoding notification: %w", err)
		}
		if err := d.SendWebhook(ctx, d.cfg.WebhookURL, payload); err != nil {
			d.logger.Warn("Webhook delivery failed",
				"event_id", ev.ID,
				"event_type", ev.Type,
				"session_id", ev.SessionID,
				"error", err)
		} else {
			delivered = true
		}
	}

	if !delivered {
		return nil
	}
	if err := d.store.MarkNotificationDelivered(ctx, ev.ID); err != nil {
		d.logger.Warn("Failed to mark notification delivered", "event_id", ev.ID, "error", err)
	}
	return nil
}

// List returns the most recent events.
func (d *Dispatcher) List(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	events, err := d.store.ListNotifications(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return events, nil
}

// SendWebhook POSTs payload to the given URL.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func severityMatches(actual, threshold domain.Severity) bool {
	levels := map[domain.Severity]int{
		domain.SeverityInfo:     0,
		domain.SeverityWarning:  1,
		domain.SeverityCritical: 2,
	}
	return levels[actual] >= levels[threshold]
}
