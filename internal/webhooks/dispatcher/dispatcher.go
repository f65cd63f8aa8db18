package dispatcher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/orbitalhq/geosync/internal/app/ports"
)

// ErrNoWebhookURL is returned by Retry when the owning resource no longer has
// a webhook URL registered.
var ErrNoWebhookURL = errors.New("no webhook url registered")

const defaultUserAgent = "geosync-webhook/1.0"

// Config bounds the delivery pipeline.
type Config struct {
	// MaxRetries is the attempt cap per delivery sequence.
	MaxRetries int
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
	// Timeout applies per HTTP attempt.
	Timeout time.Duration
	// SigningSecret, when set, adds an HMAC-SHA256 X-Webhook-Signature header.
	SigningSecret string
}

// Dispatcher delivers lifecycle events to externally registered endpoints and
// records every attempt sequence in the delivery ledger, on success as well
// as failure.
type Dispatcher struct {
	ledger      ports.DeliveryStore
	monitorings ports.MonitoringStore
	client      *http.Client
	cfg         Config
	log         *slog.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a dispatcher. A nil client gets a default one bounded by
// cfg.Timeout.
func New(ledger ports.DeliveryStore, monitorings ports.MonitoringStore, client *http.Client, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		ledger:      ledger,
		monitorings: monitorings,
		client:      client,
		cfg:         cfg,
		log:         log,
		sleep:       sleepContext,
	}
}

type envelope struct {
	Event     string `json:"event"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// Deliver performs a single POST attempt and records the outcome in the
// ledger regardless of result.
func (d *Dispatcher) Deliver(ctx context.Context, url, eventType string, payload any, resourceID string) error {
	return d.run(ctx, url, eventType, payload, resourceID, 1)
}

// DeliverWithRetry attempts delivery up to the configured maximum, waiting
// baseDelay * 2^(attempt-1) between attempts. Exhaustion persists a failed
// ledger entry with the final retry count and returns the last error.
func (d *Dispatcher) DeliverWithRetry(ctx context.Context, url, eventType string, payload any, resourceID string) error {
	return d.run(ctx, url, eventType, payload, resourceID, d.cfg.MaxRetries)
}

func (d *Dispatcher) run(ctx context.Context, url, eventType string, payload any, resourceID string, maxAttempts int) error {
	snapshot, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	entry, err := d.openLedgerEntry(ctx, resourceID, eventType, snapshot)
	if err != nil {
		return err
	}

	attempts, lastErr := d.attemptSequence(ctx, url, eventType, snapshot, maxAttempts)
	d.closeLedgerEntry(ctx, entry.ID, attempts, lastErr)
	if lastErr != nil {
		return fmt.Errorf("deliver webhook to %s: %w", url, lastErr)
	}
	return nil
}

// Retry re-enters a ledger entry into the pipeline against the owning
// resource's current webhook URL, producing a new attempt sequence on the
// same entry. It fails fast with not-found when the resource is gone.
func (d *Dispatcher) Retry(ctx context.Context, ledgerID string) (ports.DeliveryRecord, error) {
	entry, err := d.ledger.GetDelivery(ctx, ledgerID)
	if err != nil {
		return ports.DeliveryRecord{}, err
	}
	if entry.ResourceID == "" {
		return ports.DeliveryRecord{}, fmt.Errorf("ledger entry %s: owning resource: %w", ledgerID, ports.ErrNotFound)
	}
	monitoring, err := d.monitorings.GetMonitoring(ctx, entry.ResourceID, "")
	if err != nil {
		return ports.DeliveryRecord{}, fmt.Errorf("owning resource %s: %w", entry.ResourceID, err)
	}
	if monitoring.WebhookURL == "" {
		return ports.DeliveryRecord{}, fmt.Errorf("monitoring %s: %w", monitoring.ID, ErrNoWebhookURL)
	}

	attempts, lastErr := d.attemptSequence(ctx, monitoring.WebhookURL, entry.EventType, entry.Payload, d.cfg.MaxRetries)
	updated := d.closeLedgerEntry(ctx, entry.ID, attempts, lastErr)
	if lastErr != nil {
		return updated, fmt.Errorf("deliver webhook to %s: %w", monitoring.WebhookURL, lastErr)
	}
	return updated, nil
}

// attemptSequence runs up to maxAttempts POSTs with exponential backoff and
// returns the attempt count plus the last error (nil on success).
func (d *Dispatcher) attemptSequence(ctx context.Context, url, eventType string, snapshot json.RawMessage, maxAttempts int) (int, error) {
	body, err := json.Marshal(envelope{
		Event:     eventType,
		Data:      json.RawMessage(snapshot),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return 0, fmt.Errorf("encode envelope: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = d.post(ctx, url, body)
		if lastErr == nil {
			return attempt, nil
		}
		d.log.WarnContext(ctx, "webhook attempt failed",
			"url", url, "event_type", eventType, "attempt", attempt, "error", lastErr)

		if attempt == maxAttempts {
			break
		}
		delay := d.cfg.BaseDelay * (1 << (attempt - 1))
		if err := d.sleep(ctx, delay); err != nil {
			return attempt, err
		}
	}
	return maxAttempts, lastErr
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	if secret := strings.TrimSpace(d.cfg.SigningSecret); secret != "" {
		req.Header.Set("X-Webhook-Signature", sign(body, secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook rejected: status=%s body=%s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}

func (d *Dispatcher) openLedgerEntry(ctx context.Context, resourceID, eventType string, snapshot json.RawMessage) (ports.DeliveryRecord, error) {
	id, err := newLedgerID()
	if err != nil {
		return ports.DeliveryRecord{}, err
	}
	entry := ports.DeliveryRecord{
		ID:         id,
		ResourceID: resourceID,
		EventType:  eventType,
		Payload:    snapshot,
		Status:     ports.DeliveryPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.ledger.CreateDelivery(ctx, entry); err != nil {
		return ports.DeliveryRecord{}, fmt.Errorf("open ledger entry: %w", err)
	}
	return entry, nil
}

func (d *Dispatcher) closeLedgerEntry(ctx context.Context, id string, attempts int, lastErr error) ports.DeliveryRecord {
	status := ports.DeliveryDelivered
	if lastErr != nil {
		status = ports.DeliveryFailed
	}
	update := ports.DeliveryUpdate{Status: &status, RetryCount: &attempts}
	if lastErr == nil {
		now := time.Now().UTC()
		update.DeliveredAt = &now
	}

	updated, err := d.ledger.UpdateDelivery(ctx, id, update)
	if err != nil {
		d.log.ErrorContext(ctx, "close ledger entry", "ledger_id", id, "error", err)
	}
	return updated
}

func newLedgerID() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ledger id: %w", err)
	}
	return "dlv_" + hex.EncodeToString(buf), nil
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
