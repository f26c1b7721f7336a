package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// AlertNotifier delivers best-effort ops alerts to an outbound webhook when
// billing event processing fails. Delivery is fire-and-forget: failures are
// logged, never propagated, and the circuit breaker in BaseClient stops the
// notifier from hammering a dead endpoint.
type AlertNotifier struct {
	client     *BaseClient
	webhookURL string
	timeout    time.Duration
	logger     *slog.Logger
}

// Alert is the payload posted to the ops webhook.
type Alert struct {
	Source    string    `json:"source"`
	Severity  string    `json:"severity"`
	Summary   string    `json:"summary"`
	EventID   string    `json:"event_id,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
	At        time.Time `json:"at"`
}

// NewAlertNotifier creates a notifier. An empty webhookURL yields a disabled
// notifier whose Notify is a no-op. A nil logger falls back to slog.Default().
func NewAlertNotifier(client *BaseClient, webhookURL string, timeout time.Duration, logger *slog.Logger) *AlertNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AlertNotifier{
		client:     client,
		webhookURL: webhookURL,
		timeout:    timeout,
		logger:     logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *AlertNotifier) Enabled() bool {
	return n.webhookURL != ""
}

// Notify posts the alert with a bounded timeout. Errors are swallowed after
// logging: an unreachable ops webhook must never affect webhook ACKs or
// request handling.
func (n *AlertNotifier) Notify(ctx context.Context, alert Alert) {
	if !n.Enabled() {
		return
	}

	body, err := json.Marshal(alert)
	if err != nil {
		n.logger.Error("ops alert marshal failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("ops alert request build failed", slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("ops alert delivery failed",
			slog.String("summary", alert.Summary),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("ops alert rejected",
			slog.String("summary", alert.Summary),
			slog.String("status", fmt.Sprintf("%d", resp.StatusCode)),
		)
	}
}
