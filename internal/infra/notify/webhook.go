// Package notify delivers safety events (shutdown, stream death, drain
// timeout) to an operations webhook. Delivery is best-effort: a broken
// webhook must never take the agent down with it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Notifier POSTs JSON events to a configured webhook URL.
type Notifier struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNotifier creates a notifier. An empty url disables delivery entirely.
func NewNotifier(url string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("module", "notify")),
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Notify posts one event. fields merge into the payload next to the
// event name and timestamp. Errors are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, eventName string, fields map[string]any) {
	if !n.Enabled() {
		return
	}

	payload := map[string]any{
		"event": eventName,
		"ts":    time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("Failed to marshal notification", slog.Any("error", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("Failed to build notification request", slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("Notification delivery failed",
			slog.String("event", eventName),
			slog.Any("error", err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		n.logger.Warn("Notification rejected",
			slog.String("event", eventName),
			slog.Int("status", resp.StatusCode))
	}
}
