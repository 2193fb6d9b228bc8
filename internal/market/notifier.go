package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

// Notifier delivers report text to the user. Fire-and-forget: callers log
// delivery failures and move on, a dead channel never blocks the engine.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// LogNotifier writes reports to a logger. The fallback channel when no
// webhook is configured.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a logger-backed notifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

var _ Notifier = (*LogNotifier)(nil)

// Notify writes the message to the logger.
func (n *LogNotifier) Notify(_ context.Context, message string) error {
	n.logger.Print(message)
	return nil
}

// WebhookNotifier posts reports to a webhook as {"text": "..."}.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &WebhookNotifier{url: url, client: client}
}

var _ Notifier = (*WebhookNotifier)(nil)

// Notify posts the message. Non-2xx responses are errors.
func (n *WebhookNotifier) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook status %d", resp.StatusCode)
	}
	return nil
}
