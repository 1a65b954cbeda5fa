package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"cfgpush/internal/cfgpush"
	"cfgpush/internal/config"
)

// message is the chat webhook payload.
type message struct {
	Text string `json:"text"`
}

// WebhookNotifier posts failure notifications to a chat webhook
// (Google Chat, Slack-compatible incoming hooks, ...). Each notification is a
// single attempt; a failed delivery is returned to the caller, who only logs it.
type WebhookNotifier struct {
	url    string
	client *retryablehttp.Client
}

var _ cfgpush.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a notifier for url.
func NewWebhookNotifier(url string, cfg config.NotifyConfig, logger cfgpush.Logger) *WebhookNotifier {
	c := retryablehttp.NewClient()
	c.RetryMax = 0
	c.HTTPClient.Timeout = cfg.Timeout.Duration
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = nil
	if logger != nil {
		c.Logger = retryablehttp.LeveledLogger(logger)
	}
	return &WebhookNotifier{url: url, client: c}
}

// NewNotifierFromConfig returns a WebhookNotifier, or a no-op notifier when
// no webhook URL is configured.
func NewNotifierFromConfig(cfg config.NotifyConfig, logger cfgpush.Logger) cfgpush.Notifier {
	if cfg.WebhookURL == "" {
		return cfgpush.NopNotifier{}
	}
	return NewWebhookNotifier(cfg.WebhookURL, cfg, logger)
}

// Notify posts {"text": text} to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, text string) error {
	payload, err := json.Marshal(message{Text: text})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := n.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("posting notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
