package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sentinella/internal/config"
	"sentinella/internal/logger"
)

// WebhookChannel posts forwarded messages as JSON to a configured external
// URL. The destination argument is carried in the payload so a single
// endpoint can fan out on its side.
type WebhookChannel struct {
	cfg    config.WebhookChannelConfig
	client *http.Client
	logger logger.Logger
}

type webhookPayload struct {
	Type        string    `json:"type"`
	Destination string    `json:"destination,omitempty"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sent_at"`
}

func NewWebhookChannel(cfg config.WebhookChannelConfig, log logger.Logger) *WebhookChannel {
	timeoutSeconds := cfg.RequestTimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = 15
	}

	return &WebhookChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		logger: log,
	}
}

func (c *WebhookChannel) Name() string {
	return NameWebhook
}

func (c *WebhookChannel) IsAvailable() bool {
	return c.cfg.Enabled && c.cfg.URL != ""
}

// BroadcastDestination returns the webhook URL itself: the endpoint is the
// broadcast target, so filter-triggered forwards always reach it.
func (c *WebhookChannel) BroadcastDestination() string {
	if !c.cfg.Enabled {
		return ""
	}
	return c.cfg.URL
}

func (c *WebhookChannel) Send(ctx context.Context, destination, text string) error {
	payload := webhookPayload{
		Type:        "forward",
		Destination: destination,
		Text:        text,
		SentAt:      time.Now(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook send failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
