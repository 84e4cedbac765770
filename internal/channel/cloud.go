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
	"sentinella/pkg/circuitbreaker"
	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/retry"
)

const defaultCloudBaseURL = "https://graph.facebook.com/v18.0"

// CloudChannel sends text messages through the hosted messaging HTTP API.
// Transient send failures are retried with backoff; a persistently failing
// API trips the circuit breaker so dispatch stops hammering it.
type CloudChannel struct {
	cfg     config.CloudChannelConfig
	client  *http.Client
	breaker *circuitbreaker.Breaker
	policy  retry.Policy
	logger  logger.Logger
}

type cloudTextPayload struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             cloudTextBody `json:"text"`
}

type cloudTextBody struct {
	Body string `json:"body"`
}

func NewCloudChannel(cfg config.CloudChannelConfig, log logger.Logger) *CloudChannel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCloudBaseURL
	}

	timeoutSeconds := cfg.RequestTimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = 15
	}

	policy := retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
	}
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}

	return &CloudChannel{
		cfg:     cfg,
		client:  &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig(NameCloud)),
		policy:  policy,
		logger:  log,
	}
}

func (c *CloudChannel) Name() string {
	return NameCloud
}

func (c *CloudChannel) IsAvailable() bool {
	return c.cfg.Enabled && c.cfg.AccessToken != "" && !c.breaker.IsOpen()
}

func (c *CloudChannel) BroadcastDestination() string {
	return c.cfg.BroadcastTo
}

func (c *CloudChannel) Send(ctx context.Context, destination, text string) error {
	payload := cloudTextPayload{
		MessagingProduct: "whatsapp",
		To:               destination,
		Type:             "text",
		Text:             cloudTextBody{Body: text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cloud payload: %w", err)
	}

	return c.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.policy, func() error {
			return c.post(ctx, body)
		})
	})
}

func (c *CloudChannel) post(ctx context.Context, body []byte) error {
	url := fmt.Sprintf("%s/%s/messages", c.cfg.BaseURL, c.cfg.PhoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build cloud request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloud send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	sendErr := fmt.Errorf("cloud API returned status %d: %s", resp.StatusCode, string(respBody))

	// 4xx responses are not retryable: the request itself is bad or the
	// token is invalid. 429 and 5xx are worth retrying.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return pkgerrors.ErrValidation.WithCause(sendErr)
	}

	return sendErr
}
