package webhookclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client delivers event notifications to a configured HTTP endpoint with
// retries, rate limiting, and a circuit breaker.
type Client struct {
	cfg     Config
	http    *http.Client
	retry   RetryPolicy
	limiter *RateLimiter
	breaker CircuitBreaker
}

func NewFromEnv() *Client {
	return New(LoadFromEnv())
}

func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		retry: RetryPolicy{
			MaxRetries: cfg.RetryCount,
			BaseDelay:  cfg.RetryDelay,
		},
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		breaker: NewCircuitBreaker(cfg),
	}
}

// Enabled reports whether an endpoint is configured. A disabled client turns
// Deliver into a no-op so callers need no conditional wiring.
func (c *Client) Enabled() bool {
	return c.cfg.Endpoint != ""
}

// Deliver posts the payload as a signed JSON webhook.
func (c *Client) Deliver(ctx context.Context, eventType string, payload any) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	return c.retry.Do(ctx, func() error {
		return c.breaker.Execute(func() error {
			return c.post(ctx, eventType, body)
		})
	})
}

func (c *Client) post(ctx context.Context, eventType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", eventType)
	if c.cfg.Secret != "" {
		req.Header.Set("X-Webhook-Signature", c.sign(body))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("webhook error: %s (failed to read body: %v)", resp.Status, readErr)
		}
		return fmt.Errorf("webhook error: %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}

func (c *Client) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.Secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
