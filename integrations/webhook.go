package integrations

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
	"strings"
)

// WebhookAPI delivers generic outbound HTTP calls: signed webhooks, raw
// http_request steps and Zapier catch hooks.
type WebhookAPI interface {
	// PostWebhook POSTs a JSON payload, signing the body with the tenant's
	// secret (X-Webhook-Signature, hex HMAC-SHA256) when secret is non-empty.
	PostWebhook(ctx context.Context, targetURL, secret string, payload map[string]interface{}) (int, error)
	// Request performs an arbitrary HTTP call and returns status and body.
	Request(ctx context.Context, method, targetURL string, headers map[string]string, body string) (int, string, error)
}

// WebhookClient delivers outbound HTTP calls.
type WebhookClient struct {
	HTTPClient *http.Client
}

// PostWebhook POSTs the payload as JSON, optionally signed.
func (c *WebhookClient) PostWebhook(ctx context.Context, targetURL, secret string, payload map[string]interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		req.Header.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	status, _, err := c.do(req)
	return status, err
}

// Request performs an arbitrary HTTP call.
func (c *WebhookClient) Request(ctx context.Context, method, targetURL string, headers map[string]string, body string) (int, string, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), targetURL, reader)
	if err != nil {
		return 0, "", fmt.Errorf("failed to build http request: %w", err)
	}
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

func (c *WebhookClient) do(req *http.Request) (int, string, error) {
	client := c.HTTPClient
	if client == nil {
		client = defaultHTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("failed to read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, string(data), &StatusError{Provider: "webhook", Status: resp.StatusCode, Body: string(data)}
	}
	return resp.StatusCode, string(data), nil
}
