package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SpeechAPI synthesizes speech from text.
type SpeechAPI interface {
	// Synthesize returns MP3 audio for the text using the given voice.
	Synthesize(ctx context.Context, creds ElevenLabsCredentials, voiceID, text string) ([]byte, error)
}

// ElevenLabsClient calls the ElevenLabs text-to-speech API.
type ElevenLabsClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io"
	elevenLabsDefaultModel   = "eleven_multilingual_v2"

	// DefaultVoiceID is the stock voice used by the fallback-on-restriction
	// retry when a tenant's configured voice needs a paid plan ("Rachel").
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

func (c *ElevenLabsClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return elevenLabsDefaultBaseURL
}

// Synthesize renders text to MP3 audio bytes.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, creds ElevenLabsCredentials, voiceID, text string) ([]byte, error) {
	payload := map[string]interface{}{
		"text":     text,
		"model_id": elevenLabsDefaultModel,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode elevenlabs request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL(), voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build elevenlabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", creds.APIKey)

	client := c.HTTPClient
	if client == nil {
		client = defaultHTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read elevenlabs response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Provider: "elevenlabs", Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// IsVoiceRestriction reports whether a synthesis error is a paid-feature
// rejection of the chosen voice, the case where the handler retries once
// with DefaultVoiceID.
func IsVoiceRestriction(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) || se.Provider != "elevenlabs" {
		return false
	}
	if se.Status != http.StatusUnauthorized && se.Status != http.StatusPaymentRequired && se.Status != http.StatusForbidden {
		return false
	}
	body := strings.ToLower(se.Body)
	return strings.Contains(body, "voice") || strings.Contains(body, "subscription") || strings.Contains(body, "paid")
}
