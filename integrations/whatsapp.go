package integrations

import (
	"context"
	"fmt"
	"net/http"
)

// WhatsAppAPI sends messages through the Meta WhatsApp Cloud API.
type WhatsAppAPI interface {
	SendMessage(ctx context.Context, creds WhatsAppCredentials, to, body string) (string, error)
}

// WhatsAppClient calls the Meta Graph API.
type WhatsAppClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

const whatsAppDefaultBaseURL = "https://graph.facebook.com/v19.0"

func (c *WhatsAppClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return whatsAppDefaultBaseURL
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendMessage sends one text message and returns the message id.
func (c *WhatsAppClient) SendMessage(ctx context.Context, creds WhatsAppCredentials, to, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL(), creds.PhoneNumberID)
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	headers := map[string]string{"Authorization": "Bearer " + creds.AccessToken}

	var resp whatsAppResponse
	if err := postJSON(ctx, c.HTTPClient, "whatsapp", endpoint, headers, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 {
		return "", nil
	}
	return resp.Messages[0].ID, nil
}
