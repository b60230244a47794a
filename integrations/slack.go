package integrations

import (
	"context"
	"net/http"
)

// SlackAPI posts messages to a Slack incoming webhook.
type SlackAPI interface {
	PostMessage(ctx context.Context, creds SlackCredentials, text string) error
}

// SlackClient posts to Slack incoming webhooks.
type SlackClient struct {
	HTTPClient *http.Client
}

// PostMessage posts one message. Slack webhooks answer "ok" in plain text,
// so only the status code matters.
func (c *SlackClient) PostMessage(ctx context.Context, creds SlackCredentials, text string) error {
	return postJSON(ctx, c.HTTPClient, "slack", creds.WebhookURL, nil, map[string]string{"text": text}, nil)
}
