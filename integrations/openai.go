package integrations

import (
	"context"
	"fmt"
	"net/http"
)

// OpenAIAPI generates text from a prompt via chat completions.
type OpenAIAPI interface {
	GenerateText(ctx context.Context, creds OpenAICredentials, prompt string) (string, error)
}

// OpenAIClient calls the OpenAI chat completions endpoint.
type OpenAIClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

const (
	openAIDefaultBaseURL = "https://api.openai.com"
	openAIDefaultModel   = "gpt-4o-mini"
)

func (c *OpenAIClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return openAIDefaultBaseURL
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateText runs one chat completion and returns the first choice.
func (c *OpenAIClient) GenerateText(ctx context.Context, creds OpenAICredentials, prompt string) (string, error) {
	model := creds.Model
	if model == "" {
		model = openAIDefaultModel
	}
	payload := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + creds.APIKey}

	var resp openAIChatResponse
	if err := postJSON(ctx, c.HTTPClient, "openai", c.baseURL()+"/v1/chat/completions", headers, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
