package integrations

import "net/http"

// Registry bundles the provider clients handed to the engine. Fields are
// interfaces so tests can swap in fakes per provider.
type Registry struct {
	Twilio   TwilioAPI
	WhatsApp WhatsAppAPI
	Slack    SlackAPI
	OpenAI   OpenAIAPI
	Stripe   StripeAPI
	Calendar CalendarAPI
	Speech   SpeechAPI
	Webhooks WebhookAPI
	Audio    AudioStore
}

// NewRegistry builds a registry of real clients sharing one HTTP client.
// Audio is left nil unless configured with an S3 store; the elevenlabs_tts
// handler treats a nil audio store as missing configuration.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = defaultHTTPClient
	}
	return &Registry{
		Twilio:   &TwilioClient{HTTPClient: client},
		WhatsApp: &WhatsAppClient{HTTPClient: client},
		Slack:    &SlackClient{HTTPClient: client},
		OpenAI:   &OpenAIClient{HTTPClient: client},
		Stripe:   &StripeClient{HTTPClient: client},
		Calendar: &GoogleCalendarClient{HTTPClient: client},
		Speech:   &ElevenLabsClient{HTTPClient: client},
		Webhooks: &WebhookClient{HTTPClient: client},
	}
}
