// Package integrations holds the tenant-scoped credential provider and the
// REST clients for every external provider the step handlers reach:
// Twilio (SMS + voice), Meta WhatsApp Cloud, Slack incoming webhooks,
// OpenAI chat completions, Stripe payment links, Google Calendar,
// ElevenLabs TTS, generic webhooks, and S3 object storage for TTS audio.
package integrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaycrm/automation"
)

// Provider names, matching the provider column of tenant integration rows.
const (
	ProviderTwilio         = "twilio"
	ProviderWhatsApp       = "whatsapp"
	ProviderSlack          = "slack"
	ProviderOpenAI         = "openai"
	ProviderStripe         = "stripe"
	ProviderGoogleCalendar = "google_calendar"
	ProviderElevenLabs     = "elevenlabs"
	ProviderZapier         = "zapier"
	ProviderWebhook        = "webhook"
)

// ErrNotConfigured is returned by credential accessors when a tenant has no
// active credentials for the provider (and no env fallback applies).
// Channel handlers use it to degrade gracefully instead of failing the run.
var ErrNotConfigured = errors.New("integration not configured")

// TwilioCredentials authenticate Twilio SMS and voice calls.
type TwilioCredentials struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// WhatsAppCredentials authenticate the Meta WhatsApp Cloud API.
type WhatsAppCredentials struct {
	AccessToken   string
	PhoneNumberID string
}

// SlackCredentials hold a Slack incoming-webhook URL.
type SlackCredentials struct {
	WebhookURL string
}

// OpenAICredentials authenticate chat completion calls.
type OpenAICredentials struct {
	APIKey string
	Model  string
}

// StripeCredentials authenticate Stripe API calls.
type StripeCredentials struct {
	SecretKey string
}

// GoogleCalendarCredentials drive the OAuth refresh-token flow.
type GoogleCalendarCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
}

// ElevenLabsCredentials authenticate speech synthesis.
type ElevenLabsCredentials struct {
	APIKey  string
	VoiceID string
}

// ZapierCredentials hold a Zapier catch-hook URL.
type ZapierCredentials struct {
	HookURL string
}

// WebhookCredentials hold the signing secret for generic outbound webhooks.
type WebhookCredentials struct {
	Secret string
}

// CredentialProvider is the single capability handlers use to resolve
// tenant-scoped integration credentials, one typed accessor per provider.
// Handlers never re-implement row lookup or env fallback themselves.
type CredentialProvider interface {
	Twilio(ctx context.Context, tenantID string) (TwilioCredentials, error)
	WhatsApp(ctx context.Context, tenantID string) (WhatsAppCredentials, error)
	Slack(ctx context.Context, tenantID string) (SlackCredentials, error)
	OpenAI(ctx context.Context, tenantID string) (OpenAICredentials, error)
	Stripe(ctx context.Context, tenantID string) (StripeCredentials, error)
	GoogleCalendar(ctx context.Context, tenantID string) (GoogleCalendarCredentials, error)
	ElevenLabs(ctx context.Context, tenantID string) (ElevenLabsCredentials, error)
	Zapier(ctx context.Context, tenantID string) (ZapierCredentials, error)
	Webhook(ctx context.Context, tenantID string) (WebhookCredentials, error)
}

// StoreProvider resolves credentials from tenant integration rows, with the
// environment fallbacks the engine honors for Twilio and webhook signing.
type StoreProvider struct {
	store automation.Store
	env   automation.EnvFallback
}

// NewStoreProvider creates a credential provider over the given store.
func NewStoreProvider(store automation.Store, env automation.EnvFallback) *StoreProvider {
	return &StoreProvider{store: store, env: env}
}

// lookup fetches an active integration row, mapping absence to ErrNotConfigured.
func (p *StoreProvider) lookup(ctx context.Context, tenantID, provider string) (map[string]string, error) {
	row, err := p.store.GetIntegration(ctx, tenantID, provider)
	if err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			return nil, fmt.Errorf("%s for tenant %s: %w", provider, tenantID, ErrNotConfigured)
		}
		return nil, fmt.Errorf("failed to load %s integration: %w", provider, err)
	}
	if !row.IsActive {
		return nil, fmt.Errorf("%s for tenant %s: %w", provider, tenantID, ErrNotConfigured)
	}
	return row.Credentials, nil
}

func (p *StoreProvider) Twilio(ctx context.Context, tenantID string) (TwilioCredentials, error) {
	creds, err := p.lookup(ctx, tenantID, ProviderTwilio)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) && p.env.TwilioAccountSID != "" && p.env.TwilioAuthToken != "" {
			return TwilioCredentials{
				AccountSID: p.env.TwilioAccountSID,
				AuthToken:  p.env.TwilioAuthToken,
				FromNumber: p.env.TwilioFromNumber,
			}, nil
		}
		return TwilioCredentials{}, err
	}
	return TwilioCredentials{
		AccountSID: creds["account_sid"],
		AuthToken:  creds["auth_token"],
		FromNumber: creds["from_number"],
	}, nil
}

func (p *StoreProvider) WhatsApp(ctx context.Context, tenantID string) (WhatsAppCredentials, error) {
	creds, err := p.lookup(ctx, tenantID, ProviderWhatsApp)
	if err != nil {
		return WhatsAppCredentials{}, err
	}
	return WhatsAppCredentials{
		AccessToken:   creds["access_token"],
		PhoneNumberID: creds["phone_number_id"],
	}, nil
}

func (p *StoreProvider) Slack(ctx context.Context, tenantID string) (SlackCredentials, error) {
	creds, err := p.lookup(ctx, tenantID, ProviderSlack)
	if err != nil {
		return SlackCredentials{}, err
	}
	return SlackCredentials{WebhookURL: creds["webhook_url"]}, nil
}

func (p *StoreProvider) OpenAI(ctx context.Context, tenantID string) (OpenAICredentials, error) {
	creds, err := p.lookup(ctx, tenantID, ProviderOpenAI)
	if err != nil {
		return OpenAICredentials{}, err
	}
	return OpenAICredentials{APIKey: creds["api_key"], Model: creds["model"]}, nil
}

func (p *StoreProvider) Stripe(ctx context.Context, tenantID string) (StripeCredentials, error) {
	creds, err := p.lookup(ctx, tenantID, ProviderStripe)
	if err != nil {
		return StripeCredentials{}, err
	}
	return StripeCredentials{SecretKey: creds["secret_key"]}, nil
}

func (p *StoreProvider) GoogleCalendar(ctx context.Context, tenantID string) (GoogleCalendarCredentials, error) {
	creds, err := p.lookup(ctx, tenantID, ProviderGoogleCalendar)
	if err != nil {
		return GoogleCalendarCredentials{}, err
	}
	return GoogleCalendarCredentials{
		ClientID:     creds["client_id"],
		ClientSecret: creds["client_secret"],
		RefreshToken: creds["refresh_token"],
		CalendarID:   creds["calendar_id"],
	}, nil
}

func (p *StoreProvider) ElevenLabs(ctx context.Context, tenantID string) (ElevenLabsCredentials, error) {
	creds, err := p.lookup(ctx, tenantID, ProviderElevenLabs)
	if err != nil {
		return ElevenLabsCredentials{}, err
	}
	return ElevenLabsCredentials{APIKey: creds["api_key"], VoiceID: creds["voice_id"]}, nil
}

func (p *StoreProvider) Zapier(ctx context.Context, tenantID string) (ZapierCredentials, error) {
	creds, err := p.lookup(ctx, tenantID, ProviderZapier)
	if err != nil {
		return ZapierCredentials{}, err
	}
	return ZapierCredentials{HookURL: creds["hook_url"]}, nil
}

func (p *StoreProvider) Webhook(ctx context.Context, tenantID string) (WebhookCredentials, error) {
	creds, err := p.lookup(ctx, tenantID, ProviderWebhook)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) && p.env.WebhookSecret != "" {
			return WebhookCredentials{Secret: p.env.WebhookSecret}, nil
		}
		return WebhookCredentials{}, err
	}
	return WebhookCredentials{Secret: creds["secret"]}, nil
}
