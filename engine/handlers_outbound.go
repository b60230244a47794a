package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaycrm/automation"
	"github.com/relaycrm/automation/integrations"
)

// Outbound integration handlers resolve tenant-scoped credentials through
// the credential provider; missing required credentials is fatal for the
// step, except where a user-facing setup notification makes the failure
// actionable first (Stripe).

type webhookConfig struct {
	URL     string                 `mapstructure:"url"`
	Event   string                 `mapstructure:"event"`
	Payload map[string]interface{} `mapstructure:"payload"`
}

func (e *Engine) handleWebhook(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[webhookConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, automation.ConfigError("url", req.Step.StepType)
	}

	// Webhook signing is optional: absent credentials mean unsigned delivery.
	secret := ""
	if creds, err := e.creds.Webhook(ctx, req.TenantID()); err == nil {
		secret = creds.Secret
	} else if !errors.Is(err, integrations.ErrNotConfigured) {
		return nil, err
	}

	payload := map[string]interface{}{
		"event":       defaultString(cfg.Event, "workflow.step"),
		"run_id":      req.Run.ID,
		"workflow_id": req.Run.WorkflowID,
		"data":        map[string]interface{}(req.Ctx),
	}
	for k, v := range cfg.Payload {
		payload[k] = v
	}

	status, err := e.registry.Webhooks.PostWebhook(ctx, cfg.URL, secret, payload)
	if err != nil {
		return nil, fmt.Errorf("webhook delivery failed: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"webhook_status": status}}, nil
}

type httpRequestConfig struct {
	URL     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Body    string            `mapstructure:"body"`
	Headers map[string]string `mapstructure:"headers"`
}

func (e *Engine) handleHTTPRequest(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[httpRequestConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, automation.ConfigError("url", req.Step.StepType)
	}

	status, body, err := e.registry.Webhooks.Request(ctx, defaultString(cfg.Method, "POST"), cfg.URL, cfg.Headers, cfg.Body)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	if len(body) > 1000 {
		body = body[:1000]
	}
	return &StepResult{Output: map[string]interface{}{
		"http_status":   status,
		"http_response": body,
	}}, nil
}

func (e *Engine) handleZapierTrigger(ctx context.Context, req *StepRequest) (*StepResult, error) {
	creds, err := e.creds.Zapier(ctx, req.TenantID())
	if err != nil {
		if errors.Is(err, integrations.ErrNotConfigured) {
			return nil, automation.CredentialsMissingError(integrations.ProviderZapier).WithStepType(req.Step.StepType)
		}
		return nil, err
	}

	payload := map[string]interface{}{
		"run_id":      req.Run.ID,
		"workflow_id": req.Run.WorkflowID,
		"data":        map[string]interface{}(req.Ctx),
	}
	status, err := e.registry.Webhooks.PostWebhook(ctx, creds.HookURL, "", payload)
	if err != nil {
		return nil, fmt.Errorf("zapier trigger failed: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"zapier_status": status}}, nil
}

type calendarEventConfig struct {
	Title           string `mapstructure:"title"`
	Description     string `mapstructure:"description"`
	StartOffsetDays int    `mapstructure:"start_offset_days"`
	StartTime       string `mapstructure:"start_time"`
	DurationMinutes int    `mapstructure:"duration_minutes"`
	AttendeeEmail   string `mapstructure:"attendee_email"`
}

func (e *Engine) handleGoogleCalendarEvent(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[calendarEventConfig](req.Config)
	if err != nil {
		return nil, err
	}

	creds, err := e.creds.GoogleCalendar(ctx, req.TenantID())
	if err != nil {
		if errors.Is(err, integrations.ErrNotConfigured) {
			return nil, automation.CredentialsMissingError(integrations.ProviderGoogleCalendar).WithStepType(req.Step.StepType)
		}
		return nil, err
	}

	start := e.now().AddDate(0, 0, cfg.StartOffsetDays)
	if cfg.StartTime != "" {
		if parsed, err := time.Parse("15:04", cfg.StartTime); err == nil {
			start = time.Date(start.Year(), start.Month(), start.Day(), parsed.Hour(), parsed.Minute(), 0, 0, start.Location())
		}
	}
	duration := cfg.DurationMinutes
	if duration <= 0 {
		duration = 60
	}

	event := integrations.CalendarEvent{
		Summary:     defaultString(cfg.Title, "Untitled Event"),
		Description: cfg.Description,
		Start:       start,
		End:         start.Add(minutes(duration)),
	}
	if attendee := defaultString(cfg.AttendeeEmail, req.Ctx.String("attendee_email")); attendee != "" {
		event.Attendees = []string{attendee}
	}

	eventID, err := e.registry.Calendar.CreateEvent(ctx, creds, event)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar event: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"calendar_event_id": eventID}}, nil
}

type openAIConfig struct {
	Prompt    string `mapstructure:"prompt"`
	OutputKey string `mapstructure:"output_key"`
}

func (e *Engine) handleOpenAIGenerate(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[openAIConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Prompt == "" {
		return nil, automation.ConfigError("prompt", req.Step.StepType)
	}

	creds, err := e.creds.OpenAI(ctx, req.TenantID())
	if err != nil {
		if errors.Is(err, integrations.ErrNotConfigured) {
			return nil, automation.CredentialsMissingError(integrations.ProviderOpenAI).WithStepType(req.Step.StepType)
		}
		return nil, err
	}

	text, err := e.registry.OpenAI.GenerateText(ctx, creds, cfg.Prompt)
	if err != nil {
		return nil, fmt.Errorf("text generation failed: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{
		defaultString(cfg.OutputKey, "generated_text"): text,
	}}, nil
}

type stripeConfig struct {
	ProductName string  `mapstructure:"product_name"`
	Amount      float64 `mapstructure:"amount"`
	Currency    string  `mapstructure:"currency"`
}

// handleStripePaymentLink creates a hosted payment link. Missing Stripe
// credentials push a modal setup notification to the triggering user
// before the fatal error surfaces, so the failure is self-serviceable.
func (e *Engine) handleStripePaymentLink(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[stripeConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Amount <= 0 {
		return nil, automation.ConfigError("amount", req.Step.StepType)
	}

	creds, err := e.creds.Stripe(ctx, req.TenantID())
	if err != nil {
		if errors.Is(err, integrations.ErrNotConfigured) {
			e.notifyBestEffort(ctx, req, &automation.Notification{
				ID:        uuid.New().String(),
				TenantID:  req.TenantID(),
				UserID:    req.UserID(),
				Type:      "setup_required",
				Title:     "Stripe setup required",
				Message:   "A workflow tried to create a payment link, but Stripe is not connected. Connect Stripe in Settings to enable payment steps.",
				Modal:     true,
				CreatedAt: e.now(),
			})
			return nil, automation.CredentialsMissingError(integrations.ProviderStripe).WithStepType(req.Step.StepType)
		}
		return nil, err
	}

	amountCents := int64(cfg.Amount * 100)
	linkURL, err := e.registry.Stripe.CreatePaymentLink(ctx, creds, defaultString(cfg.ProductName, "Payment"), amountCents, strings.ToLower(defaultString(cfg.Currency, "usd")))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment link: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"payment_link_url": linkURL}}, nil
}

type ttsConfig struct {
	Text    string `mapstructure:"text"`
	Message string `mapstructure:"message"`
	VoiceID string `mapstructure:"voice_id"`
	Phone   string `mapstructure:"phone"`
}

// handleElevenLabsTTS is a two-provider composite action: synthesize
// speech, upload the audio to storage for a public URL, then place a voice
// call that plays it. If synthesis fails with a paid-feature rejection of
// the configured voice, it retries once with the stock default voice.
func (e *Engine) handleElevenLabsTTS(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[ttsConfig](req.Config)
	if err != nil {
		return nil, err
	}
	text := defaultString(cfg.Text, cfg.Message)
	if text == "" {
		return nil, automation.ConfigError("text", req.Step.StepType)
	}
	to := defaultString(cfg.Phone, req.Ctx.String("phone"))
	if to == "" {
		return nil, automation.ConfigError("phone", req.Step.StepType)
	}

	creds, err := e.creds.ElevenLabs(ctx, req.TenantID())
	if err != nil {
		if errors.Is(err, integrations.ErrNotConfigured) {
			return nil, automation.CredentialsMissingError(integrations.ProviderElevenLabs).WithStepType(req.Step.StepType)
		}
		return nil, err
	}
	if e.registry.Audio == nil {
		return nil, automation.CredentialsMissingError("audio storage").WithStepType(req.Step.StepType)
	}

	voice := defaultString(cfg.VoiceID, defaultString(creds.VoiceID, integrations.DefaultVoiceID))
	audio, err := e.registry.Speech.Synthesize(ctx, creds, voice, text)
	if err != nil && integrations.IsVoiceRestriction(err) && voice != integrations.DefaultVoiceID {
		req.Logger.Warn().Str("voice_id", voice).Msg("Configured voice rejected, retrying with default voice")
		voice = integrations.DefaultVoiceID
		audio, err = e.registry.Speech.Synthesize(ctx, creds, voice, text)
	}
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	key := fmt.Sprintf("tts/%s/%s.mp3", req.Run.ID, req.Exec.ID)
	audioURL, err := e.registry.Audio.UploadAudio(ctx, key, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to store synthesized audio: %w", err)
	}

	// The call goes out through Twilio; absent Twilio credentials degrade
	// like the other Twilio-backed channels.
	twilioCreds, err := e.creds.Twilio(ctx, req.TenantID())
	if errors.Is(err, integrations.ErrNotConfigured) {
		result := e.degradeChannel(ctx, req, "voice", to, text)
		result.Output["audio_url"] = audioURL
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	callSID, err := e.registry.Twilio.PlaceCall(ctx, twilioCreds, to, audioURL)
	if err != nil {
		return nil, fmt.Errorf("failed to place voice call: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{
		"sent":       true,
		"call_sid":   callSID,
		"audio_url":  audioURL,
		"voice_used": voice,
	}}, nil
}
