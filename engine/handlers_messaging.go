package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/relaycrm/automation"
	"github.com/relaycrm/automation/integrations"
)

// Messaging handlers resolve a recipient, render a literal or templated
// body, and dispatch through an external channel. Unconfigured optional
// integrations (Twilio SMS, WhatsApp) degrade to a recorded "would have
// sent" notification instead of failing the run; true API errors are fatal
// to the step.

type messageConfig struct {
	recipientConfig `mapstructure:",squash"`
	Title           string `mapstructure:"title"`
	Subject         string `mapstructure:"subject"`
	Message         string `mapstructure:"message"`
	Body            string `mapstructure:"body"`
	Phone           string `mapstructure:"phone"`
}

func (c messageConfig) text() string {
	if c.Message != "" {
		return c.Message
	}
	return c.Body
}

func (e *Engine) handleSendNotification(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[messageConfig](req.Config)
	if err != nil {
		return nil, err
	}

	userID := e.resolveRecipientUserID(ctx, req, cfg.recipientConfig)
	notification := &automation.Notification{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID(),
		UserID:    userID,
		Type:      "workflow",
		Title:     defaultString(cfg.Title, "Workflow notification"),
		Message:   cfg.text(),
		CreatedAt: e.now(),
	}
	if err := e.store.CreateNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{
		"notification_id": notification.ID,
		"notified_user":   userID,
	}}, nil
}

// handleSendBanner records a modal in-app notification.
func (e *Engine) handleSendBanner(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[messageConfig](req.Config)
	if err != nil {
		return nil, err
	}

	userID := e.resolveRecipientUserID(ctx, req, cfg.recipientConfig)
	notification := &automation.Notification{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID(),
		UserID:    userID,
		Type:      "banner",
		Title:     defaultString(cfg.Title, "Announcement"),
		Message:   cfg.text(),
		Modal:     true,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create banner notification: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{
		"notification_id": notification.ID,
		"notified_user":   userID,
	}}, nil
}

func (e *Engine) handleSendEmail(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[messageConfig](req.Config)
	if err != nil {
		return nil, err
	}

	email, name := e.resolveRecipientEmail(ctx, req, cfg.recipientConfig)
	if email == "" {
		return nil, automation.NewStepError(automation.ErrCodeRecipientUnresolved, "no email address could be resolved for recipient").WithStepType(req.Step.StepType)
	}

	sent, err := e.email(ctx, automation.EmailMessage{
		To:       email,
		Subject:  defaultString(cfg.Subject, defaultString(cfg.Title, "Notification")),
		HTML:     cfg.text(),
		TenantID: req.TenantID(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send email to %s: %w", email, err)
	}
	return &StepResult{Output: map[string]interface{}{
		"sent":           sent,
		"email_to":       email,
		"recipient_name": name,
	}}, nil
}

func (e *Engine) handleSendSMS(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[messageConfig](req.Config)
	if err != nil {
		return nil, err
	}

	to := defaultString(cfg.Phone, req.Ctx.String("phone"))
	if to == "" {
		return nil, automation.ConfigError("phone", req.Step.StepType)
	}

	creds, err := e.creds.Twilio(ctx, req.TenantID())
	if errors.Is(err, integrations.ErrNotConfigured) {
		return e.degradeChannel(ctx, req, "sms", to, cfg.text()), nil
	}
	if err != nil {
		return nil, err
	}

	sid, err := e.registry.Twilio.SendSMS(ctx, creds, to, cfg.text())
	if err != nil {
		return nil, fmt.Errorf("failed to send sms: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{
		"sent":    true,
		"sms_to":  to,
		"sms_sid": sid,
	}}, nil
}

func (e *Engine) handleSendWhatsApp(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[messageConfig](req.Config)
	if err != nil {
		return nil, err
	}

	to := defaultString(cfg.Phone, req.Ctx.String("phone"))
	if to == "" {
		return nil, automation.ConfigError("phone", req.Step.StepType)
	}

	creds, err := e.creds.WhatsApp(ctx, req.TenantID())
	if errors.Is(err, integrations.ErrNotConfigured) {
		return e.degradeChannel(ctx, req, "whatsapp", to, cfg.text()), nil
	}
	if err != nil {
		return nil, err
	}

	messageID, err := e.registry.WhatsApp.SendMessage(ctx, creds, to, cfg.text())
	if err != nil {
		return nil, fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{
		"sent":                true,
		"whatsapp_to":         to,
		"whatsapp_message_id": messageID,
	}}, nil
}

func (e *Engine) handleSendSlack(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[messageConfig](req.Config)
	if err != nil {
		return nil, err
	}

	creds, err := e.creds.Slack(ctx, req.TenantID())
	if err != nil {
		if errors.Is(err, integrations.ErrNotConfigured) {
			return nil, automation.CredentialsMissingError(integrations.ProviderSlack).WithStepType(req.Step.StepType)
		}
		return nil, err
	}

	if err := e.registry.Slack.PostMessage(ctx, creds, cfg.text()); err != nil {
		return nil, fmt.Errorf("failed to post slack message: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"sent": true}}, nil
}

type logActivityConfig struct {
	Description string `mapstructure:"description"`
	Message     string `mapstructure:"message"`
	EntityID    string `mapstructure:"entity_id"`
	EntityType  string `mapstructure:"entity_type"`
}

func (e *Engine) handleLogActivity(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[logActivityConfig](req.Config)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"description": defaultString(cfg.Description, cfg.Message),
		"user_id":     req.UserID(),
		"run_id":      req.Run.ID,
		"created_at":  e.now(),
	}
	attachSubject(fields, cfg.EntityID, cfg.EntityType, req.Ctx)

	id, err := e.store.InsertEntity(ctx, req.TenantID(), "activities", fields)
	if err != nil {
		return nil, fmt.Errorf("failed to log activity: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"activity_id": id}}, nil
}

// degradeChannel is the availability-check-before-send policy: when a
// channel's credentials are absent, record an audit notification and a
// non-failing output instead of throwing.
func (e *Engine) degradeChannel(ctx context.Context, req *StepRequest, channel, to, body string) *StepResult {
	req.Logger.Warn().
		Str("event", automation.EventChannelDegraded).
		Str("channel", channel).
		Msg("Channel not configured, recording audit notification")

	e.notifyBestEffort(ctx, req, &automation.Notification{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID(),
		UserID:    req.UserID(),
		Type:      "channel_not_configured",
		Title:     fmt.Sprintf("Would have sent %s to %s", channel, to),
		Message:   body,
		CreatedAt: e.now(),
	})

	return &StepResult{Output: map[string]interface{}{
		"sent":    false,
		"reason":  "not_configured",
		"channel": channel,
	}}
}
