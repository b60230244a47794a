package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/relaycrm/automation"
)

// StepRequest carries everything one step handler needs: the resolved
// config, the accumulated run context, and the identities of the run, step
// and execution rows.
type StepRequest struct {
	Run    *automation.WorkflowRun
	Step   *automation.WorkflowStep
	Exec   *automation.StepExecution
	Config map[string]interface{}
	Ctx    automation.RunContext
	Logger zerolog.Logger
}

// TenantID is the tenant the run belongs to.
func (r *StepRequest) TenantID() string {
	return r.Run.TenantID
}

// UserID is the user whose action triggered the run.
func (r *StepRequest) UserID() string {
	return r.Run.TriggeredBy
}

// StepResult is a handler's outcome: an output map merged into the run
// context, the paused sentinel (the handler has already moved run and
// execution into a waiting status), or the skipped short-circuit from a
// false condition.
type StepResult struct {
	Output  map[string]interface{}
	Paused  bool
	Skipped bool
}

// StepHandler performs one unit of work for one step type. A returned
// error is fatal to the run.
type StepHandler func(ctx context.Context, req *StepRequest) (*StepResult, error)

// registerHandlers builds the step-type dispatch table.
func (e *Engine) registerHandlers() {
	e.handlers = map[string]StepHandler{
		// Record creators
		"create_task":    e.handleCreateTask,
		"create_project": e.handleCreateProject,
		"create_event":   e.handleCreateEvent,
		"create_invoice": e.handleCreateInvoice,
		"create_client":  e.handleCreateClient,
		"create_lead":    e.handleCreateLead,
		"create_contact": e.handleCreateContact,

		// Entity mutators
		"update_status": e.handleUpdateStatus,
		"update_field":  e.handleUpdateField,
		"assign_to":     e.handleAssignTo,
		"add_tag":       e.handleAddTag,
		"remove_tag":    e.handleRemoveTag,

		// Messaging
		"send_notification": e.handleSendNotification,
		"send_email":        e.handleSendEmail,
		"send_sms":          e.handleSendSMS,
		"send_whatsapp":     e.handleSendWhatsApp,
		"send_slack":        e.handleSendSlack,
		"send_banner":       e.handleSendBanner,
		"log_activity":      e.handleLogActivity,

		// Control flow
		"condition":       e.handleCondition,
		"approval":        e.handleApproval,
		"wait_delay":      e.handleWaitDelay,
		"schedule_action": e.handleScheduleAction,

		// Outbound integrations
		"webhook":               e.handleWebhook,
		"http_request":          e.handleHTTPRequest,
		"zapier_trigger":        e.handleZapierTrigger,
		"google_calendar_event": e.handleGoogleCalendarEvent,
		"openai_generate":       e.handleOpenAIGenerate,
		"stripe_payment_link":   e.handleStripePaymentLink,
		"elevenlabs_tts":        e.handleElevenLabsTTS,
	}
}

// executeStep resolves the step's template placeholders against the
// current context and dispatches to the step-type handler. Unknown step
// types are a fatal error, never silently skipped.
func (e *Engine) executeStep(ctx context.Context, run *automation.WorkflowRun, step *automation.WorkflowStep, exec *automation.StepExecution, rc automation.RunContext, logger zerolog.Logger) (*StepResult, error) {
	handler, ok := e.handlers[step.StepType]
	if !ok {
		return nil, automation.UnknownStepTypeError(step.StepType)
	}

	resolved := automation.ResolveTemplates(step.Config, rc, e.now())

	return handler(ctx, &StepRequest{
		Run:    run,
		Step:   step,
		Exec:   exec,
		Config: resolved,
		Ctx:    rc,
		Logger: logger,
	})
}
