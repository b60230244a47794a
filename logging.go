package automation

import (
	"github.com/rs/zerolog"
)

// Log event names
const (
	// Run-level events
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
	EventRunPaused    = "run_paused"
	EventRunResumed   = "run_resumed"

	// Step-level events
	EventStepStarted   = "step_started"
	EventStepCompleted = "step_completed"
	EventStepFailed    = "step_failed"
	EventStepSkipped   = "step_skipped"
	EventStepPaused    = "step_paused"

	// Trigger events
	EventTriggerMatched = "trigger_matched"
	EventTriggerSkipped = "trigger_skipped"

	// Side-effect and persistence events
	EventNotifyFailed     = "notify_failed"
	EventPersistenceError = "persistence_error"
	EventChannelDegraded  = "channel_degraded"
)

// RunLogger creates a logger enriched with run context
func RunLogger(base zerolog.Logger, run *WorkflowRun) zerolog.Logger {
	return base.With().
		Str("run_id", run.ID).
		Str("workflow_id", run.WorkflowID).
		Str("tenant_id", run.TenantID).
		Logger()
}

// StepLogger creates a logger enriched with step context
func StepLogger(runLogger zerolog.Logger, step *WorkflowStep) zerolog.Logger {
	return runLogger.With().
		Str("step_id", step.ID).
		Str("step_type", step.StepType).
		Int("step_order", step.StepOrder).
		Logger()
}
