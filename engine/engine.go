// Package engine implements the workflow execution engine: the run/step
// state machine, context threading and template resolution across steps,
// the step-type dispatch table, and pause/resume/failure semantics.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaycrm/automation"
	"github.com/relaycrm/automation/integrations"
)

// Engine orchestrates workflow runs. Steps within one run execute strictly
// one at a time in step_order; multiple runs may execute concurrently, each
// owning its own context and row set.
type Engine struct {
	store    automation.Store
	creds    integrations.CredentialProvider
	registry *integrations.Registry
	email    automation.EmailSender
	logger   zerolog.Logger
	now      func() time.Time
	handlers map[string]StepHandler
}

// Option configures the engine
type Option func(*Engine)

// WithLogger sets a custom logger for the engine
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the time source, used by tests for deterministic
// timestamps in templates and delay scheduling
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithEmailSender injects the external email collaborator
func WithEmailSender(sender automation.EmailSender) Option {
	return func(e *Engine) {
		e.email = sender
	}
}

// NewEngine creates a workflow engine. If no logger is provided, a console
// logger at Info level is used; if no email sender is provided, send_email
// steps fail with a configuration error.
func NewEngine(store automation.Store, creds integrations.CredentialProvider, registry *integrations.Registry, opts ...Option) *Engine {
	defaultLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)

	eng := &Engine{
		store:    store,
		creds:    creds,
		registry: registry,
		logger:   defaultLogger,
		now:      time.Now,
		email: func(ctx context.Context, msg automation.EmailMessage) (bool, error) {
			return false, fmt.Errorf("email sender not configured")
		},
	}

	for _, opt := range opts {
		opt(eng)
	}

	eng.registerHandlers()
	return eng
}

// ExecuteWorkflow runs one workflow in response to a single triggering
// event and returns the run id. The call errors only if the run row itself
// cannot be created; every later failure is persisted onto the run and its
// step executions, and callers learn the outcome by querying run status.
func (e *Engine) ExecuteWorkflow(ctx context.Context, tenantID, workflowID string, triggerData map[string]interface{}, triggeredBy string) (string, error) {
	now := e.now()
	run := &automation.WorkflowRun{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		TenantID:    tenantID,
		Status:      automation.RunStatusRunning,
		TriggerData: triggerData,
		TriggeredBy: triggeredBy,
		StartedAt:   now,
	}

	if err := e.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("failed to create workflow run: %w", err)
	}

	runLogger := automation.RunLogger(e.logger, run)
	runLogger.Info().Str("event", automation.EventRunStarted).Msg("Workflow run started")

	steps, err := e.store.ListWorkflowSteps(ctx, tenantID, workflowID)
	if err != nil {
		runLogger.Error().Err(err).Msg("Failed to load workflow steps")
		e.failRun(ctx, run, runLogger, fmt.Errorf("failed to load workflow steps: %w", err))
		return run.ID, nil
	}

	// A workflow with zero steps is a trivially successful no-op.
	if len(steps) == 0 {
		e.completeRun(ctx, run, runLogger)
		return run.ID, nil
	}

	rc := automation.NewRunContext(run.ID, triggerData)
	e.runSteps(ctx, run, steps, 0, rc, runLogger)
	return run.ID, nil
}

// runSteps drives the iteration loop from steps[start] onward. It is
// shared by ExecuteWorkflow and ResumeRun so resumption re-enters the exact
// same control flow.
func (e *Engine) runSteps(ctx context.Context, run *automation.WorkflowRun, steps []*automation.WorkflowStep, start int, rc automation.RunContext, runLogger zerolog.Logger) {
	for i := start; i < len(steps); i++ {
		step := steps[i]
		stepLogger := automation.StepLogger(runLogger, step)

		exec := &automation.StepExecution{
			ID:        uuid.New().String(),
			RunID:     run.ID,
			TenantID:  run.TenantID,
			StepID:    step.ID,
			StepOrder: step.StepOrder,
			StepType:  step.StepType,
			Status:    automation.StepStatusRunning,
			StartedAt: e.now(),
		}
		if err := e.store.CreateStepExecution(ctx, exec); err != nil {
			stepLogger.Error().Str("event", automation.EventPersistenceError).Err(err).Msg("Failed to create step execution")
			e.failRun(ctx, run, runLogger, fmt.Errorf("failed to create step execution: %w", err))
			return
		}

		stepLogger.Info().Str("event", automation.EventStepStarted).Msg("Executing step")

		result, err := e.executeStep(ctx, run, step, exec, rc, stepLogger)
		if err != nil {
			e.finishStep(ctx, exec, automation.StepStatusFailed, nil, err.Error(), stepLogger)
			stepLogger.Error().Str("event", automation.EventStepFailed).Err(err).Msg("Step failed, stopping run")
			e.failRun(ctx, run, runLogger, err)
			return
		}

		if result.Paused {
			// The handler already moved both the run and the execution into
			// their waiting status; nothing else touches them until an
			// external actor resumes the run.
			stepLogger.Info().Str("event", automation.EventStepPaused).Msg("Run suspended by step")
			return
		}

		if result.Skipped {
			// Condition short-circuit: designed early completion, not an error.
			e.finishStep(ctx, exec, automation.StepStatusSkipped, result.Output, "", stepLogger)
			stepLogger.Info().Str("event", automation.EventStepSkipped).Msg("Condition not met, completing run")
			e.completeRun(ctx, run, runLogger)
			return
		}

		rc.Merge(result.Output)
		e.finishStep(ctx, exec, automation.StepStatusCompleted, result.Output, "", stepLogger)
		stepLogger.Info().Str("event", automation.EventStepCompleted).Msg("Step completed")
	}

	e.completeRun(ctx, run, runLogger)
}

// finishStep updates a step execution to its final or waiting status.
func (e *Engine) finishStep(ctx context.Context, exec *automation.StepExecution, status automation.StepStatus, output map[string]interface{}, errMsg string, logger zerolog.Logger) {
	now := e.now()
	exec.Status = status
	exec.Output = output
	exec.ErrorMessage = errMsg
	exec.CompletedAt = &now

	if err := e.store.UpdateStepExecution(ctx, exec); err != nil {
		logger.Error().Str("event", automation.EventPersistenceError).Err(err).Msg("Failed to update step execution")
	}
}

func (e *Engine) completeRun(ctx context.Context, run *automation.WorkflowRun, logger zerolog.Logger) {
	now := e.now()
	run.Status = automation.RunStatusCompleted
	run.CompletedAt = &now
	if err := e.store.UpdateRun(ctx, run); err != nil {
		logger.Error().Str("event", automation.EventPersistenceError).Err(err).Msg("Failed to update run on completion")
	}
	logger.Info().Str("event", automation.EventRunCompleted).Msg("Workflow run completed")
}

func (e *Engine) failRun(ctx context.Context, run *automation.WorkflowRun, logger zerolog.Logger, cause error) {
	now := e.now()
	run.Status = automation.RunStatusFailed
	run.CompletedAt = &now
	if err := e.store.UpdateRun(ctx, run); err != nil {
		logger.Error().Str("event", automation.EventPersistenceError).Err(err).Msg("Failed to update run on failure")
	}
	logger.Error().Str("event", automation.EventRunFailed).Err(cause).Msg("Workflow run failed")
}

// GetRun retrieves a workflow run
func (e *Engine) GetRun(ctx context.Context, tenantID, runID string) (*automation.WorkflowRun, error) {
	return e.store.GetRun(ctx, tenantID, runID)
}

// GetStepExecutions retrieves all step executions for a run, ordered by
// step_order
func (e *Engine) GetStepExecutions(ctx context.Context, tenantID, runID string) ([]*automation.StepExecution, error) {
	return e.store.ListStepExecutions(ctx, tenantID, runID)
}
