package engine

import (
	"context"
	"fmt"

	"github.com/relaycrm/automation"
)

// ResumeRun re-enters a suspended run at the step after the one that
// paused it. The run context is reconstructed by folding the persisted
// outputs of completed step executions in step_order, the waiting
// execution is finalized, and the same iteration loop continues. Called by
// out-of-core actors: the approval decision handler and the delay
// scheduler.
func (e *Engine) ResumeRun(ctx context.Context, tenantID, runID string) error {
	run, err := e.store.GetRun(ctx, tenantID, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if run.Status.IsTerminal() {
		return fmt.Errorf("cannot resume run %s in terminal status %s", runID, run.Status)
	}
	if !run.Status.IsWaiting() {
		return fmt.Errorf("cannot resume run %s in status %s", runID, run.Status)
	}

	execs, err := e.store.ListStepExecutions(ctx, tenantID, runID)
	if err != nil {
		return fmt.Errorf("failed to load step executions for run %s: %w", runID, err)
	}

	var waiting *automation.StepExecution
	for _, exec := range execs {
		if exec.Status == automation.StepStatusWaitingApproval || exec.Status == automation.StepStatusWaitingDelay {
			waiting = exec
		}
	}
	if waiting == nil {
		return fmt.Errorf("run %s has no waiting step execution", runID)
	}

	runLogger := automation.RunLogger(e.logger, run)

	steps, err := e.store.ListWorkflowSteps(ctx, tenantID, run.WorkflowID)
	if err != nil {
		runLogger.Error().Err(err).Msg("Failed to load workflow steps on resume")
		e.failRun(ctx, run, runLogger, fmt.Errorf("failed to load workflow steps: %w", err))
		return nil
	}

	// Finalize the waiting execution; its output joins the context like any
	// completed step's.
	now := e.now()
	waiting.Status = automation.StepStatusCompleted
	waiting.CompletedAt = &now
	if err := e.store.UpdateStepExecution(ctx, waiting); err != nil {
		return fmt.Errorf("failed to finalize waiting step execution: %w", err)
	}

	run.Status = automation.RunStatusRunning
	run.ResumeAt = nil
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to mark run %s running: %w", runID, err)
	}
	runLogger.Info().Str("event", automation.EventRunResumed).Msg("Workflow run resumed")

	rc := automation.RebuildContext(run, execs)

	next := len(steps)
	for i, step := range steps {
		if step.StepOrder > waiting.StepOrder {
			next = i
			break
		}
	}

	e.runSteps(ctx, run, steps, next, rc, runLogger)
	return nil
}

// ResumeDueRuns is the loop body of the external delay scheduler: it
// resumes every run in waiting_delay whose resume_at has passed. Failures
// resuming one run do not block the others.
func (e *Engine) ResumeDueRuns(ctx context.Context, tenantID string) ([]string, error) {
	due, err := e.store.ListRunsWaitingDelay(ctx, tenantID, e.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list due runs: %w", err)
	}

	var resumed []string
	for _, run := range due {
		if err := e.ResumeRun(ctx, tenantID, run.ID); err != nil {
			e.logger.Error().Str("run_id", run.ID).Err(err).Msg("Failed to resume due run")
			continue
		}
		resumed = append(resumed, run.ID)
	}
	return resumed, nil
}
