package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaycrm/automation"
)

// Control-flow handlers: the conditional short-circuit and the two ways a
// run suspends (human approval, timed delay). Suspension updates state,
// returns the paused sentinel and unwinds the call stack; resumption is a
// fresh invocation driven by an external actor.

type conditionConfig struct {
	Field    string `mapstructure:"condition_field"`
	Operator string `mapstructure:"condition_operator"`
	Value    string `mapstructure:"condition_value"`
	// SkipOnFail defaults to true: a false condition completes the run
	// with this step skipped.
	SkipOnFail *bool `mapstructure:"skip_on_fail"`
}

func (e *Engine) handleCondition(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[conditionConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Field == "" {
		return nil, automation.ConfigError("condition_field", req.Step.StepType)
	}
	if cfg.Operator == "" {
		return nil, automation.ConfigError("condition_operator", req.Step.StepType)
	}

	met, err := evaluateCondition(req.Ctx, cfg.Field, cfg.Operator, cfg.Value)
	if err != nil {
		return nil, err
	}

	if !met {
		skipOnFail := cfg.SkipOnFail == nil || *cfg.SkipOnFail
		if skipOnFail {
			// Short-circuit terminator: the run completes here by design.
			return &StepResult{Skipped: true, Output: map[string]interface{}{"condition_met": false}}, nil
		}
	}
	return &StepResult{Output: map[string]interface{}{"condition_met": met}}, nil
}

func evaluateCondition(rc automation.RunContext, field, operator, expected string) (bool, error) {
	actual := rc.String(field)
	switch operator {
	case "equals":
		return actual == expected, nil
	case "not_equals":
		return actual != expected, nil
	case "contains":
		return strings.Contains(actual, expected), nil
	case "not_empty":
		return actual != "", nil
	case "is_empty":
		return actual == "", nil
	case "greater_than":
		a, b, err := numericPair(actual, expected)
		if err != nil {
			return false, err
		}
		return a > b, nil
	case "less_than":
		a, b, err := numericPair(actual, expected)
		if err != nil {
			return false, err
		}
		return a < b, nil
	default:
		return false, automation.NewStepError(automation.ErrCodeConfigInvalid, "unknown condition operator %q", operator).WithStepType("condition")
	}
}

func numericPair(actual, expected string) (float64, float64, error) {
	a, err := strconv.ParseFloat(actual, 64)
	if err != nil {
		return 0, 0, automation.NewStepError(automation.ErrCodeConfigInvalid, "condition field value %q is not numeric", actual).WithStepType("condition")
	}
	b, err := strconv.ParseFloat(expected, 64)
	if err != nil {
		return 0, 0, automation.NewStepError(automation.ErrCodeConfigInvalid, "condition value %q is not numeric", expected).WithStepType("condition")
	}
	return a, b, nil
}

type approvalConfig struct {
	recipientConfig `mapstructure:",squash"`
	Title           string `mapstructure:"title"`
	Message         string `mapstructure:"message"`
}

// handleApproval creates an approval request addressed to the resolved
// approver (default: triggering user), notifies them, moves both the step
// execution and the run into waiting_approval, and returns the paused
// sentinel.
func (e *Engine) handleApproval(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[approvalConfig](req.Config)
	if err != nil {
		return nil, err
	}

	approverID := e.resolveRecipientUserID(ctx, req, cfg.recipientConfig)
	approval := &automation.Approval{
		ID:              uuid.New().String(),
		TenantID:        req.TenantID(),
		RunID:           req.Run.ID,
		StepExecutionID: req.Exec.ID,
		ApproverID:      approverID,
		Title:           defaultString(cfg.Title, "Approval required"),
		Message:         cfg.Message,
		Status:          automation.ApprovalStatusPending,
		CreatedAt:       e.now(),
	}
	if err := e.store.CreateApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to create approval request: %w", err)
	}

	e.notifyBestEffort(ctx, req, &automation.Notification{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID(),
		UserID:    approverID,
		Type:      "approval_request",
		Title:     approval.Title,
		Message:   approval.Message,
		CreatedAt: e.now(),
	})

	output := map[string]interface{}{"approval_id": approval.ID, "approver_id": approverID}
	if err := e.pauseRun(ctx, req, automation.StepStatusWaitingApproval, automation.RunStatusWaitingApproval, output, nil); err != nil {
		return nil, err
	}
	return &StepResult{Paused: true, Output: output}, nil
}

type delayConfig struct {
	Duration     float64 `mapstructure:"duration"`
	Unit         string  `mapstructure:"unit"`
	ScheduleType string  `mapstructure:"schedule_type"`
	AtTime       string  `mapstructure:"at_time"`
}

// handleWaitDelay computes resume_at from a relative duration and unit,
// moves run and execution into waiting_delay and returns the paused
// sentinel. No internal timer exists; resumption belongs to an external
// scheduler.
func (e *Engine) handleWaitDelay(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[delayConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Duration <= 0 {
		return nil, automation.ConfigError("duration", req.Step.StepType)
	}

	delay, err := durationIn(cfg.Duration, cfg.Unit)
	if err != nil {
		return nil, err
	}

	resumeAt := e.now().Add(delay)
	return e.pauseForDelay(ctx, req, resumeAt, map[string]interface{}{
		"resume_at": resumeAt.Format(time.RFC3339),
	})
}

// handleScheduleAction schedules resumption from a relative delay, a fixed
// clock time, or the next business day.
func (e *Engine) handleScheduleAction(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[delayConfig](req.Config)
	if err != nil {
		return nil, err
	}

	var resumeAt time.Time
	now := e.now()
	switch cfg.ScheduleType {
	case "", "delay":
		if cfg.Duration <= 0 {
			return nil, automation.ConfigError("duration", req.Step.StepType)
		}
		delay, err := durationIn(cfg.Duration, cfg.Unit)
		if err != nil {
			return nil, err
		}
		resumeAt = now.Add(delay)
	case "fixed_time":
		resumeAt, err = nextClockTime(now, cfg.AtTime)
		if err != nil {
			return nil, err
		}
	case "next_business_day":
		resumeAt = nextBusinessDay(now, cfg.AtTime)
	default:
		return nil, automation.NewStepError(automation.ErrCodeConfigInvalid, "unknown schedule_type %q", cfg.ScheduleType).WithStepType(req.Step.StepType)
	}

	return e.pauseForDelay(ctx, req, resumeAt, map[string]interface{}{
		"resume_at":     resumeAt.Format(time.RFC3339),
		"schedule_type": defaultString(cfg.ScheduleType, "delay"),
	})
}

func (e *Engine) pauseForDelay(ctx context.Context, req *StepRequest, resumeAt time.Time, output map[string]interface{}) (*StepResult, error) {
	if err := e.pauseRun(ctx, req, automation.StepStatusWaitingDelay, automation.RunStatusWaitingDelay, output, &resumeAt); err != nil {
		return nil, err
	}
	return &StepResult{Paused: true, Output: output}, nil
}

// pauseRun persists the waiting status on both the step execution and the
// run row before the handler returns the paused sentinel. Nothing else
// updates either row until the run is externally resumed.
func (e *Engine) pauseRun(ctx context.Context, req *StepRequest, stepStatus automation.StepStatus, runStatus automation.RunStatus, output map[string]interface{}, resumeAt *time.Time) error {
	req.Exec.Status = stepStatus
	req.Exec.Output = output
	if err := e.store.UpdateStepExecution(ctx, req.Exec); err != nil {
		return fmt.Errorf("failed to suspend step execution: %w", err)
	}

	req.Run.Status = runStatus
	req.Run.ResumeAt = resumeAt
	if err := e.store.UpdateRun(ctx, req.Run); err != nil {
		return fmt.Errorf("failed to suspend run: %w", err)
	}

	req.Logger.Info().
		Str("event", automation.EventRunPaused).
		Str("status", runStatus.String()).
		Msg("Run suspended")
	return nil
}

// durationIn converts a duration amount in the given unit. An unset unit
// means minutes; anything else unrecognized is a config error.
func durationIn(amount float64, unit string) (time.Duration, error) {
	switch unit {
	case "", "minutes":
		return time.Duration(amount * float64(time.Minute)), nil
	case "hours":
		return time.Duration(amount * float64(time.Hour)), nil
	case "days":
		return time.Duration(amount * 24 * float64(time.Hour)), nil
	case "weeks":
		return time.Duration(amount * 7 * 24 * float64(time.Hour)), nil
	default:
		return 0, automation.NewStepError(automation.ErrCodeConfigInvalid, "unknown duration unit %q", unit)
	}
}

// nextClockTime returns the next occurrence of an HH:MM wall-clock time.
func nextClockTime(now time.Time, atTime string) (time.Time, error) {
	parsed, err := time.Parse("15:04", atTime)
	if err != nil {
		return time.Time{}, automation.NewStepError(automation.ErrCodeConfigInvalid, "at_time %q is not HH:MM", atTime).WithStepType("schedule_action")
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// nextBusinessDay returns the next weekday at the given HH:MM (09:00 when
// unset).
func nextBusinessDay(now time.Time, atTime string) time.Time {
	hour, minute := 9, 0
	if parsed, err := time.Parse("15:04", atTime); err == nil {
		hour, minute = parsed.Hour(), parsed.Minute()
	}

	next := now.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return time.Date(next.Year(), next.Month(), next.Day(), hour, minute, 0, 0, now.Location())
}
