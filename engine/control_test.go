package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/automation"
)

func TestCondition_MetContinuesRun(t *testing.T) {
	eng, st := newTestEngine(t)
	workflowID := seedWorkflow(st, automation.TriggerLeadCreated,
		step("condition", map[string]interface{}{
			"condition_field":    "lead_email",
			"condition_operator": "not_empty",
		}),
		step("send_notification", map[string]interface{}{"message": "reached"}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID,
		map[string]interface{}{"lead_email": "ada@example.com"}, testUser)
	require.NoError(t, err)

	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusCompleted, run.Status)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, automation.StepStatusCompleted, execs[0].Status)
	assert.Equal(t, true, execs[0].Output["condition_met"])
	require.Len(t, st.Notifications(), 1)
}

func TestCondition_NotMetSkipsAndCompletes(t *testing.T) {
	eng, st := newTestEngine(t)
	workflowID := seedWorkflow(st, automation.TriggerLeadCreated,
		step("condition", map[string]interface{}{
			"condition_field":    "lead_source",
			"condition_operator": "equals",
			"condition_value":    "website",
		}),
		step("send_notification", map[string]interface{}{"message": "never reached"}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID,
		map[string]interface{}{"lead_source": "referral"}, testUser)
	require.NoError(t, err)

	// A false condition is designed early completion, not a failure.
	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusCompleted, run.Status)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, automation.StepStatusSkipped, execs[0].Status)
	assert.Empty(t, st.Notifications())
}

func TestCondition_NotMetWithSkipOnFailDisabled(t *testing.T) {
	eng, st := newTestEngine(t)
	workflowID := seedWorkflow(st, automation.TriggerLeadCreated,
		step("condition", map[string]interface{}{
			"condition_field":    "amount",
			"condition_operator": "greater_than",
			"condition_value":    "100",
			"skip_on_fail":       false,
		}),
		step("send_notification", map[string]interface{}{"message": "still reached"}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID,
		map[string]interface{}{"amount": 50}, testUser)
	require.NoError(t, err)

	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusCompleted, run.Status)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, automation.StepStatusCompleted, execs[0].Status)
	assert.Equal(t, false, execs[0].Output["condition_met"])
	require.Len(t, st.Notifications(), 1)
}

func TestCondition_EmptyValueOperators(t *testing.T) {
	eng, st := newTestEngine(t)
	workflowID := seedWorkflow(st, automation.TriggerLeadCreated,
		step("condition", map[string]interface{}{
			"condition_field":    "notes",
			"condition_operator": "not_empty",
		}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID,
		map[string]interface{}{"notes": ""}, testUser)
	require.NoError(t, err)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, automation.StepStatusSkipped, execs[0].Status)
}

func TestWaitDelay_SuspendsRunWithResumeAt(t *testing.T) {
	clock := newTestClock()
	eng, st := newTestEngine(t, WithClock(clock.Now))
	workflowID := seedWorkflow(st, automation.TriggerLeadCreated,
		step("wait_delay", map[string]interface{}{
			"duration": 2,
			"unit":     "hours",
		}),
		step("send_notification", map[string]interface{}{"message": "after the wait"}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusWaitingDelay, run.Status)
	require.NotNil(t, run.ResumeAt)
	assert.Equal(t, clock.now.Add(2*time.Hour), *run.ResumeAt)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, automation.StepStatusWaitingDelay, execs[0].Status)
	assert.Equal(t, clock.now.Add(2*time.Hour).Format(time.RFC3339), execs[0].Output["resume_at"])

	// Nothing beyond the delay step ran.
	assert.Empty(t, st.Notifications())
}

func TestResumeDueRuns_ResumesAfterDeadline(t *testing.T) {
	clock := newTestClock()
	eng, st := newTestEngine(t, WithClock(clock.Now))
	workflowID := seedWorkflow(st, automation.TriggerLeadCreated,
		step("wait_delay", map[string]interface{}{"duration": 30, "unit": "minutes"}),
		step("send_notification", map[string]interface{}{"message": "after the wait"}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	// Before the deadline the scheduler finds nothing.
	resumed, err := eng.ResumeDueRuns(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, resumed)

	clock.now = clock.now.Add(time.Hour)
	resumed, err = eng.ResumeDueRuns(context.Background(), testTenant)
	require.NoError(t, err)
	require.Equal(t, []string{runID}, resumed)

	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusCompleted, run.Status)
	assert.Nil(t, run.ResumeAt)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, automation.StepStatusCompleted, execs[0].Status)
	assert.Equal(t, automation.StepStatusCompleted, execs[1].Status)
	require.Len(t, st.Notifications(), 1)
}

func TestApproval_SuspendsAndResumeContinues(t *testing.T) {
	eng, st := newTestEngine(t)
	workflowID := seedWorkflow(st, automation.TriggerPaymentReceived,
		step("approval", map[string]interface{}{
			"title":          "Approve refund",
			"recipient_type": "specific_id",
			"recipient_id":   "manager-1",
		}),
		step("send_notification", map[string]interface{}{"message": "approved path"}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusWaitingApproval, run.Status)

	approvals := st.Approvals()
	require.Len(t, approvals, 1)
	assert.Equal(t, automation.ApprovalStatusPending, approvals[0].Status)
	assert.Equal(t, "manager-1", approvals[0].ApproverID)
	assert.Equal(t, runID, approvals[0].RunID)

	// The approver was notified when the request was created.
	notifications := st.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, "manager-1", notifications[0].UserID)
	assert.Equal(t, "approval_request", notifications[0].Type)

	// An out-of-core actor records the decision and resumes the run.
	require.NoError(t, eng.ResumeRun(context.Background(), testTenant, runID))

	run, err = eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusCompleted, run.Status)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, automation.StepStatusCompleted, execs[0].Status)
	assert.Equal(t, automation.StepStatusCompleted, execs[1].Status)
	require.Len(t, st.Notifications(), 2)
}

func TestResumeRun_RejectsNonWaitingRun(t *testing.T) {
	eng, st := newTestEngine(t)
	workflowID := seedWorkflow(st, automation.TriggerLeadCreated)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	err = eng.ResumeRun(context.Background(), testTenant, runID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal status")
}

func TestScheduleAction_NextBusinessDaySkipsWeekend(t *testing.T) {
	clock := newTestClock()
	// 2025-03-14 is a Friday.
	clock.now = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	eng, st := newTestEngine(t, WithClock(clock.Now))
	workflowID := seedWorkflow(st, automation.TriggerInvoiceOverdue,
		step("schedule_action", map[string]interface{}{
			"schedule_type": "next_business_day",
		}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusWaitingDelay, run.Status)
	require.NotNil(t, run.ResumeAt)
	assert.Equal(t, time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC), *run.ResumeAt)
}

func TestScheduleAction_FixedTime(t *testing.T) {
	// newTestClock starts at 2025-03-10 09:00 UTC.
	tests := []struct {
		name   string
		atTime string
		want   time.Time
	}{
		{"later today", "15:30", time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)},
		{"already passed rolls to tomorrow", "08:00", time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := newTestClock()
			eng, st := newTestEngine(t, WithClock(clock.Now))
			workflowID := seedWorkflow(st, automation.TriggerInvoiceOverdue,
				step("schedule_action", map[string]interface{}{
					"schedule_type": "fixed_time",
					"at_time":       tc.atTime,
				}),
			)

			runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
			require.NoError(t, err)

			run, err := eng.GetRun(context.Background(), testTenant, runID)
			require.NoError(t, err)
			assert.Equal(t, automation.RunStatusWaitingDelay, run.Status)
			require.NotNil(t, run.ResumeAt)
			assert.Equal(t, tc.want, *run.ResumeAt)

			execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
			require.NoError(t, err)
			require.Len(t, execs, 1)
			assert.Equal(t, "fixed_time", execs[0].Output["schedule_type"])
			assert.Equal(t, tc.want.Format(time.RFC3339), execs[0].Output["resume_at"])
		})
	}
}

func TestWaitDelay_UnknownUnitFailsRun(t *testing.T) {
	eng, st := newTestEngine(t)
	workflowID := seedWorkflow(st, automation.TriggerLeadCreated,
		step("wait_delay", map[string]interface{}{
			"duration": 2,
			"unit":     "fortnights",
		}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusFailed, run.Status)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, automation.StepStatusFailed, execs[0].Status)
	assert.Contains(t, execs[0].ErrorMessage, automation.ErrCodeConfigInvalid)
	assert.Contains(t, execs[0].ErrorMessage, `unknown duration unit "fortnights"`)
}
