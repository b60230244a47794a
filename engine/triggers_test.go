package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/automation"
	"github.com/relaycrm/automation/store"
)

func seedTriggerWorkflow(st *store.MemoryStore, id string, trigger automation.TriggerType, triggerConfig map[string]interface{}) {
	st.PutWorkflow(&automation.Workflow{
		ID:            id,
		TenantID:      testTenant,
		Name:          id,
		Status:        automation.WorkflowStatusActive,
		TriggerType:   trigger,
		TriggerConfig: triggerConfig,
		CreatedAt:     time.Now(),
	})
}

func TestCheckTriggers_StartsRunPerMatchingWorkflow(t *testing.T) {
	eng, st := newTestEngine(t)
	seedTriggerWorkflow(st, "wf-a", automation.TriggerLeadCreated, nil)
	seedTriggerWorkflow(st, "wf-b", automation.TriggerLeadCreated, nil)
	seedTriggerWorkflow(st, "wf-other", automation.TriggerPaymentReceived, nil)

	runIDs, err := eng.CheckTriggers(context.Background(), testTenant,
		automation.TriggerLeadCreated, map[string]interface{}{"lead_name": "Ada"}, testUser)
	require.NoError(t, err)
	assert.Len(t, runIDs, 2)

	for _, runID := range runIDs {
		run, err := eng.GetRun(context.Background(), testTenant, runID)
		require.NoError(t, err)
		assert.Equal(t, automation.RunStatusCompleted, run.Status)
		assert.Equal(t, "Ada", run.TriggerData["lead_name"])
	}
}

func TestCheckTriggers_InactiveWorkflowNeverFires(t *testing.T) {
	eng, st := newTestEngine(t)
	st.PutWorkflow(&automation.Workflow{
		ID:          "wf-off",
		TenantID:    testTenant,
		Status:      automation.WorkflowStatusInactive,
		TriggerType: automation.TriggerLeadCreated,
		CreatedAt:   time.Now(),
	})

	runIDs, err := eng.CheckTriggers(context.Background(), testTenant,
		automation.TriggerLeadCreated, nil, testUser)
	require.NoError(t, err)
	assert.Empty(t, runIDs)
}

func TestCheckTriggers_TaskStatusFilter(t *testing.T) {
	eng, st := newTestEngine(t)
	seedTriggerWorkflow(st, "wf-done", automation.TriggerTaskStatusChanged, map[string]interface{}{
		"from_status": "in_progress",
		"to_status":   "done",
	})

	runIDs, err := eng.CheckTriggers(context.Background(), testTenant,
		automation.TriggerTaskStatusChanged,
		map[string]interface{}{"from_status": "in_progress", "to_status": "done"}, testUser)
	require.NoError(t, err)
	assert.Len(t, runIDs, 1)

	runIDs, err = eng.CheckTriggers(context.Background(), testTenant,
		automation.TriggerTaskStatusChanged,
		map[string]interface{}{"from_status": "pending", "to_status": "done"}, testUser)
	require.NoError(t, err)
	assert.Empty(t, runIDs)
}

func TestCheckTriggers_LeadSourceFilter(t *testing.T) {
	eng, st := newTestEngine(t)
	seedTriggerWorkflow(st, "wf-web", automation.TriggerLeadCreated, map[string]interface{}{
		"lead_source": "website",
	})

	runIDs, err := eng.CheckTriggers(context.Background(), testTenant,
		automation.TriggerLeadCreated, map[string]interface{}{"lead_source": "referral"}, testUser)
	require.NoError(t, err)
	assert.Empty(t, runIDs)

	runIDs, err = eng.CheckTriggers(context.Background(), testTenant,
		automation.TriggerLeadCreated, map[string]interface{}{"lead_source": "website"}, testUser)
	require.NoError(t, err)
	assert.Len(t, runIDs, 1)
}

func TestCheckTriggers_PaymentThreshold(t *testing.T) {
	eng, st := newTestEngine(t)
	seedTriggerWorkflow(st, "wf-big", automation.TriggerPaymentReceived, map[string]interface{}{
		"min_amount": 500,
	})

	runIDs, err := eng.CheckTriggers(context.Background(), testTenant,
		automation.TriggerPaymentReceived, map[string]interface{}{"amount": 499.99}, testUser)
	require.NoError(t, err)
	assert.Empty(t, runIDs)

	runIDs, err = eng.CheckTriggers(context.Background(), testTenant,
		automation.TriggerPaymentReceived, map[string]interface{}{"amount": 500.0}, testUser)
	require.NoError(t, err)
	assert.Len(t, runIDs, 1)
}

func TestCheckTriggers_UnsetFilterKeyMatchesEverything(t *testing.T) {
	eng, st := newTestEngine(t)
	seedTriggerWorkflow(st, "wf-any", automation.TriggerInvoiceOverdue, map[string]interface{}{
		"unrelated": "value",
	})

	runIDs, err := eng.CheckTriggers(context.Background(), testTenant,
		automation.TriggerInvoiceOverdue, map[string]interface{}{"days_overdue": 3}, testUser)
	require.NoError(t, err)
	assert.Len(t, runIDs, 1)
}

func TestMatchesTriggerConfig(t *testing.T) {
	tests := []struct {
		name    string
		trigger automation.TriggerType
		config  map[string]interface{}
		data    map[string]interface{}
		want    bool
	}{
		{
			name:    "nil config matches",
			trigger: automation.TriggerLeadCreated,
			want:    true,
		},
		{
			name:    "event filter exact match",
			trigger: automation.TriggerEventScheduled,
			config:  map[string]interface{}{"event_type": "kickoff"},
			data:    map[string]interface{}{"event_type": "kickoff"},
			want:    true,
		},
		{
			name:    "event filter mismatch",
			trigger: automation.TriggerEventScheduled,
			config:  map[string]interface{}{"event_type": "kickoff"},
			data:    map[string]interface{}{"event_type": "review"},
			want:    false,
		},
		{
			name:    "threshold with string amount",
			trigger: automation.TriggerPaymentReceived,
			config:  map[string]interface{}{"min_amount": "100"},
			data:    map[string]interface{}{"amount": "250"},
			want:    true,
		},
		{
			name:    "threshold with missing amount",
			trigger: automation.TriggerPaymentReceived,
			config:  map[string]interface{}{"min_amount": 100},
			data:    map[string]interface{}{},
			want:    false,
		},
		{
			name:    "unfiltered trigger type ignores config",
			trigger: automation.TriggerClientCreated,
			config:  map[string]interface{}{"anything": "goes"},
			data:    map[string]interface{}{},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesTriggerConfig(tt.trigger, tt.config, tt.data))
		})
	}
}
