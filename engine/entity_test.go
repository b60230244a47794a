package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/automation"
)

func TestUpdateStatus_UpdatesTriggerSubject(t *testing.T) {
	eng, st := newTestEngine(t)
	st.PutEntity(testTenant, "tasks", "task-1", map[string]interface{}{"status": "pending"})

	workflowID := seedWorkflow(st, automation.TriggerTaskStatusChanged,
		step("update_status", map[string]interface{}{"new_status": "done"}),
	)

	triggerData := map[string]interface{}{"entity_id": "task-1", "entity_type": "task"}
	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, triggerData, testUser)
	require.NoError(t, err)

	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusCompleted, run.Status)

	task, err := st.GetEntity(context.Background(), testTenant, "tasks", "task-1")
	require.NoError(t, err)
	assert.Equal(t, "done", task["status"])
}

func TestUpdateStatus_MissingRowStillCompletes(t *testing.T) {
	eng, st := newTestEngine(t)
	workflowID := seedWorkflow(st, automation.TriggerTaskStatusChanged,
		step("update_status", map[string]interface{}{
			"new_status":  "done",
			"entity_id":   "no-such-task",
			"entity_type": "task",
		}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	// Zero rows affected is silent success, not a failure.
	run, err := eng.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, automation.RunStatusCompleted, run.Status)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, automation.StepStatusCompleted, execs[0].Status)
	assert.Equal(t, 0, execs[0].Output["rows_affected"])
}

func TestUpdateField_SetsArbitraryColumn(t *testing.T) {
	eng, st := newTestEngine(t)
	st.PutEntity(testTenant, "clients", "client-1", map[string]interface{}{"tier": "basic"})

	workflowID := seedWorkflow(st, automation.TriggerPaymentReceived,
		step("update_field", map[string]interface{}{
			"field_name":  "tier",
			"field_value": "premium",
			"entity_id":   "client-1",
			"entity_type": "client",
		}),
	)

	_, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	client, err := st.GetEntity(context.Background(), testTenant, "clients", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "premium", client["tier"])
}

func TestAssignTo_SetsOwnerAndNotifies(t *testing.T) {
	eng, st := newTestEngine(t)
	st.PutEntity(testTenant, "projects", "proj-1", map[string]interface{}{"name": "Rebrand"})

	workflowID := seedWorkflow(st, automation.TriggerProjectCreated,
		step("assign_to", map[string]interface{}{
			"assigned_to": "user-2",
			"entity_id":   "proj-1",
			"entity_type": "project",
		}),
	)

	_, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	// Projects are owned through project_manager_id, not assigned_to.
	project, err := st.GetEntity(context.Background(), testTenant, "projects", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "user-2", project["project_manager_id"])

	notifications := st.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, "user-2", notifications[0].UserID)
	assert.Equal(t, "assignment", notifications[0].Type)
}

func TestAddTag_IsIdempotent(t *testing.T) {
	eng, st := newTestEngine(t)
	st.PutEntity(testTenant, "tasks", "task-1", map[string]interface{}{
		"tags": []string{"vip"},
	})

	workflowID := seedWorkflow(st, automation.TriggerTaskCompleted,
		step("add_tag", map[string]interface{}{
			"tag":         "vip",
			"entity_id":   "task-1",
			"entity_type": "task",
		}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, automation.StepStatusCompleted, execs[0].Status)
	assert.Equal(t, false, execs[0].Output["tags_changed"])

	task, err := st.GetEntity(context.Background(), testTenant, "tasks", "task-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, task["tags"])
}

func TestAddTag_AppendsNewTag(t *testing.T) {
	eng, st := newTestEngine(t)
	st.PutEntity(testTenant, "tasks", "task-1", map[string]interface{}{
		"tags": []string{"vip"},
	})

	workflowID := seedWorkflow(st, automation.TriggerTaskCompleted,
		step("add_tag", map[string]interface{}{
			"tag":         "urgent",
			"entity_id":   "task-1",
			"entity_type": "task",
		}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, true, execs[0].Output["tags_changed"])

	task, err := st.GetEntity(context.Background(), testTenant, "tasks", "task-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vip", "urgent"}, task["tags"])
}

func TestRemoveTag_AbsentTagIsNoOp(t *testing.T) {
	eng, st := newTestEngine(t)
	st.PutEntity(testTenant, "tasks", "task-1", map[string]interface{}{
		"tags": []string{"vip"},
	})

	workflowID := seedWorkflow(st, automation.TriggerTaskCompleted,
		step("remove_tag", map[string]interface{}{
			"tag":         "stale",
			"entity_id":   "task-1",
			"entity_type": "task",
		}),
	)

	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, nil, testUser)
	require.NoError(t, err)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, false, execs[0].Output["tags_changed"])
}

func TestCreateLead_DefaultsStatusNew(t *testing.T) {
	eng, st := newTestEngine(t)
	workflowID := seedWorkflow(st, automation.TriggerFormSubmitted,
		step("create_lead", map[string]interface{}{
			"name":  "{{form_name}}",
			"email": "{{form_email}}",
		}),
	)

	triggerData := map[string]interface{}{
		"form_name":  "Ada Lovelace",
		"form_email": "ada@example.com",
	}
	runID, err := eng.ExecuteWorkflow(context.Background(), testTenant, workflowID, triggerData, testUser)
	require.NoError(t, err)

	execs, err := eng.GetStepExecutions(context.Background(), testTenant, runID)
	require.NoError(t, err)
	require.Len(t, execs, 1)

	leadID := execs[0].Output["created_lead_id"].(string)
	lead, err := st.GetEntity(context.Background(), testTenant, "leads", leadID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", lead["name"])
	assert.Equal(t, "ada@example.com", lead["email"])
	assert.Equal(t, "new", lead["status"])
}
