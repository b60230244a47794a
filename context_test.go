package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunContext_SeedsTriggerDataAndRunID(t *testing.T) {
	trigger := map[string]interface{}{"lead_name": "Ada", "source": "webform"}
	rc := NewRunContext("run-9", trigger)

	assert.Equal(t, "Ada", rc["lead_name"])
	assert.Equal(t, "run-9", rc["run_id"])

	// Seeding copies the map; mutating the context leaves trigger data alone.
	rc["lead_name"] = "Grace"
	assert.Equal(t, "Ada", trigger["lead_name"])
}

func TestRunContext_Lookup(t *testing.T) {
	rc := NewRunContext("run-1", map[string]interface{}{
		"lead_name": "Ada",
		"form": map[string]interface{}{
			"contact": map[string]interface{}{"email": "ada@example.com"},
		},
	})

	v, ok := rc.Lookup("lead_name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)

	v, ok = rc.Lookup("form.contact.email")
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", v)

	_, ok = rc.Lookup("form.missing")
	assert.False(t, ok)

	// Descending through a non-map value must not panic.
	_, ok = rc.Lookup("lead_name.anything")
	assert.False(t, ok)
}

func TestRunContext_Merge_LaterKeysWin(t *testing.T) {
	rc := NewRunContext("run-1", map[string]interface{}{"status": "new"})
	rc.Merge(map[string]interface{}{"status": "contacted", "task_id": "t-1"})

	assert.Equal(t, "contacted", rc["status"])
	assert.Equal(t, "t-1", rc["task_id"])
}

func TestRunContext_String(t *testing.T) {
	rc := NewRunContext("run-1", map[string]interface{}{
		"lead_name": "Ada",
		"count":     3,
	})

	assert.Equal(t, "Ada", rc.String("lead_name"))
	assert.Equal(t, "3", rc.String("count"))
	assert.Equal(t, "", rc.String("missing"))
}

func TestRebuildContext_FoldsCompletedOutputsInOrder(t *testing.T) {
	run := &WorkflowRun{
		ID:          "run-1",
		TriggerData: map[string]interface{}{"lead_name": "Ada"},
	}
	now := time.Now()
	execs := []*StepExecution{
		{StepOrder: 3, Status: StepStatusWaitingDelay, Output: map[string]interface{}{"resume_at": "later"}},
		{StepOrder: 2, Status: StepStatusCompleted, StartedAt: now, Output: map[string]interface{}{"value": "second"}},
		{StepOrder: 1, Status: StepStatusCompleted, StartedAt: now, Output: map[string]interface{}{"value": "first", "task_id": "t-1"}},
	}

	rc := RebuildContext(run, execs)

	assert.Equal(t, "Ada", rc["lead_name"])
	assert.Equal(t, "run-1", rc["run_id"])
	assert.Equal(t, "t-1", rc["task_id"])
	// Outputs fold in step order, so the later step's value wins.
	assert.Equal(t, "second", rc["value"])
	// Non-completed executions contribute nothing.
	_, ok := rc["resume_at"]
	assert.False(t, ok)
}
