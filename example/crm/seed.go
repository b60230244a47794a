// Package crm seeds a demo tenant with a lead follow-up workflow for the
// example server. The workflow creates a follow-up task, waits ten minutes
// and then notifies the lead owner.
package crm

import (
	"time"

	"github.com/relaycrm/automation"
	"github.com/relaycrm/automation/store"
)

const (
	// DemoTenantID is the tenant all seeded rows belong to.
	DemoTenantID = "demo-tenant"

	// DemoWorkflowID is the seeded lead follow-up workflow.
	DemoWorkflowID = "wf-lead-followup"

	// DemoUserID is the seeded sales user who triggers demo events.
	DemoUserID = "user-demo-sales"
)

// SeedDemoData loads the demo tenant into an in-memory store.
func SeedDemoData(s *store.MemoryStore) {
	now := time.Now()

	s.PutUserProfile(&automation.UserProfile{
		ID:       DemoUserID,
		TenantID: DemoTenantID,
		Email:    "sales@example.com",
		FullName: "Demo Sales",
	})

	s.PutWorkflow(&automation.Workflow{
		ID:          DemoWorkflowID,
		TenantID:    DemoTenantID,
		Name:        "Lead follow-up",
		Status:      automation.WorkflowStatusActive,
		TriggerType: automation.TriggerLeadCreated,
		CreatedAt:   now,
	})

	s.PutWorkflowStep(&automation.WorkflowStep{
		ID:         "step-followup-task",
		WorkflowID: DemoWorkflowID,
		TenantID:   DemoTenantID,
		StepOrder:  1,
		StepType:   "create_task",
		Config: map[string]interface{}{
			"title":           "Follow up with {{lead_name}}",
			"priority":        "high",
			"due_offset_days": 1,
		},
	})

	s.PutWorkflowStep(&automation.WorkflowStep{
		ID:         "step-wait",
		WorkflowID: DemoWorkflowID,
		TenantID:   DemoTenantID,
		StepOrder:  2,
		StepType:   "wait_delay",
		Config: map[string]interface{}{
			"duration": 10,
			"unit":     "minutes",
		},
	})

	s.PutWorkflowStep(&automation.WorkflowStep{
		ID:         "step-notify-owner",
		WorkflowID: DemoWorkflowID,
		TenantID:   DemoTenantID,
		StepOrder:  3,
		StepType:   "send_notification",
		Config: map[string]interface{}{
			"title":   "New lead waiting",
			"message": "Lead {{lead_name}} has not been contacted yet.",
		},
	})
}
