package automation

import (
	"context"
	"time"
)

// Store defines the persistence interface for the automation engine. All
// rows are tenant-scoped. Concrete implementations live in the store
// package (the interface is defined here to avoid import cycles).
//
// The engine only needs insert/select/update-by-id primitives; no
// implementation is required to provide transactions spanning tables.
type Store interface {
	// Workflow definitions (read-only to the engine)
	GetWorkflow(ctx context.Context, tenantID, workflowID string) (*Workflow, error)
	ListActiveWorkflows(ctx context.Context, tenantID string, trigger TriggerType) ([]*Workflow, error)
	// ListWorkflowSteps returns the workflow's steps ordered by step_order.
	ListWorkflowSteps(ctx context.Context, tenantID, workflowID string) ([]*WorkflowStep, error)

	// Workflow runs
	CreateRun(ctx context.Context, run *WorkflowRun) error
	GetRun(ctx context.Context, tenantID, runID string) (*WorkflowRun, error)
	UpdateRun(ctx context.Context, run *WorkflowRun) error
	// ListRunsWaitingDelay returns runs in waiting_delay whose resume_at is
	// at or before the given instant.
	ListRunsWaitingDelay(ctx context.Context, tenantID string, before time.Time) ([]*WorkflowRun, error)

	// Step executions
	CreateStepExecution(ctx context.Context, exec *StepExecution) error
	UpdateStepExecution(ctx context.Context, exec *StepExecution) error
	// ListStepExecutions returns a run's executions ordered by step_order.
	ListStepExecutions(ctx context.Context, tenantID, runID string) ([]*StepExecution, error)

	// Approvals and in-app notifications
	CreateApproval(ctx context.Context, approval *Approval) error
	CreateNotification(ctx context.Context, notification *Notification) error

	// Tenant-scoped integration credentials, keyed by provider name.
	// Returns ErrNotFound when the row is absent or inactive.
	GetIntegration(ctx context.Context, tenantID, provider string) (*IntegrationCredential, error)

	// Domain entities, addressed by table name (tasks, projects, clients,
	// leads, contacts, events, invoices, activities, ...)
	InsertEntity(ctx context.Context, tenantID, table string, fields map[string]interface{}) (string, error)
	GetEntity(ctx context.Context, tenantID, table, id string) (map[string]interface{}, error)
	// UpdateEntity applies a partial update and returns the number of rows
	// affected. Zero rows is not an error.
	UpdateEntity(ctx context.Context, tenantID, table, id string, fields map[string]interface{}) (int, error)

	// User profiles, for recipient resolution
	GetUserProfile(ctx context.Context, tenantID, userID string) (*UserProfile, error)
}
