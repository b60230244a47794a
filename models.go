package automation

import (
	"context"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow definition
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
)

// TriggerType is the category of domain event a workflow subscribes to
type TriggerType string

const (
	TriggerLeadCreated       TriggerType = "lead_created"
	TriggerLeadStatusChanged TriggerType = "lead_status_changed"
	TriggerClientCreated     TriggerType = "client_created"
	TriggerPaymentReceived   TriggerType = "payment_received"
	TriggerInvoiceOverdue    TriggerType = "invoice_overdue"
	TriggerTaskStatusChanged TriggerType = "task_status_changed"
	TriggerTaskCompleted     TriggerType = "task_completed"
	TriggerProjectCreated    TriggerType = "project_created"
	TriggerEventScheduled    TriggerType = "event_scheduled"
	TriggerFormSubmitted     TriggerType = "form_submitted"
)

// String returns the string representation
func (t TriggerType) String() string {
	return string(t)
}

// RunStatus represents the current state of a workflow run
type RunStatus string

const (
	RunStatusRunning         RunStatus = "running"
	RunStatusWaitingApproval RunStatus = "waiting_approval"
	RunStatusWaitingDelay    RunStatus = "waiting_delay"
	RunStatusCompleted       RunStatus = "completed"
	RunStatusFailed          RunStatus = "failed"
)

// IsTerminal returns true if the status admits no further transitions
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// IsWaiting returns true if the run is suspended awaiting an external resume
func (s RunStatus) IsWaiting() bool {
	return s == RunStatusWaitingApproval || s == RunStatusWaitingDelay
}

// String returns the string representation
func (s RunStatus) String() string {
	return string(s)
}

// StepStatus represents the current state of a step execution
type StepStatus string

const (
	StepStatusRunning         StepStatus = "running"
	StepStatusCompleted       StepStatus = "completed"
	StepStatusFailed          StepStatus = "failed"
	StepStatusSkipped         StepStatus = "skipped"
	StepStatusWaitingApproval StepStatus = "waiting_approval"
	StepStatusWaitingDelay    StepStatus = "waiting_delay"
)

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// String returns the string representation
func (s StepStatus) String() string {
	return string(s)
}

// Workflow is a tenant-scoped automation definition. It is created and
// edited outside the engine and read-only during execution.
type Workflow struct {
	ID            string                 `json:"id" dynamodbav:"id"`
	TenantID      string                 `json:"tenantId" dynamodbav:"tenant_id"`
	Name          string                 `json:"name" dynamodbav:"name"`
	Status        WorkflowStatus         `json:"status" dynamodbav:"status"`
	TriggerType   TriggerType            `json:"triggerType" dynamodbav:"trigger_type"`
	TriggerConfig map[string]interface{} `json:"triggerConfig,omitempty" dynamodbav:"trigger_config,omitempty"`
	CreatedAt     time.Time              `json:"createdAt" dynamodbav:"created_at"`
}

// WorkflowStep is one configured unit of work within a workflow. StepOrder
// defines the total order of execution within a run; Config is a free-form
// key-value map whose string values may contain {{template}} placeholders.
// Steps are immutable during a run.
type WorkflowStep struct {
	ID         string                 `json:"id" dynamodbav:"id"`
	WorkflowID string                 `json:"workflowId" dynamodbav:"workflow_id"`
	TenantID   string                 `json:"tenantId" dynamodbav:"tenant_id"`
	StepOrder  int                    `json:"stepOrder" dynamodbav:"step_order"`
	StepType   string                 `json:"stepType" dynamodbav:"step_type"`
	Config     map[string]interface{} `json:"config,omitempty" dynamodbav:"config,omitempty"`
}

// WorkflowRun is one execution instance of a workflow, triggered by one
// domain event. TriggerData is frozen at start; only the run controller and
// the pausing step handlers mutate the row. ResumeAt is the cursor consumed
// by the external scheduler for runs paused in waiting_delay.
type WorkflowRun struct {
	ID          string                 `json:"id" dynamodbav:"id"`
	WorkflowID  string                 `json:"workflowId" dynamodbav:"workflow_id"`
	TenantID    string                 `json:"tenantId" dynamodbav:"tenant_id"`
	Status      RunStatus              `json:"status" dynamodbav:"status"`
	TriggerData map[string]interface{} `json:"triggerData,omitempty" dynamodbav:"trigger_data,omitempty"`
	TriggeredBy string                 `json:"triggeredBy,omitempty" dynamodbav:"triggered_by,omitempty"`
	StartedAt   time.Time              `json:"startedAt" dynamodbav:"started_at"`
	CompletedAt *time.Time             `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	ResumeAt    *time.Time             `json:"resumeAt,omitempty" dynamodbav:"resume_at,omitempty"`
}

// StepExecution is the persisted record of one attempt to run one step
// within one run. Created immediately before the step handler is invoked
// and updated exactly once afterwards to a terminal or waiting status.
type StepExecution struct {
	ID           string                 `json:"id" dynamodbav:"id"`
	RunID        string                 `json:"runId" dynamodbav:"run_id"`
	TenantID     string                 `json:"tenantId" dynamodbav:"tenant_id"`
	StepID       string                 `json:"stepId" dynamodbav:"step_id"`
	StepOrder    int                    `json:"stepOrder" dynamodbav:"step_order"`
	StepType     string                 `json:"stepType" dynamodbav:"step_type"`
	Status       StepStatus             `json:"status" dynamodbav:"status"`
	Output       map[string]interface{} `json:"output,omitempty" dynamodbav:"output,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty" dynamodbav:"error_message,omitempty"`
	StartedAt    time.Time              `json:"startedAt" dynamodbav:"started_at"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
}

// ApprovalStatus represents the decision state of an approval request
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// Approval is a human-approval request created by an approval step. The
// decision is recorded by an out-of-core actor which then resumes the run.
type Approval struct {
	ID              string         `json:"id" dynamodbav:"id"`
	TenantID        string         `json:"tenantId" dynamodbav:"tenant_id"`
	RunID           string         `json:"runId" dynamodbav:"run_id"`
	StepExecutionID string         `json:"stepExecutionId" dynamodbav:"step_execution_id"`
	ApproverID      string         `json:"approverId" dynamodbav:"approver_id"`
	Title           string         `json:"title" dynamodbav:"title"`
	Message         string         `json:"message,omitempty" dynamodbav:"message,omitempty"`
	Status          ApprovalStatus `json:"status" dynamodbav:"status"`
	CreatedAt       time.Time      `json:"createdAt" dynamodbav:"created_at"`
	DecidedAt       *time.Time     `json:"decidedAt,omitempty" dynamodbav:"decided_at,omitempty"`
}

// Notification is an in-app notification row. Modal notifications surface
// as blocking dialogs (used for actionable setup errors and banners).
type Notification struct {
	ID        string    `json:"id" dynamodbav:"id"`
	TenantID  string    `json:"tenantId" dynamodbav:"tenant_id"`
	UserID    string    `json:"userId" dynamodbav:"user_id"`
	Type      string    `json:"type" dynamodbav:"type"`
	Title     string    `json:"title" dynamodbav:"title"`
	Message   string    `json:"message,omitempty" dynamodbav:"message,omitempty"`
	Modal     bool      `json:"modal" dynamodbav:"modal"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// IntegrationCredential is a tenant-scoped credential row keyed by provider
// name. Credentials is a flat map of provider-specific secrets.
type IntegrationCredential struct {
	TenantID    string            `json:"tenantId" dynamodbav:"tenant_id"`
	Provider    string            `json:"provider" dynamodbav:"provider"`
	IsActive    bool              `json:"isActive" dynamodbav:"is_active"`
	Credentials map[string]string `json:"credentials" dynamodbav:"credentials"`
	UpdatedAt   time.Time         `json:"updatedAt" dynamodbav:"updated_at"`
}

// UserProfile is the slice of a user row the engine needs for recipient
// resolution.
type UserProfile struct {
	ID       string `json:"id" dynamodbav:"id"`
	TenantID string `json:"tenantId" dynamodbav:"tenant_id"`
	Email    string `json:"email" dynamodbav:"email"`
	FullName string `json:"fullName,omitempty" dynamodbav:"full_name,omitempty"`
}

// EmailMessage is the contract with the external email-sending collaborator.
type EmailMessage struct {
	To       string
	Subject  string
	HTML     string
	TenantID string
}

// EmailSender delivers one email and reports whether it was sent. It is an
// external collaborator injected into the engine.
type EmailSender func(ctx context.Context, msg EmailMessage) (bool, error)
