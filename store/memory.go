package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relaycrm/automation"
)

// MemoryStore implements automation.Store using in-memory storage (for testing)
type MemoryStore struct {
	workflows      map[string]*automation.Workflow                 // tenantID/workflowID -> workflow
	steps          map[string][]*automation.WorkflowStep           // tenantID/workflowID -> steps
	runs           map[string]*automation.WorkflowRun              // tenantID/runID -> run
	stepExecutions map[string]map[string]*automation.StepExecution // tenantID/runID -> execID -> execution
	approvals      []*automation.Approval
	notifications  []*automation.Notification
	integrations   map[string]*automation.IntegrationCredential // tenantID/provider -> credential
	entities       map[string]map[string]map[string]interface{} // tenantID/table -> id -> fields
	profiles       map[string]*automation.UserProfile           // tenantID/userID -> profile
	mu             sync.RWMutex
}

var _ automation.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory automation store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:      make(map[string]*automation.Workflow),
		steps:          make(map[string][]*automation.WorkflowStep),
		runs:           make(map[string]*automation.WorkflowRun),
		stepExecutions: make(map[string]map[string]*automation.StepExecution),
		integrations:   make(map[string]*automation.IntegrationCredential),
		entities:       make(map[string]map[string]map[string]interface{}),
		profiles:       make(map[string]*automation.UserProfile),
	}
}

func scopedKey(tenantID, id string) string {
	return tenantID + "/" + id
}

// Workflow definition operations

// PutWorkflow seeds a workflow definition. Definitions are read-only to the
// engine, so there is no engine-facing write path.
func (s *MemoryStore) PutWorkflow(wf *automation.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wfCopy := *wf
	s.workflows[scopedKey(wf.TenantID, wf.ID)] = &wfCopy
}

// PutWorkflowStep seeds one step of a workflow definition.
func (s *MemoryStore) PutWorkflowStep(step *automation.WorkflowStep) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stepCopy := *step
	key := scopedKey(step.TenantID, step.WorkflowID)
	s.steps[key] = append(s.steps[key], &stepCopy)
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, tenantID, workflowID string) (*automation.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, exists := s.workflows[scopedKey(tenantID, workflowID)]
	if !exists {
		return nil, automation.ErrNotFound
	}

	// Deep copy
	wfCopy := *wf
	return &wfCopy, nil
}

func (s *MemoryStore) ListActiveWorkflows(ctx context.Context, tenantID string, trigger automation.TriggerType) ([]*automation.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var workflows []*automation.Workflow
	for _, wf := range s.workflows {
		if wf.TenantID != tenantID || wf.TriggerType != trigger {
			continue
		}
		if wf.Status != automation.WorkflowStatusActive {
			continue
		}

		wfCopy := *wf
		workflows = append(workflows, &wfCopy)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (s *MemoryStore) ListWorkflowSteps(ctx context.Context, tenantID, workflowID string) ([]*automation.WorkflowStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.steps[scopedKey(tenantID, workflowID)]

	steps := make([]*automation.WorkflowStep, 0, len(stored))
	for _, step := range stored {
		stepCopy := *step
		steps = append(steps, &stepCopy)
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StepOrder < steps[j].StepOrder
	})

	return steps, nil
}

// Workflow run operations

func (s *MemoryStore) CreateRun(ctx context.Context, run *automation.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopedKey(run.TenantID, run.ID)
	if _, exists := s.runs[key]; exists {
		return fmt.Errorf("workflow run %s already exists", run.ID)
	}

	// Deep copy
	runCopy := *run
	s.runs[key] = &runCopy
	s.stepExecutions[key] = make(map[string]*automation.StepExecution)

	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, tenantID, runID string) (*automation.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[scopedKey(tenantID, runID)]
	if !exists {
		return nil, automation.ErrNotFound
	}

	// Deep copy
	runCopy := *run
	return &runCopy, nil
}

func (s *MemoryStore) UpdateRun(ctx context.Context, run *automation.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopedKey(run.TenantID, run.ID)
	if _, exists := s.runs[key]; !exists {
		return fmt.Errorf("workflow run %s not found", run.ID)
	}

	// Deep copy
	runCopy := *run
	s.runs[key] = &runCopy

	return nil
}

func (s *MemoryStore) ListRunsWaitingDelay(ctx context.Context, tenantID string, before time.Time) ([]*automation.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*automation.WorkflowRun
	for _, run := range s.runs {
		if run.TenantID != tenantID || run.Status != automation.RunStatusWaitingDelay {
			continue
		}
		if run.ResumeAt == nil || run.ResumeAt.After(before) {
			continue
		}

		runCopy := *run
		runs = append(runs, &runCopy)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].ResumeAt.Before(*runs[j].ResumeAt)
	})

	return runs, nil
}

// Step execution operations

func (s *MemoryStore) CreateStepExecution(ctx context.Context, exec *automation.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopedKey(exec.TenantID, exec.RunID)
	if _, exists := s.stepExecutions[key]; !exists {
		s.stepExecutions[key] = make(map[string]*automation.StepExecution)
	}

	// Deep copy
	execCopy := *exec
	s.stepExecutions[key][exec.ID] = &execCopy

	return nil
}

func (s *MemoryStore) UpdateStepExecution(ctx context.Context, exec *automation.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopedKey(exec.TenantID, exec.RunID)
	if _, exists := s.stepExecutions[key]; !exists {
		return fmt.Errorf("no step executions for run %s", exec.RunID)
	}

	// Deep copy
	execCopy := *exec
	s.stepExecutions[key][exec.ID] = &execCopy

	return nil
}

func (s *MemoryStore) ListStepExecutions(ctx context.Context, tenantID, runID string) ([]*automation.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runExecs, exists := s.stepExecutions[scopedKey(tenantID, runID)]
	if !exists {
		return []*automation.StepExecution{}, nil
	}

	executions := make([]*automation.StepExecution, 0, len(runExecs))
	for _, exec := range runExecs {
		// Deep copy
		execCopy := *exec
		executions = append(executions, &execCopy)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StepOrder < executions[j].StepOrder
	})

	return executions, nil
}

// Approval and notification operations

func (s *MemoryStore) CreateApproval(ctx context.Context, approval *automation.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	approvalCopy := *approval
	s.approvals = append(s.approvals, &approvalCopy)

	return nil
}

func (s *MemoryStore) CreateNotification(ctx context.Context, notification *automation.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notificationCopy := *notification
	s.notifications = append(s.notifications, &notificationCopy)

	return nil
}

// Approvals returns all recorded approval requests, in creation order.
func (s *MemoryStore) Approvals() []*automation.Approval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	approvals := make([]*automation.Approval, 0, len(s.approvals))
	for _, approval := range s.approvals {
		approvalCopy := *approval
		approvals = append(approvals, &approvalCopy)
	}

	return approvals
}

// Notifications returns all recorded notifications, in creation order.
func (s *MemoryStore) Notifications() []*automation.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notifications := make([]*automation.Notification, 0, len(s.notifications))
	for _, notification := range s.notifications {
		notificationCopy := *notification
		notifications = append(notifications, &notificationCopy)
	}

	return notifications
}

// Integration credential operations

// PutIntegration seeds a tenant credential row.
func (s *MemoryStore) PutIntegration(cred *automation.IntegrationCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	credCopy := *cred
	s.integrations[scopedKey(cred.TenantID, cred.Provider)] = &credCopy
}

func (s *MemoryStore) GetIntegration(ctx context.Context, tenantID, provider string) (*automation.IntegrationCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, exists := s.integrations[scopedKey(tenantID, provider)]
	if !exists || !cred.IsActive {
		return nil, automation.ErrNotFound
	}

	// Deep copy
	credCopy := *cred
	return &credCopy, nil
}

// Domain entity operations

// PutEntity seeds a domain row with a known id.
func (s *MemoryStore) PutEntity(tenantID, table, id string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putEntityLocked(tenantID, table, id, fields)
}

func (s *MemoryStore) putEntityLocked(tenantID, table, id string, fields map[string]interface{}) {
	key := scopedKey(tenantID, table)
	if _, exists := s.entities[key]; !exists {
		s.entities[key] = make(map[string]map[string]interface{})
	}

	row := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		row[k] = v
	}
	row["id"] = id
	row["tenant_id"] = tenantID

	s.entities[key][id] = row
}

func (s *MemoryStore) InsertEntity(ctx context.Context, tenantID, table string, fields map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.putEntityLocked(tenantID, table, id, fields)

	return id, nil
}

func (s *MemoryStore) GetEntity(ctx context.Context, tenantID, table, id string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, exists := s.entities[scopedKey(tenantID, table)]
	if !exists {
		return nil, automation.ErrNotFound
	}

	row, exists := rows[id]
	if !exists {
		return nil, automation.ErrNotFound
	}

	// Deep copy
	rowCopy := make(map[string]interface{}, len(row))
	for k, v := range row {
		rowCopy[k] = v
	}

	return rowCopy, nil
}

func (s *MemoryStore) UpdateEntity(ctx context.Context, tenantID, table, id string, fields map[string]interface{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, exists := s.entities[scopedKey(tenantID, table)]
	if !exists {
		return 0, nil
	}

	row, exists := rows[id]
	if !exists {
		return 0, nil
	}

	for k, v := range fields {
		row[k] = v
	}

	return 1, nil
}

// User profile operations

// PutUserProfile seeds a user row for recipient resolution.
func (s *MemoryStore) PutUserProfile(profile *automation.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profileCopy := *profile
	s.profiles[scopedKey(profile.TenantID, profile.ID)] = &profileCopy
}

func (s *MemoryStore) GetUserProfile(ctx context.Context, tenantID, userID string) (*automation.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[scopedKey(tenantID, userID)]
	if !exists {
		return nil, automation.ErrNotFound
	}

	// Deep copy
	profileCopy := *profile
	return &profileCopy, nil
}
