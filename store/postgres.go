package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/relaycrm/automation"
)

// PostgresStore implements automation.Store on a PostgreSQL database. Map
// columns (config, trigger_data, output, credentials) are jsonb. Domain
// entities live in their own relational tables (tasks, clients, leads, ...),
// addressed by name.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ automation.Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL-backed automation store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// identPattern guards dynamic table and column names. Entity mutator steps
// only ever address a fixed set of CRM tables, so anything else is a bug.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func sanitizeIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return name, nil
}

// Workflow definition operations

func (s *PostgresStore) GetWorkflow(ctx context.Context, tenantID, workflowID string) (*automation.Workflow, error) {
	var wf automation.Workflow
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, status, trigger_type, trigger_config, created_at
		 FROM workflows WHERE tenant_id = $1 AND id = $2`,
		tenantID, workflowID,
	).Scan(&wf.ID, &wf.TenantID, &wf.Name, &wf.Status, &wf.TriggerType, &wf.TriggerConfig, &wf.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, automation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return &wf, nil
}

func (s *PostgresStore) ListActiveWorkflows(ctx context.Context, tenantID string, trigger automation.TriggerType) ([]*automation.Workflow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, name, status, trigger_type, trigger_config, created_at
		 FROM workflows
		 WHERE tenant_id = $1 AND trigger_type = $2 AND status = $3
		 ORDER BY created_at`,
		tenantID, trigger, automation.WorkflowStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*automation.Workflow
	for rows.Next() {
		var wf automation.Workflow
		if err := rows.Scan(&wf.ID, &wf.TenantID, &wf.Name, &wf.Status, &wf.TriggerType, &wf.TriggerConfig, &wf.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, &wf)
	}
	return workflows, rows.Err()
}

func (s *PostgresStore) ListWorkflowSteps(ctx context.Context, tenantID, workflowID string) ([]*automation.WorkflowStep, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_id, tenant_id, step_order, step_type, config
		 FROM workflow_steps
		 WHERE tenant_id = $1 AND workflow_id = $2
		 ORDER BY step_order`,
		tenantID, workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []*automation.WorkflowStep
	for rows.Next() {
		var step automation.WorkflowStep
		if err := rows.Scan(&step.ID, &step.WorkflowID, &step.TenantID, &step.StepOrder, &step.StepType, &step.Config); err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

// Workflow run operations

func (s *PostgresStore) CreateRun(ctx context.Context, run *automation.WorkflowRun) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, tenant_id, status, trigger_data, triggered_by, started_at, completed_at, resume_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.WorkflowID, run.TenantID, run.Status, run.TriggerData, run.TriggeredBy, run.StartedAt, run.CompletedAt, run.ResumeAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, tenantID, runID string) (*automation.WorkflowRun, error) {
	var run automation.WorkflowRun
	err := s.db.QueryRow(ctx,
		`SELECT id, workflow_id, tenant_id, status, trigger_data, triggered_by, started_at, completed_at, resume_at
		 FROM workflow_runs WHERE tenant_id = $1 AND id = $2`,
		tenantID, runID,
	).Scan(&run.ID, &run.WorkflowID, &run.TenantID, &run.Status, &run.TriggerData, &run.TriggeredBy, &run.StartedAt, &run.CompletedAt, &run.ResumeAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, automation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow run: %w", err)
	}
	return &run, nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *automation.WorkflowRun) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_runs
		 SET status = $1, completed_at = $2, resume_at = $3
		 WHERE tenant_id = $4 AND id = $5`,
		run.Status, run.CompletedAt, run.ResumeAt, run.TenantID, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow run: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRunsWaitingDelay(ctx context.Context, tenantID string, before time.Time) ([]*automation.WorkflowRun, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_id, tenant_id, status, trigger_data, triggered_by, started_at, completed_at, resume_at
		 FROM workflow_runs
		 WHERE tenant_id = $1 AND status = $2 AND resume_at <= $3
		 ORDER BY resume_at`,
		tenantID, automation.RunStatusWaitingDelay, before,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs waiting on delay: %w", err)
	}
	defer rows.Close()

	var runs []*automation.WorkflowRun
	for rows.Next() {
		var run automation.WorkflowRun
		if err := rows.Scan(&run.ID, &run.WorkflowID, &run.TenantID, &run.Status, &run.TriggerData, &run.TriggeredBy, &run.StartedAt, &run.CompletedAt, &run.ResumeAt); err != nil {
			return nil, fmt.Errorf("failed to scan workflow run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// Step execution operations

func (s *PostgresStore) CreateStepExecution(ctx context.Context, exec *automation.StepExecution) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO step_executions (id, run_id, tenant_id, step_id, step_order, step_type, status, output, error_message, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		exec.ID, exec.RunID, exec.TenantID, exec.StepID, exec.StepOrder, exec.StepType, exec.Status, exec.Output, exec.ErrorMessage, exec.StartedAt, exec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create step execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateStepExecution(ctx context.Context, exec *automation.StepExecution) error {
	_, err := s.db.Exec(ctx,
		`UPDATE step_executions
		 SET status = $1, output = $2, error_message = $3, completed_at = $4
		 WHERE tenant_id = $5 AND id = $6`,
		exec.Status, exec.Output, exec.ErrorMessage, exec.CompletedAt, exec.TenantID, exec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update step execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListStepExecutions(ctx context.Context, tenantID, runID string) ([]*automation.StepExecution, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, run_id, tenant_id, step_id, step_order, step_type, status, output, error_message, started_at, completed_at
		 FROM step_executions
		 WHERE tenant_id = $1 AND run_id = $2
		 ORDER BY step_order`,
		tenantID, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list step executions: %w", err)
	}
	defer rows.Close()

	var executions []*automation.StepExecution
	for rows.Next() {
		var exec automation.StepExecution
		if err := rows.Scan(&exec.ID, &exec.RunID, &exec.TenantID, &exec.StepID, &exec.StepOrder, &exec.StepType, &exec.Status, &exec.Output, &exec.ErrorMessage, &exec.StartedAt, &exec.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step execution: %w", err)
		}
		executions = append(executions, &exec)
	}
	return executions, rows.Err()
}

// Approval and notification operations

func (s *PostgresStore) CreateApproval(ctx context.Context, approval *automation.Approval) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO approvals (id, tenant_id, run_id, step_execution_id, approver_id, title, message, status, created_at, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		approval.ID, approval.TenantID, approval.RunID, approval.StepExecutionID, approval.ApproverID, approval.Title, approval.Message, approval.Status, approval.CreatedAt, approval.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create approval: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, notification *automation.Notification) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO notifications (id, tenant_id, user_id, type, title, message, modal, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		notification.ID, notification.TenantID, notification.UserID, notification.Type, notification.Title, notification.Message, notification.Modal, notification.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// Integration credential operations

func (s *PostgresStore) GetIntegration(ctx context.Context, tenantID, provider string) (*automation.IntegrationCredential, error) {
	var cred automation.IntegrationCredential
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, provider, is_active, credentials, updated_at
		 FROM integrations WHERE tenant_id = $1 AND provider = $2`,
		tenantID, provider,
	).Scan(&cred.TenantID, &cred.Provider, &cred.IsActive, &cred.Credentials, &cred.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, automation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	if !cred.IsActive {
		return nil, automation.ErrNotFound
	}
	return &cred, nil
}

// Domain entity operations

func (s *PostgresStore) InsertEntity(ctx context.Context, tenantID, table string, fields map[string]interface{}) (string, error) {
	tbl, err := sanitizeIdent(table)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()

	columns := []string{"id", "tenant_id"}
	placeholders := []string{"$1", "$2"}
	args := []interface{}{id, tenantID}
	for key, value := range fields {
		col, err := sanitizeIdent(key)
		if err != nil {
			return "", err
		}
		args = append(args, value)
		columns = append(columns, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tbl, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to insert %s row: %w", tbl, err)
	}

	return id, nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, tenantID, table, id string) (map[string]interface{}, error) {
	tbl, err := sanitizeIdent(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE tenant_id = $1 AND id = $2", tbl)
	rows, err := s.db.Query(ctx, query, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s row: %w", tbl, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get %s row: %w", tbl, err)
		}
		return nil, automation.ErrNotFound
	}

	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s row: %w", tbl, err)
	}

	fields := make(map[string]interface{}, len(values))
	for i, desc := range rows.FieldDescriptions() {
		fields[desc.Name] = values[i]
	}
	return fields, nil
}

func (s *PostgresStore) UpdateEntity(ctx context.Context, tenantID, table, id string, fields map[string]interface{}) (int, error) {
	tbl, err := sanitizeIdent(table)
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, nil
	}

	assignments := make([]string, 0, len(fields))
	args := []interface{}{tenantID, id}
	for key, value := range fields {
		col, err := sanitizeIdent(key)
		if err != nil {
			return 0, err
		}
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE tenant_id = $1 AND id = $2",
		tbl, strings.Join(assignments, ", "))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s row: %w", tbl, err)
	}

	return int(tag.RowsAffected()), nil
}

// User profile operations

func (s *PostgresStore) GetUserProfile(ctx context.Context, tenantID, userID string) (*automation.UserProfile, error) {
	var profile automation.UserProfile
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, full_name
		 FROM user_profiles WHERE tenant_id = $1 AND id = $2`,
		tenantID, userID,
	).Scan(&profile.ID, &profile.TenantID, &profile.Email, &profile.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, automation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return &profile, nil
}
