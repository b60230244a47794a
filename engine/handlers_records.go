package engine

import (
	"context"
	"fmt"

	"github.com/relaycrm/automation"
)

// Record creators insert one domain record from resolved config fields with
// sensible defaults and return the new record's id under a
// created_<type>_id key. Relative date offsets resolve against "now" at
// execution time, not at workflow-definition time.

type createTaskConfig struct {
	Title         string `mapstructure:"title"`
	Description   string `mapstructure:"description"`
	Priority      string `mapstructure:"priority"`
	Status        string `mapstructure:"status"`
	AssignedTo    string `mapstructure:"assigned_to"`
	DueOffsetDays int    `mapstructure:"due_offset_days"`
	EntityID      string `mapstructure:"entity_id"`
	EntityType    string `mapstructure:"entity_type"`
}

func (e *Engine) handleCreateTask(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[createTaskConfig](req.Config)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"title":      defaultString(cfg.Title, "Untitled Task"),
		"priority":   defaultString(cfg.Priority, "medium"),
		"status":     defaultString(cfg.Status, "pending"),
		"created_at": e.now(),
	}
	if cfg.Description != "" {
		fields["description"] = cfg.Description
	}
	if cfg.AssignedTo != "" {
		fields["assigned_to"] = cfg.AssignedTo
	}
	if cfg.DueOffsetDays > 0 {
		fields["due_date"] = e.now().AddDate(0, 0, cfg.DueOffsetDays)
	}
	attachSubject(fields, cfg.EntityID, cfg.EntityType, req.Ctx)

	id, err := e.store.InsertEntity(ctx, req.TenantID(), "tasks", fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"created_task_id": id}}, nil
}

type createProjectConfig struct {
	Name               string `mapstructure:"name"`
	Description        string `mapstructure:"description"`
	Status             string `mapstructure:"status"`
	ClientID           string `mapstructure:"client_id"`
	ProjectManagerID   string `mapstructure:"project_manager_id"`
	DeadlineOffsetDays int    `mapstructure:"deadline_offset_days"`
}

func (e *Engine) handleCreateProject(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[createProjectConfig](req.Config)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"name":       defaultString(cfg.Name, "Untitled Project"),
		"status":     defaultString(cfg.Status, "active"),
		"created_at": e.now(),
	}
	if cfg.Description != "" {
		fields["description"] = cfg.Description
	}
	if clientID := defaultString(cfg.ClientID, req.Ctx.String("client_id")); clientID != "" {
		fields["client_id"] = clientID
	}
	if cfg.ProjectManagerID != "" {
		fields["project_manager_id"] = cfg.ProjectManagerID
	}
	if cfg.DeadlineOffsetDays > 0 {
		fields["deadline"] = e.now().AddDate(0, 0, cfg.DeadlineOffsetDays)
	}

	id, err := e.store.InsertEntity(ctx, req.TenantID(), "projects", fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"created_project_id": id}}, nil
}

type createEventConfig struct {
	Title           string `mapstructure:"title"`
	Description     string `mapstructure:"description"`
	StartOffsetDays int    `mapstructure:"start_offset_days"`
	DurationMinutes int    `mapstructure:"duration_minutes"`
	Location        string `mapstructure:"location"`
	EntityID        string `mapstructure:"entity_id"`
	EntityType      string `mapstructure:"entity_type"`
}

func (e *Engine) handleCreateEvent(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[createEventConfig](req.Config)
	if err != nil {
		return nil, err
	}

	duration := cfg.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	start := e.now().AddDate(0, 0, cfg.StartOffsetDays)

	fields := map[string]interface{}{
		"title":      defaultString(cfg.Title, "Untitled Event"),
		"start_time": start,
		"end_time":   start.Add(minutes(duration)),
		"created_at": e.now(),
	}
	if cfg.Description != "" {
		fields["description"] = cfg.Description
	}
	if cfg.Location != "" {
		fields["location"] = cfg.Location
	}
	attachSubject(fields, cfg.EntityID, cfg.EntityType, req.Ctx)

	id, err := e.store.InsertEntity(ctx, req.TenantID(), "events", fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"created_event_id": id}}, nil
}

type createInvoiceConfig struct {
	Amount        float64 `mapstructure:"amount"`
	Currency      string  `mapstructure:"currency"`
	Description   string  `mapstructure:"description"`
	ClientID      string  `mapstructure:"client_id"`
	DueOffsetDays int     `mapstructure:"due_offset_days"`
}

func (e *Engine) handleCreateInvoice(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[createInvoiceConfig](req.Config)
	if err != nil {
		return nil, err
	}

	dueOffset := cfg.DueOffsetDays
	if dueOffset <= 0 {
		dueOffset = 14
	}
	fields := map[string]interface{}{
		"amount":     cfg.Amount,
		"currency":   defaultString(cfg.Currency, "usd"),
		"status":     "draft",
		"due_date":   e.now().AddDate(0, 0, dueOffset),
		"created_at": e.now(),
	}
	if cfg.Description != "" {
		fields["description"] = cfg.Description
	}
	if clientID := defaultString(cfg.ClientID, req.Ctx.String("client_id")); clientID != "" {
		fields["client_id"] = clientID
	}

	id, err := e.store.InsertEntity(ctx, req.TenantID(), "invoices", fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return &StepResult{Output: map[string]interface{}{"created_invoice_id": id}}, nil
}

type createContactRecordConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Phone    string `mapstructure:"phone"`
	Source   string `mapstructure:"source"`
	Status   string `mapstructure:"status"`
	ClientID string `mapstructure:"client_id"`
}

func (e *Engine) handleCreateClient(ctx context.Context, req *StepRequest) (*StepResult, error) {
	return e.createPerson(ctx, req, "clients", "Untitled Client", "created_client_id")
}

func (e *Engine) handleCreateLead(ctx context.Context, req *StepRequest) (*StepResult, error) {
	return e.createPerson(ctx, req, "leads", "Untitled Lead", "created_lead_id")
}

func (e *Engine) handleCreateContact(ctx context.Context, req *StepRequest) (*StepResult, error) {
	return e.createPerson(ctx, req, "contacts", "Untitled Contact", "created_contact_id")
}

// createPerson covers the three person-shaped record creators, which share
// one config shape.
func (e *Engine) createPerson(ctx context.Context, req *StepRequest, table, defaultName, outputKey string) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[createContactRecordConfig](req.Config)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"name":       defaultString(cfg.Name, defaultName),
		"created_at": e.now(),
	}
	if cfg.Email != "" {
		fields["email"] = cfg.Email
	}
	if cfg.Phone != "" {
		fields["phone"] = cfg.Phone
	}
	if cfg.Source != "" {
		fields["source"] = cfg.Source
	}
	if table == "leads" {
		fields["status"] = defaultString(cfg.Status, "new")
	}
	if table == "contacts" && cfg.ClientID != "" {
		fields["client_id"] = cfg.ClientID
	}

	id, err := e.store.InsertEntity(ctx, req.TenantID(), table, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s record: %w", table, err)
	}
	return &StepResult{Output: map[string]interface{}{outputKey: id}}, nil
}
