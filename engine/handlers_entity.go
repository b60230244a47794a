package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/relaycrm/automation"
)

// Entity mutators apply a single-column update to the record addressed by
// entity_id/entity_type (falling back to the trigger's subject). An update
// that affects zero rows is reported as success, not an error; no
// existence check is performed before the update.

type entityTargetConfig struct {
	EntityID   string `mapstructure:"entity_id"`
	EntityType string `mapstructure:"entity_type"`
	NewStatus  string `mapstructure:"new_status"`
	FieldName  string `mapstructure:"field_name"`
	FieldValue string `mapstructure:"field_value"`
	AssignedTo string `mapstructure:"assigned_to"`
	Tag        string `mapstructure:"tag"`
}

func (e *Engine) handleUpdateStatus(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[entityTargetConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.NewStatus == "" {
		return nil, automation.ConfigError("new_status", req.Step.StepType)
	}

	table, id := resolveTarget(cfg.EntityID, cfg.EntityType, req.Ctx)
	if id == "" {
		return nil, automation.ConfigError("entity_id", req.Step.StepType)
	}

	rows, err := e.store.UpdateEntity(ctx, req.TenantID(), table, id, map[string]interface{}{"status": cfg.NewStatus})
	if err != nil {
		return nil, fmt.Errorf("failed to update status on %s/%s: %w", table, id, err)
	}
	return &StepResult{Output: map[string]interface{}{
		"updated_table": table,
		"updated_id":    id,
		"rows_affected": rows,
	}}, nil
}

func (e *Engine) handleUpdateField(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[entityTargetConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.FieldName == "" {
		return nil, automation.ConfigError("field_name", req.Step.StepType)
	}

	table, id := resolveTarget(cfg.EntityID, cfg.EntityType, req.Ctx)
	if id == "" {
		return nil, automation.ConfigError("entity_id", req.Step.StepType)
	}

	rows, err := e.store.UpdateEntity(ctx, req.TenantID(), table, id, map[string]interface{}{cfg.FieldName: cfg.FieldValue})
	if err != nil {
		return nil, fmt.Errorf("failed to update %s on %s/%s: %w", cfg.FieldName, table, id, err)
	}
	return &StepResult{Output: map[string]interface{}{
		"updated_table": table,
		"updated_id":    id,
		"rows_affected": rows,
	}}, nil
}

// handleAssignTo sets the owner column and notifies the new assignee as a
// best-effort side effect that never affects the step outcome.
func (e *Engine) handleAssignTo(ctx context.Context, req *StepRequest) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[entityTargetConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.AssignedTo == "" {
		return nil, automation.ConfigError("assigned_to", req.Step.StepType)
	}

	table, id := resolveTarget(cfg.EntityID, cfg.EntityType, req.Ctx)
	if id == "" {
		return nil, automation.ConfigError("entity_id", req.Step.StepType)
	}

	column := ownerColumn(table)
	rows, err := e.store.UpdateEntity(ctx, req.TenantID(), table, id, map[string]interface{}{column: cfg.AssignedTo})
	if err != nil {
		return nil, fmt.Errorf("failed to assign %s/%s: %w", table, id, err)
	}

	e.notifyBestEffort(ctx, req, &automation.Notification{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID(),
		UserID:    cfg.AssignedTo,
		Type:      "assignment",
		Title:     "You have been assigned a record",
		Message:   fmt.Sprintf("A workflow assigned you %s %s", table, id),
		CreatedAt: e.now(),
	})

	return &StepResult{Output: map[string]interface{}{
		"updated_table": table,
		"updated_id":    id,
		"assigned_to":   cfg.AssignedTo,
		"rows_affected": rows,
	}}, nil
}

// handleAddTag appends a tag to the entity's tags array if not already
// present. Adding an existing tag is a no-op, so the step is idempotent.
func (e *Engine) handleAddTag(ctx context.Context, req *StepRequest) (*StepResult, error) {
	return e.mutateTags(ctx, req, func(tags []string, tag string) ([]string, bool) {
		if containsString(tags, tag) {
			return tags, false
		}
		return append(tags, tag), true
	})
}

// handleRemoveTag removes a tag; removal of an absent tag is a no-op.
func (e *Engine) handleRemoveTag(ctx context.Context, req *StepRequest) (*StepResult, error) {
	return e.mutateTags(ctx, req, func(tags []string, tag string) ([]string, bool) {
		if !containsString(tags, tag) {
			return tags, false
		}
		return removeString(tags, tag), true
	})
}

func (e *Engine) mutateTags(ctx context.Context, req *StepRequest, apply func([]string, string) ([]string, bool)) (*StepResult, error) {
	cfg, err := automation.DecodeConfig[entityTargetConfig](req.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Tag == "" {
		return nil, automation.ConfigError("tag", req.Step.StepType)
	}

	table, id := resolveTarget(cfg.EntityID, cfg.EntityType, req.Ctx)
	if id == "" {
		return nil, automation.ConfigError("entity_id", req.Step.StepType)
	}

	record, err := e.store.GetEntity(ctx, req.TenantID(), table, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s/%s: %w", table, id, err)
	}

	tags := toStringSlice(record["tags"])
	updated, changed := apply(tags, cfg.Tag)
	if changed {
		if _, err := e.store.UpdateEntity(ctx, req.TenantID(), table, id, map[string]interface{}{"tags": updated}); err != nil {
			return nil, fmt.Errorf("failed to update tags on %s/%s: %w", table, id, err)
		}
	}

	return &StepResult{Output: map[string]interface{}{
		"updated_table": table,
		"updated_id":    id,
		"tag":           cfg.Tag,
		"tags_changed":  changed,
	}}, nil
}

// notifyBestEffort records an in-app notification, logging failures
// without affecting the step outcome.
func (e *Engine) notifyBestEffort(ctx context.Context, req *StepRequest, notification *automation.Notification) {
	if err := e.store.CreateNotification(ctx, notification); err != nil {
		req.Logger.Warn().
			Str("event", automation.EventNotifyFailed).
			Str("user_id", notification.UserID).
			Err(err).
			Msg("Failed to record notification")
	}
}
