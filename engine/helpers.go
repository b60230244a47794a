package engine

import (
	"time"

	"github.com/relaycrm/automation"
)

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// attachSubject links a created record to the run's subject entity, taken
// from config with a fallback to the trigger's entity_id/entity_type.
func attachSubject(fields map[string]interface{}, entityID, entityType string, rc automation.RunContext) {
	if entityID == "" {
		entityID = rc.String("entity_id")
	}
	if entityType == "" {
		entityType = rc.String("entity_type")
	}
	if entityID != "" {
		fields["entity_id"] = entityID
		fields["entity_type"] = entityType
	}
}

// resolveTarget resolves the table and row an entity mutator operates on:
// entity_id/entity_type from resolved config, falling back to the trigger's
// subject in the run context.
func resolveTarget(entityID, entityType string, rc automation.RunContext) (table, id string) {
	if entityID == "" {
		entityID = rc.String("entity_id")
	}
	if entityType == "" {
		entityType = rc.String("entity_type")
	}
	return tableForEntityType(entityType), entityID
}

// tableForEntityType maps an entity type to its table. Anything but
// client/project/event addresses the tasks table.
func tableForEntityType(entityType string) string {
	switch entityType {
	case "client":
		return "clients"
	case "project":
		return "projects"
	case "event":
		return "events"
	default:
		return "tasks"
	}
}

// ownerColumn is the owner/assignee column of an entity table.
func ownerColumn(table string) string {
	if table == "projects" {
		return "project_manager_id"
	}
	return "assigned_to"
}

func toStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func removeString(values []string, target string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
