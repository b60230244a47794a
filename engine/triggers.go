package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/relaycrm/automation"
)

// CheckTriggers routes one incoming domain event: it loads the tenant's
// active workflows subscribed to the trigger type, applies each workflow's
// trigger-config filter, and runs every match independently. A failure
// running one workflow is logged and does not prevent the remaining
// matches from running. Returns the ids of the runs started.
func (e *Engine) CheckTriggers(ctx context.Context, tenantID string, trigger automation.TriggerType, triggerData map[string]interface{}, triggeredBy string) ([]string, error) {
	workflows, err := e.store.ListActiveWorkflows(ctx, tenantID, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows for trigger %s: %w", trigger, err)
	}

	var runIDs []string
	for _, wf := range workflows {
		logger := e.logger.With().
			Str("workflow_id", wf.ID).
			Str("tenant_id", tenantID).
			Str("trigger_type", trigger.String()).
			Logger()

		if !matchesTriggerConfig(trigger, wf.TriggerConfig, triggerData) {
			logger.Debug().Str("event", automation.EventTriggerSkipped).Msg("Trigger config filter did not match")
			continue
		}

		logger.Info().Str("event", automation.EventTriggerMatched).Msg("Workflow matched trigger")
		runID, err := e.ExecuteWorkflow(ctx, tenantID, wf.ID, triggerData, triggeredBy)
		if err != nil {
			// Isolation between independently-triggered runs: log and move on.
			logger.Error().Err(err).Msg("Failed to start workflow run")
			continue
		}
		runIDs = append(runIDs, runID)
	}
	return runIDs, nil
}

// matchesTriggerConfig applies the trigger-type-specific filter from a
// workflow's trigger_config against the event payload. A filter key left
// unset in the config matches everything.
func matchesTriggerConfig(trigger automation.TriggerType, config, data map[string]interface{}) bool {
	if len(config) == 0 {
		return true
	}

	switch trigger {
	case automation.TriggerTaskStatusChanged:
		return matchExact(config, data, "from_status") && matchExact(config, data, "to_status")
	case automation.TriggerLeadCreated, automation.TriggerLeadStatusChanged:
		return matchExact(config, data, "lead_source")
	case automation.TriggerPaymentReceived:
		return matchMinimum(config, data, "min_amount", "amount")
	case automation.TriggerInvoiceOverdue:
		return matchMinimum(config, data, "min_days_overdue", "days_overdue")
	case automation.TriggerEventScheduled:
		return matchExact(config, data, "event_id") && matchExact(config, data, "event_type")
	default:
		return true
	}
}

// matchExact: if the config sets the key, the event must carry the same value.
func matchExact(config, data map[string]interface{}, key string) bool {
	want, ok := config[key]
	if !ok || want == nil || want == "" {
		return true
	}
	return asString(want) == asString(data[key])
}

// matchMinimum: if the config sets a threshold, the event value must be at
// least that much.
func matchMinimum(config, data map[string]interface{}, configKey, dataKey string) bool {
	want, ok := config[configKey]
	if !ok || want == nil {
		return true
	}
	threshold, ok := asFloat(want)
	if !ok {
		return true
	}
	value, ok := asFloat(data[dataKey])
	if !ok {
		return false
	}
	return value >= threshold
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
