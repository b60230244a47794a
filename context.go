package automation

import (
	"fmt"
	"sort"
	"strings"
)

// RunContext is the run-scoped working memory threaded between steps. It is
// seeded from the trigger data, extended by merging each completed step's
// output, and discarded when the run ends or suspends. It is never
// persisted as a whole; on resume it is rebuilt by folding over the
// persisted outputs of completed step executions.
//
// The context is exclusively owned by the single in-flight run controller
// invocation; no synchronization is needed.
type RunContext map[string]interface{}

// NewRunContext seeds a context from trigger data (shallow copy) and the
// run id, which the template resolver exposes as {{run_id}}.
func NewRunContext(runID string, triggerData map[string]interface{}) RunContext {
	rc := make(RunContext, len(triggerData)+1)
	for k, v := range triggerData {
		rc[k] = v
	}
	rc["run_id"] = runID
	return rc
}

// Merge folds a step's output map into the context. Later keys win.
func (rc RunContext) Merge(output map[string]interface{}) {
	for k, v := range output {
		rc[k] = v
	}
}

// Lookup walks a flat or dotted path ("a.b.c") through the context. It
// returns false if any segment is missing or the current value is not an
// indexable map; it never panics.
func (rc RunContext) Lookup(path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	var current interface{} = map[string]interface{}(rc)
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String resolves a path to its string form, or "" if absent.
func (rc RunContext) String(path string) string {
	v, ok := rc.Lookup(path)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// RebuildContext reconstructs a run's context from its frozen trigger data
// and the persisted outputs of its completed step executions, folded in
// step_order. Used by resume to re-enter the iteration loop with the same
// working memory the run had when it suspended.
func RebuildContext(run *WorkflowRun, execs []*StepExecution) RunContext {
	rc := NewRunContext(run.ID, run.TriggerData)

	ordered := make([]*StepExecution, len(execs))
	copy(ordered, execs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StepOrder < ordered[j].StepOrder
	})

	for _, exec := range ordered {
		if exec.Status == StepStatusCompleted && exec.Output != nil {
			rc.Merge(exec.Output)
		}
	}
	return rc
}
