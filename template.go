package automation

import (
	"fmt"
	"regexp"
	"time"
)

// tokenPattern matches {{name}} and {{a.b.c}} placeholders. The grammar is
// intentionally minimal: one token form, no expressions, so resolution
// stays total and auditable.
var tokenPattern = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// ResolveTemplates expands placeholders in every string value of a step
// config map against the run context. Non-string values pass through
// unchanged. Resolution never fails: unknown tokens become the empty
// string, never the literal {{...}}.
func ResolveTemplates(config map[string]interface{}, rc RunContext, now time.Time) map[string]interface{} {
	if config == nil {
		return map[string]interface{}{}
	}
	resolved := make(map[string]interface{}, len(config))
	for key, value := range config {
		if s, ok := value.(string); ok {
			resolved[key] = ResolveString(s, rc, now)
		} else {
			resolved[key] = value
		}
	}
	return resolved
}

// ResolveString substitutes every token in one string. Tokens resolve, in
// priority order: now, today, run_id (from context), then a dotted-path
// walk through the context. Multiple tokens are each resolved independently
// with plain find-and-replace semantics.
func ResolveString(s string, rc RunContext, now time.Time) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		token := tokenPattern.FindStringSubmatch(match)[1]
		return resolveToken(token, rc, now)
	})
}

func resolveToken(token string, rc RunContext, now time.Time) string {
	switch token {
	case "now":
		return now.Format(time.RFC3339)
	case "today":
		return now.Format("2006-01-02")
	case "run_id":
		if v, ok := rc.Lookup("run_id"); ok {
			return stringify(v)
		}
		return ""
	}

	v, ok := rc.Lookup(token)
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode to float64; print integral values without
		// a trailing .000000
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
