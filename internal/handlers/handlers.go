// Package handlers contains the capability handlers: the decide
// functions the executor re-enters with settled tool results until one
// of them produces a final reply.
package handlers

import (
	"strings"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// resultItems extracts a list-of-objects field from a tool result,
// tolerating both the in-process shape ([]map[string]any) and the
// JSON-decoded shape ([]any).
func resultItems(result map[string]any, field string) []map[string]any {
	if result == nil {
		return nil
	}
	switch v := result[field].(type) {
	case []map[string]any:
		return v
	case []any:
		items := make([]map[string]any, 0, len(v))
		for _, e := range v {
			if m, ok := e.(map[string]any); ok {
				items = append(items, m)
			}
		}
		return items
	}
	return nil
}

func resultString(result map[string]any, field string) string {
	if result == nil {
		return ""
	}
	s, _ := result[field].(string)
	return s
}

func resultBool(result map[string]any, field string) bool {
	if result == nil {
		return false
	}
	b, _ := result[field].(bool)
	return b
}

// containsAny reports whether the lowercased message contains any of the
// given markers.
func containsAny(message string, markers ...string) bool {
	lower := strings.ToLower(message)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func succeeded(inv *models.ToolInvocation) bool {
	return inv != nil && inv.Status == models.InvocationSucceeded
}
