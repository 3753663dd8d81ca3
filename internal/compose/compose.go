// Package compose builds the final user-facing message and the structured
// observability trace from a committed turn. Composition is a
// deterministic function of the turn: it never mutates state and never
// calls external capabilities.
package compose

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// maxSummaryLen bounds the per-invocation result summary in the trace.
const maxSummaryLen = 160

// Compose turns a committed turn into the reply text and its tool trace.
func Compose(turn *models.Turn) (string, []models.TraceEntry) {
	reply := turn.Output
	if reply == "" {
		// Degraded turns always carry a safety reply; an empty output
		// can only mean a completed handler returned nothing useful.
		reply = "Done."
	}

	trace := make([]models.TraceEntry, 0, len(turn.Invocations))
	for _, inv := range turn.Invocations {
		trace = append(trace, models.TraceEntry{
			Tool:    inv.Tool,
			Status:  string(inv.Status),
			Summary: summarize(&inv),
		})
	}
	return reply, trace
}

// summarize produces a truncated, single-line view of an invocation result
// or error for the trace.
func summarize(inv *models.ToolInvocation) string {
	var s string
	switch {
	case inv.Error != "":
		s = inv.Error
	case inv.Result != nil:
		s = flatten(inv.Result)
	}
	s = strings.Join(strings.Fields(s), " ")
	return truncate(s, maxSummaryLen)
}

// flatten renders a result map compactly with deterministic key order.
func flatten(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s=%v", k, m[k])
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so the cut never emits invalid UTF-8.
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
