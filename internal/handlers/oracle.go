package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// timeSensitiveMarkers suggest the answer changes with the news cycle, in
// which case an encyclopedia lookup would be stale.
var timeSensitiveMarkers = []string{
	"today", "tonight", "right now", "currently", "latest",
	"this week", "this year", "news", "score", "price", "weather",
}

// Oracle answers knowledge questions. It picks web search for
// time-sensitive questions and wiki search otherwise, and falls back to
// the other source when the first one fails or times out. When both
// sources are out it degrades to an honest "couldn't look that up" reply
// rather than failing the turn.
type Oracle struct{}

// NewOracle creates the knowledge handler.
func NewOracle() *Oracle { return &Oracle{} }

func (h *Oracle) Name() string { return "oracle" }

func (h *Oracle) Tools() []string { return []string{"wiki.search", "web.search"} }

func (h *Oracle) Decide(ctx context.Context, tc *models.TurnContext) (*models.Decision, error) {
	query := searchQuery(tc.Message)

	if tc.Cycle == 0 {
		tool := "wiki.search"
		if containsAny(tc.Message, timeSensitiveMarkers...) {
			tool = "web.search"
		}
		return &models.Decision{
			Requests: []models.ToolRequest{{Tool: tool, Args: map[string]any{"query": query}}},
		}, nil
	}

	wiki := tc.Invocation("wiki.search")
	web := tc.Invocation("web.search")

	if succeeded(wiki) {
		return h.answer(tc, wiki), nil
	}
	if succeeded(web) {
		return h.answer(tc, web), nil
	}

	// First source failed. Try the alternate once before degrading.
	if wiki == nil && web != nil {
		return &models.Decision{
			Requests: []models.ToolRequest{{Tool: "wiki.search", Args: map[string]any{"query": query}}},
		}, nil
	}
	if web == nil && wiki != nil {
		return &models.Decision{
			Requests: []models.ToolRequest{{Tool: "web.search", Args: map[string]any{"query": query}}},
		}, nil
	}

	return &models.Decision{
		Output: "I couldn't reach my knowledge sources just now, so I can't answer that reliably. Please try again in a moment.",
	}, nil
}

func (h *Oracle) answer(tc *models.TurnContext, inv *models.ToolInvocation) *models.Decision {
	items := resultItems(inv.Result, "results")
	if len(items) == 0 {
		return &models.Decision{
			Output: fmt.Sprintf("I looked, but found nothing relevant for %q.", searchQuery(tc.Message)),
		}
	}

	var b strings.Builder
	b.WriteString("Here's what I found:")
	max := 3
	if len(items) < max {
		max = len(items)
	}
	for _, item := range items[:max] {
		title := resultString(item, "title")
		snippet := resultString(item, "snippet")
		b.WriteString("\n- ")
		b.WriteString(title)
		if snippet != "" {
			b.WriteString(": ")
			b.WriteString(snippet)
		}
	}
	return &models.Decision{
		Output:      b.String(),
		SlotUpdates: map[string]any{"oracle.last_query": searchQuery(tc.Message)},
	}
}

// searchQuery strips conversational padding from the message so the
// search terms carry more weight.
func searchQuery(message string) string {
	q := strings.TrimSpace(message)
	q = strings.TrimSuffix(q, "?")
	lower := strings.ToLower(q)
	for _, prefix := range []string{
		"who is ", "who was ", "who won ", "what is ", "what was ", "what are ",
		"when is ", "when was ", "where is ", "tell me about ", "do you know ",
	} {
		if strings.HasPrefix(lower, prefix) {
			return q[len(prefix):]
		}
	}
	return q
}
