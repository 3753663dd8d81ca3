package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// Scribe keeps the calendar and the journal. Four modes, classified from
// the message:
//
//   - log:      quick journal note, acknowledged directly with no tools
//   - record:   durable journal entry saved through journal.save
//   - reflect:  look back over past entries (search + recent fan-out)
//   - schedule: create or list calendar events
type Scribe struct {
	now func() time.Time
}

// NewScribe creates the calendar/journal handler.
func NewScribe() *Scribe { return &Scribe{now: time.Now} }

func (h *Scribe) Name() string { return "scribe" }

func (h *Scribe) Tools() []string {
	return []string{
		"calendar.create_event", "calendar.list_upcoming",
		"journal.save", "journal.search", "journal.recent",
	}
}

func (h *Scribe) Decide(ctx context.Context, tc *models.TurnContext) (*models.Decision, error) {
	switch h.mode(tc.Message) {
	case "log":
		return h.log(tc), nil
	case "reflect":
		return h.reflect(tc), nil
	case "record":
		return h.record(tc), nil
	case "list":
		return h.list(tc), nil
	default:
		return h.schedule(tc), nil
	}
}

func (h *Scribe) mode(message string) string {
	switch {
	case containsAny(message, "log:", "note to self", "quick note"):
		return "log"
	case containsAny(message, "how have i been", "how was my week", "reflect", "look back", "past entries"):
		return "reflect"
	case containsAny(message, "journal", "diary", "write down", "record that", "remember that"):
		return "record"
	case containsAny(message, "what's coming up", "whats coming up", "upcoming", "agenda", "my schedule"):
		return "list"
	}
	return "schedule"
}

// log acknowledges a quick note without touching any tool. The note
// lands in a slot so the next reflect turn can still see it.
func (h *Scribe) log(tc *models.TurnContext) *models.Decision {
	body := tc.Message
	if i := strings.Index(strings.ToLower(body), "log:"); i >= 0 {
		body = strings.TrimSpace(body[i+len("log:"):])
	}
	if body == "" {
		return &models.Decision{Output: "What would you like me to note down?"}
	}
	return &models.Decision{
		Output: fmt.Sprintf("Noted: %s", body),
		SlotUpdates: map[string]any{
			"journal.last_log":    body,
			"journal.last_log_at": h.now().UTC().Format(time.RFC3339),
		},
	}
}

func (h *Scribe) record(tc *models.TurnContext) *models.Decision {
	if tc.Cycle == 0 {
		body := journalBody(tc.Message)
		if body == "" {
			return &models.Decision{Output: "What would you like me to record in your journal?"}
		}
		return &models.Decision{
			Requests: []models.ToolRequest{{Tool: "journal.save", Args: map[string]any{"body": body}}},
		}
	}

	save := tc.Invocation("journal.save")
	if !succeeded(save) {
		return &models.Decision{Output: "I couldn't save that to your journal right now. I'll keep the note; try again shortly."}
	}
	return &models.Decision{
		Output:      "That's saved in your journal.",
		SlotUpdates: map[string]any{"journal.last_entry": resultString(save.Result, "entry_id")},
	}
}

func (h *Scribe) reflect(tc *models.TurnContext) *models.Decision {
	if tc.Cycle == 0 {
		requests := []models.ToolRequest{
			{Tool: "journal.recent", Args: map[string]any{"limit": 5}},
		}
		if topic := reflectTopic(tc.Message); topic != "" {
			requests = append(requests, models.ToolRequest{
				Tool: "journal.search", Args: map[string]any{"query": topic},
			})
		}
		return &models.Decision{Requests: requests}
	}

	search := tc.Invocation("journal.search")
	recent := tc.Invocation("journal.recent")

	entries := resultItems(searchResult(search), "entries")
	if len(entries) == 0 {
		entries = resultItems(searchResult(recent), "entries")
	}
	if len(entries) == 0 {
		if !succeeded(search) && !succeeded(recent) {
			return &models.Decision{Output: "I couldn't open your journal just now. Try again in a moment."}
		}
		return &models.Decision{Output: "Your journal is empty so far — nothing to look back on yet."}
	}

	var b strings.Builder
	b.WriteString("Looking back over your journal:")
	for _, e := range entries {
		b.WriteString("\n- ")
		b.WriteString(resultString(e, "body"))
	}
	return &models.Decision{Output: b.String()}
}

func (h *Scribe) list(tc *models.TurnContext) *models.Decision {
	if tc.Cycle == 0 {
		return &models.Decision{
			Requests: []models.ToolRequest{{Tool: "calendar.list_upcoming", Args: map[string]any{}}},
		}
	}

	list := tc.Invocation("calendar.list_upcoming")
	if !succeeded(list) {
		return &models.Decision{Output: "I couldn't check your calendar right now. Try again shortly."}
	}
	events := resultItems(list.Result, "events")
	if len(events) == 0 {
		return &models.Decision{Output: "Nothing on your calendar for the next week."}
	}
	var b strings.Builder
	b.WriteString("Coming up:")
	for _, e := range events {
		b.WriteString(fmt.Sprintf("\n- %s at %s", resultString(e, "title"), resultString(e, "start")))
	}
	return &models.Decision{Output: b.String()}
}

func (h *Scribe) schedule(tc *models.TurnContext) *models.Decision {
	if tc.Cycle == 0 {
		title, start := h.parseEvent(tc.Message)
		if title == "" {
			return &models.Decision{Output: "What should I schedule, and when?"}
		}
		return &models.Decision{
			Requests: []models.ToolRequest{{
				Tool: "calendar.create_event",
				Args: map[string]any{"title": title, "start": start.Format(time.RFC3339)},
			}},
		}
	}

	create := tc.Invocation("calendar.create_event")
	if !succeeded(create) {
		return &models.Decision{Output: "I couldn't get that onto your calendar. Nothing was scheduled; please try again."}
	}
	return &models.Decision{
		Output:      "Done — it's on your calendar.",
		SlotUpdates: map[string]any{"calendar.last_event": resultString(create.Result, "event_id")},
	}
}

// parseEvent pulls a title and a start time out of a scheduling request.
// Deliberately coarse: "tomorrow" and "tonight" are understood, anything
// else defaults to tomorrow morning.
func (h *Scribe) parseEvent(message string) (string, time.Time) {
	title := strings.TrimSpace(message)
	lower := strings.ToLower(title)
	for _, prefix := range []string{"schedule ", "book ", "set up ", "remind me to ", "add "} {
		if strings.HasPrefix(lower, prefix) {
			title = strings.TrimSpace(title[len(prefix):])
			break
		}
	}
	if title == "" {
		return "", time.Time{}
	}

	now := h.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	switch {
	case containsAny(message, "tonight"):
		start = time.Date(now.Year(), now.Month(), now.Day(), 19, 0, 0, 0, time.UTC)
	case containsAny(message, "next week"):
		start = start.AddDate(0, 0, 7)
	}
	return title, start
}

func journalBody(message string) string {
	body := strings.TrimSpace(message)
	lower := strings.ToLower(body)
	for _, prefix := range []string{"journal:", "journal ", "record that ", "remember that ", "write down ", "add to my diary "} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(body[len(prefix):])
		}
	}
	return body
}

func reflectTopic(message string) string {
	lower := strings.ToLower(message)
	for _, marker := range []string{"about ", "regarding "} {
		if i := strings.Index(lower, marker); i >= 0 {
			return strings.TrimSpace(message[i+len(marker):])
		}
	}
	return ""
}

func searchResult(inv *models.ToolInvocation) map[string]any {
	if !succeeded(inv) {
		return nil
	}
	return inv.Result
}
