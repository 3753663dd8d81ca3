package tools

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CalendarEvent is one stored event.
type CalendarEvent struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end,omitempty"`
}

// Calendar is an in-memory calendar store. Event creation is not
// idempotent by nature, so the create tool dedupes on the idempotency key
// the executor derives from turn id + invocation index: a retry after a
// timeout produces exactly one event.
type Calendar struct {
	mu     sync.Mutex
	events map[string][]CalendarEvent // user id → events
	seen   map[string]string          // idempotency key → event id
}

// NewCalendar creates an empty calendar store.
func NewCalendar() *Calendar {
	return &Calendar{
		events: make(map[string][]CalendarEvent),
		seen:   make(map[string]string),
	}
}

// Events returns a copy of a user's events sorted by start time.
func (c *Calendar) Events(userID string) []CalendarEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CalendarEvent, len(c.events[userID]))
	copy(out, c.events[userID])
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// ── calendar.create_event ───────────────────────────────────

// CalendarCreate is the event-creation tool.
type CalendarCreate struct {
	cal *Calendar
}

// NewCalendarCreate creates the calendar.create_event tool.
func NewCalendarCreate(cal *Calendar) *CalendarCreate { return &CalendarCreate{cal: cal} }

func (t *CalendarCreate) Name() string     { return "calendar.create_event" }
func (t *CalendarCreate) Idempotent() bool { return false }

// Invoke creates an event. Args: user_id, title, start (RFC 3339), end
// (optional), idempotency_key (injected by the executor). Result:
// event_id, created (false when deduped).
func (t *CalendarCreate) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	title, err := stringArg(args, "title")
	if err != nil {
		return nil, err
	}
	startStr, err := stringArg(args, "start")
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return nil, err
	}
	userID := optStringArg(args, "user_id", "default")
	key := optStringArg(args, "idempotency_key", "")

	var end time.Time
	if endStr := optStringArg(args, "end", ""); endStr != "" {
		end, _ = time.Parse(time.RFC3339, endStr)
	}

	t.cal.mu.Lock()
	defer t.cal.mu.Unlock()

	if key != "" {
		if id, ok := t.cal.seen[key]; ok {
			return map[string]any{"event_id": id, "created": false}, nil
		}
	}

	event := CalendarEvent{
		ID:     uuid.New().String(),
		UserID: userID,
		Title:  title,
		Start:  start,
		End:    end,
	}
	t.cal.events[userID] = append(t.cal.events[userID], event)
	if key != "" {
		t.cal.seen[key] = event.ID
	}

	return map[string]any{"event_id": event.ID, "created": true}, nil
}

// ── calendar.list_upcoming ──────────────────────────────────

// CalendarList lists upcoming events inside a horizon.
type CalendarList struct {
	cal *Calendar
	now func() time.Time
}

// NewCalendarList creates the calendar.list_upcoming tool.
func NewCalendarList(cal *Calendar) *CalendarList {
	return &CalendarList{cal: cal, now: time.Now}
}

func (t *CalendarList) Name() string     { return "calendar.list_upcoming" }
func (t *CalendarList) Idempotent() bool { return true }

// Invoke lists events. Args: user_id, horizon_days (default 7), limit
// (default 10). Result: events ([]{id, title, start}), count.
func (t *CalendarList) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	userID := optStringArg(args, "user_id", "default")
	horizon := intArg(args, "horizon_days", 7)
	limit := intArg(args, "limit", 10)

	now := t.now().UTC()
	until := now.AddDate(0, 0, horizon)

	var events []map[string]any
	for _, e := range t.cal.Events(userID) {
		if e.Start.Before(now) || e.Start.After(until) {
			continue
		}
		events = append(events, map[string]any{
			"id":    e.ID,
			"title": e.Title,
			"start": e.Start.Format(time.RFC3339),
		})
		if len(events) >= limit {
			break
		}
	}

	return map[string]any{"events": events, "count": len(events)}, nil
}
