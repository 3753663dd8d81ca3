// Package models defines the shared data model for the Majordomo
// orchestrator: sessions, turns, route decisions, and tool invocations.
package models

import (
	"time"
)

// ── Invocation Status ────────────────────────────────────────

// InvocationStatus is the lifecycle state of a single tool invocation.
// Transitions move forward only: pending → running → {succeeded, failed,
// timed_out}.
type InvocationStatus string

const (
	InvocationPending   InvocationStatus = "pending"
	InvocationRunning   InvocationStatus = "running"
	InvocationSucceeded InvocationStatus = "succeeded"
	InvocationFailed    InvocationStatus = "failed"
	InvocationTimedOut  InvocationStatus = "timed_out"
)

// Terminal reports whether the status is a settled end state.
func (s InvocationStatus) Terminal() bool {
	switch s {
	case InvocationSucceeded, InvocationFailed, InvocationTimedOut:
		return true
	}
	return false
}

// rank orders statuses along the allowed forward path.
func (s InvocationStatus) rank() int {
	switch s {
	case InvocationPending:
		return 0
	case InvocationRunning:
		return 1
	case InvocationSucceeded, InvocationFailed, InvocationTimedOut:
		return 2
	}
	return -1
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. Terminal states accept no further transitions.
func (s InvocationStatus) CanTransition(next InvocationStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// ── Turn Status ──────────────────────────────────────────────

// TurnStatus is the terminal state of a turn.
type TurnStatus string

const (
	TurnCompleted TurnStatus = "completed"
	TurnFailed    TurnStatus = "failed"
)

// ── Failure Reasons ──────────────────────────────────────────

// Turn-level failure reasons recorded on FAILED turns and in traces.
const (
	ReasonHandlerFault   = "handler fault"
	ReasonNonconvergence = "handler did not converge"
	ReasonCanceled       = "canceled"
)

// Routing rationale tags recorded on RouteDecision.
const (
	RationaleKeyword    = "keyword_match"
	RationaleSlot       = "slot_presence"
	RationaleContinuity = "turn_continuity"
	RationaleAmbiguous  = "routing_ambiguous"
)

// ── Route Decision ───────────────────────────────────────────

// RouteDecision is the router's verdict for one turn: the selected handler,
// a confidence in [0,1], the ordered fallback handlers, and a rationale tag.
// Exactly one RouteDecision is produced per turn.
type RouteDecision struct {
	Handler    string   `json:"handler"`
	Confidence float64  `json:"confidence"`
	Fallbacks  []string `json:"fallbacks,omitempty"`
	Rationale  string   `json:"rationale"`
}

// Ambiguous reports whether the decision fell through to the default
// handler because no candidate cleared the confidence floor.
func (d RouteDecision) Ambiguous() bool {
	return d.Rationale == RationaleAmbiguous
}

// ── Tool Invocation ──────────────────────────────────────────

// ToolInvocation records one tool call owned by a single turn. Results are
// matched back to requests by ID, never by completion order.
type ToolInvocation struct {
	ID             string           `json:"id"`
	Index          int              `json:"index"`
	Tool           string           `json:"tool"`
	Args           map[string]any   `json:"args,omitempty"`
	Status         InvocationStatus `json:"status"`
	Result         map[string]any   `json:"result,omitempty"`
	Error          string           `json:"error,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	EndedAt        *time.Time       `json:"ended_at,omitempty"`
}

// Settled reports whether the invocation reached a terminal status.
func (ti *ToolInvocation) Settled() bool { return ti.Status.Terminal() }

// ── Tool Requests & Handler Decisions ────────────────────────

// ToolRequest is a handler's request for one tool call in the next batch.
type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// Decision is what a handler's decide function returns: either a final
// user-facing output (possibly with slot updates), or a batch of tool
// requests to execute before re-entering the handler.
type Decision struct {
	// Output is the final user-facing text. Ignored when Requests is
	// non-empty.
	Output string `json:"output,omitempty"`

	// SlotUpdates are merged into the session last-write-wins per key
	// once the turn commits.
	SlotUpdates map[string]any `json:"slot_updates,omitempty"`

	// Requests, when non-empty, asks the executor to fan out these tool
	// calls and re-invoke the handler with the settled results.
	Requests []ToolRequest `json:"requests,omitempty"`
}

// Final reports whether the decision terminates the turn.
func (d *Decision) Final() bool { return len(d.Requests) == 0 }

// ── Turn ─────────────────────────────────────────────────────

// Turn is one request/response cycle within a session. Immutable once
// committed to the session store.
type Turn struct {
	ID          string           `json:"id"`
	SessionID   string           `json:"session_id"`
	Index       int              `json:"index"`
	Input       string           `json:"input"`
	Route       RouteDecision    `json:"route"`
	Invocations []ToolInvocation `json:"invocations,omitempty"`
	Output      string           `json:"output"`
	Status      TurnStatus       `json:"status"`
	FailReason  string           `json:"fail_reason,omitempty"`
	Cycles      int              `json:"cycles"`
	CreatedAt   time.Time        `json:"created_at"`
}

// FailedTools returns the names of invocations that did not succeed, in
// invocation order. Handlers use this to decide whether to degrade.
func (t *Turn) FailedTools() []string {
	var failed []string
	for _, inv := range t.Invocations {
		if inv.Status == InvocationFailed || inv.Status == InvocationTimedOut {
			failed = append(failed, inv.Tool)
		}
	}
	return failed
}

// ── Session ──────────────────────────────────────────────────

// Session is the per-conversation state: the committed turns and the
// accumulated slots. Created on the first message, never deleted by the
// core. Version increments on every append; the Redis store uses it for
// write-conflict detection.
type Session struct {
	ID        string         `json:"id"`
	Turns     []Turn         `json:"turns"`
	Slots     map[string]any `json:"slots"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LastTurn returns the most recently committed turn, or nil.
func (s *Session) LastTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}

// NextIndex is the index the next committed turn will receive.
func (s *Session) NextIndex() int {
	if last := s.LastTurn(); last != nil {
		return last.Index + 1
	}
	return 0
}

// Slot returns a slot value and whether it is set.
func (s *Session) Slot(key string) (any, bool) {
	v, ok := s.Slots[key]
	return v, ok
}

// ── Turn Context ─────────────────────────────────────────────

// TurnContext is the turn-so-far a handler sees on each decide call: the
// input message, an immutable session snapshot taken at the start of the
// turn, the settled invocations from prior cycles, and the cycle number.
type TurnContext struct {
	Message     string
	Session     *Session
	Route       RouteDecision
	Invocations []ToolInvocation
	Failed      []string
	Cycle       int
}

// Invocation returns the settled invocation for a tool name from the most
// recent batch, or nil if that tool was not invoked.
func (tc *TurnContext) Invocation(tool string) *ToolInvocation {
	for i := len(tc.Invocations) - 1; i >= 0; i-- {
		if tc.Invocations[i].Tool == tool {
			return &tc.Invocations[i]
		}
	}
	return nil
}

// ToolFailed reports whether the named tool failed or timed out in a
// prior cycle of this turn.
func (tc *TurnContext) ToolFailed(tool string) bool {
	inv := tc.Invocation(tool)
	if inv == nil {
		return false
	}
	return inv.Status == InvocationFailed || inv.Status == InvocationTimedOut
}

// ── Chat API ─────────────────────────────────────────────────

// ChatRequest is the chat endpoint request body. An absent SessionID
// starts a new session.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// TraceEntry is one observable tool call in the response trace.
type TraceEntry struct {
	Tool    string `json:"tool"`
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`
}

// ChatResponse is the chat endpoint response body.
type ChatResponse struct {
	Reply     string       `json:"reply"`
	Trace     []TraceEntry `json:"trace"`
	SessionID string       `json:"session_id"`
	Turn      int          `json:"turn"`
	Status    TurnStatus   `json:"status"`
}
