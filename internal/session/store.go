// Package session provides the conversation state store: per-session turn
// history and accumulated slots, with a single serialized mutation point
// per session.
package session

import (
	"context"
	"errors"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// ErrNotFound is returned by Get for unknown session ids.
var ErrNotFound = errors.New("session not found")

// ErrStateUnavailable is surfaced when a write conflict persists after the
// single retry the contract allows.
var ErrStateUnavailable = errors.New("session state unavailable")

// Store is the conversation state contract. Append is the single point of
// mutation and must serialize writers per session id; reads return deep
// copies so a turn's routing and execution are never affected by state
// written during its own processing.
type Store interface {
	// Append commits a turn, creating the session if absent. The store
	// assigns the turn index (strictly increasing, gap-free) and merges
	// slotUpdates last-write-wins per key. Returns the updated session.
	Append(ctx context.Context, sessionID string, turn *models.Turn, slotUpdates map[string]any) (*models.Session, error)

	// Get returns a copy of the session, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// Snapshot returns an immutable copy for a turn about to start; for
	// an unknown id it returns a fresh empty session that is not yet
	// persisted.
	Snapshot(ctx context.Context, sessionID string) (*models.Session, error)

	// ResetSlots deletes slots whose keys match the predicate.
	ResetSlots(ctx context.Context, sessionID string, match func(key string) bool) error
}

// cloneSession deep-copies a session so callers can never alias store
// internals.
func cloneSession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	out := &models.Session{
		ID:        s.ID,
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Turns:     make([]models.Turn, len(s.Turns)),
		Slots:     make(map[string]any, len(s.Slots)),
	}
	for i, t := range s.Turns {
		out.Turns[i] = cloneTurn(&t)
	}
	for k, v := range s.Slots {
		out.Slots[k] = v
	}
	return out
}

func cloneTurn(t *models.Turn) models.Turn {
	out := *t
	out.Invocations = make([]models.ToolInvocation, len(t.Invocations))
	for i, inv := range t.Invocations {
		ci := inv
		ci.Args = cloneMap(inv.Args)
		ci.Result = cloneMap(inv.Result)
		out.Invocations[i] = ci
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
