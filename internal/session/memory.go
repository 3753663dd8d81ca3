package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// MemoryStore is the default process-lifetime session store. Each session
// carries its own mutex so appends to one session never block turns on
// another, while two concurrent turns on the same session cannot
// interleave slot updates.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	mu sync.Mutex
	s  *models.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (m *MemoryStore) entry(sessionID string, create bool) (*memorySession, bool) {
	m.mu.RLock()
	e, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok || !create {
		return e, ok
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.sessions[sessionID]; ok {
		return e, true
	}
	now := time.Now().UTC()
	e = &memorySession{s: &models.Session{
		ID:        sessionID,
		Slots:     make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}}
	m.sessions[sessionID] = e
	return e, true
}

// Append commits a turn under the session's writer lock.
func (m *MemoryStore) Append(_ context.Context, sessionID string, turn *models.Turn, slotUpdates map[string]any) (*models.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("append: empty session id")
	}
	e, _ := m.entry(sessionID, true)

	e.mu.Lock()
	defer e.mu.Unlock()

	committed := cloneTurn(turn)
	committed.SessionID = sessionID
	committed.Index = e.s.NextIndex()
	e.s.Turns = append(e.s.Turns, committed)

	for k, v := range slotUpdates {
		e.s.Slots[k] = v
	}
	e.s.Version++
	e.s.UpdatedAt = time.Now().UTC()

	turn.Index = committed.Index
	turn.SessionID = sessionID
	return cloneSession(e.s), nil
}

// Get returns a copy of the session, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (*models.Session, error) {
	e, ok := m.entry(sessionID, false)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSession(e.s), nil
}

// Snapshot returns a copy for an in-flight turn; unknown ids get a fresh,
// unpersisted session.
func (m *MemoryStore) Snapshot(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := m.Get(ctx, sessionID)
	if err == ErrNotFound {
		return &models.Session{ID: sessionID, Slots: make(map[string]any)}, nil
	}
	return s, err
}

// ResetSlots deletes slots matching the predicate.
func (m *MemoryStore) ResetSlots(_ context.Context, sessionID string, match func(key string) bool) error {
	e, ok := m.entry(sessionID, false)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.s.Slots {
		if match(k) {
			delete(e.s.Slots, k)
		}
	}
	e.s.Version++
	e.s.UpdatedAt = time.Now().UTC()
	return nil
}
