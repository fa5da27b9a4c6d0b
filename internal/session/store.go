package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/curax/triage/internal/types"
)

var (
	// ErrNotFound is returned when a session ID has no stored session.
	ErrNotFound = errors.New("session not found")
	// ErrNotActive is returned when a turn targets a non-active session.
	ErrNotActive = errors.New("session is not active")
	// ErrInvalidInput is returned when a turn carries neither usable audio
	// nor text.
	ErrInvalidInput = errors.New("invalid input: no audio or text")
)

// Store persists sessions. Implementations must be safe for concurrent use;
// turn ordering within a session is the engine's job, not the store's.
type Store interface {
	Get(ctx context.Context, id types.SessionID) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id types.SessionID) error
	List(ctx context.Context) ([]*Session, error)
}

// MemoryStore keeps sessions in a map. Snapshots are deep-copied on the way
// in and out so callers never share transcript slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[types.SessionID]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[types.SessionID]*Session)}
}

func (m *MemoryStore) Get(_ context.Context, id types.SessionID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	return copySession(s), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copySession(s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id types.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, copySession(s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func copySession(s *Session) *Session {
	dup := *s
	dup.Transcript = make([]Message, len(s.Transcript))
	copy(dup.Transcript, s.Transcript)
	dup.Context = copyContext(s.Context)
	return &dup
}

func copyContext(c Context) Context {
	dup := c
	dup.Symptoms = append([]string(nil), c.Symptoms...)
	dup.Location = append([]string(nil), c.Location...)
	dup.MedicalHistory = append([]string(nil), c.MedicalHistory...)
	dup.Medications = append([]string(nil), c.Medications...)
	dup.Allergies = append([]string(nil), c.Allergies...)
	dup.Assessment.PossibleConditions = append([]Condition(nil), c.Assessment.PossibleConditions...)
	dup.Assessment.Recommendations = append([]string(nil), c.Assessment.Recommendations...)
	return dup
}
