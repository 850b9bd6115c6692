package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps sessions in memory and expires idle ones.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store. A zero ttl disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a fresh Idle session.
func (st *Store) Create() *Session {
	s := newSession(uuid.New().String(), st.now())

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session unless a stage is running on it.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if !s.busy.TryLock() {
		return ErrSessionBusy
	}
	delete(st.sessions, id)
	s.busy.Unlock()
	return nil
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Prune drops sessions idle for longer than the TTL and returns how many went.
// Sessions with a running stage are kept.
func (st *Store) Prune() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if s.UpdatedAt().After(cutoff) {
			continue
		}
		if !s.busy.TryLock() {
			continue
		}
		delete(st.sessions, id)
		s.busy.Unlock()
		removed++
	}
	return removed
}
