package conversation

import (
	"sync"
	"time"
)

// TrackedCall identifies one outstanding call attempt for the stuck-call
// sweep.
type TrackedCall struct {
	UserID string
	CallID string
}

// Store holds conversation state keyed by user id and answers reverse
// lookups by call-tracking id for the callback correlator.
type Store interface {
	// Get returns the state for userID, or nil when none exists.
	Get(userID string) *State

	// GetOrCreate returns the state for userID, creating a fresh idle one
	// when absent.
	GetOrCreate(userID string) *State

	// Reset replaces the user's state with a fresh idle session and
	// returns it.
	Reset(userID string) *State

	// Save persists the state and refreshes the call-id index. The memory
	// store shares pointers so this only rebuilds the index; the redis
	// store serializes.
	Save(userID string, st *State) error

	// FindByCallID resolves a call-tracking id to its owning user and
	// state. The second return is false when no session owns the id.
	FindByCallID(callID string) (string, *State, bool)

	// StaleCalls returns outstanding non-sentinel call ids on states not
	// updated since the cutoff, for the watchdog to fail out.
	StaleCalls(cutoff time.Time) []TrackedCall
}

// MemoryStore is the default in-process Store. State pointers are shared
// with callers; the call-id index is rebuilt on every Save.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
	calls  map[string]string // call-tracking id -> user id
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*State),
		calls:  make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Get(userID string) *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[userID]
}

func (m *MemoryStore) GetOrCreate(userID string) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[userID]; ok {
		return st
	}
	st := NewState()
	m.states[userID] = st
	return st
}

func (m *MemoryStore) Reset(userID string) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.states[userID]; ok {
		m.dropIndexLocked(userID, old)
	}
	st := NewState()
	m.states[userID] = st
	return st
}

func (m *MemoryStore) Save(userID string, st *State) error {
	st.Lock()
	ids := st.trackedIDs()
	st.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.states[userID]; ok && old != st {
		m.dropIndexLocked(userID, old)
	}
	m.states[userID] = st
	for id, owner := range m.calls {
		if owner == userID {
			delete(m.calls, id)
		}
	}
	for _, id := range ids {
		if id != PendingCallSentinel {
			m.calls[id] = userID
		}
	}
	return nil
}

func (m *MemoryStore) FindByCallID(callID string) (string, *State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	userID, ok := m.calls[callID]
	if !ok {
		return "", nil, false
	}
	st, ok := m.states[userID]
	if !ok {
		return "", nil, false
	}
	return userID, st, true
}

func (m *MemoryStore) StaleCalls(cutoff time.Time) []TrackedCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stale []TrackedCall
	for userID, st := range m.states {
		st.Lock()
		if st.UpdatedAt.After(cutoff) {
			st.Unlock()
			continue
		}
		for _, id := range st.trackedIDs() {
			if id == PendingCallSentinel {
				continue
			}
			stale = append(stale, TrackedCall{UserID: userID, CallID: id})
		}
		st.Unlock()
	}
	return stale
}

func (m *MemoryStore) dropIndexLocked(userID string, _ *State) {
	for id, owner := range m.calls {
		if owner == userID {
			delete(m.calls, id)
		}
	}
}
