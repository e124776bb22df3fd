package conversation

import "sync"

// Guard serializes chat handling per user and deduplicates webhook
// redeliveries by message id.
type Guard struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	seen     map[string]struct{}
	capacity int
}

// NewGuard returns a guard whose dedup set holds at most capacity message
// ids before being cleared wholesale.
func NewGuard(capacity int) *Guard {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Guard{
		locks:    make(map[string]*sync.Mutex),
		seen:     make(map[string]struct{}),
		capacity: capacity,
	}
}

// Lock acquires the user's exclusive chat lock and returns its release
// function. Locks are created on first use and kept for the process
// lifetime.
func (g *Guard) Lock(userID string) func() {
	g.mu.Lock()
	l, ok := g.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[userID] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// SeenMessage records the message id and reports whether it was already
// seen. When the set reaches capacity it is dropped entirely rather than
// evicted piecemeal.
func (g *Guard) SeenMessage(id string) bool {
	if id == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[id]; ok {
		return true
	}
	if len(g.seen) >= g.capacity {
		g.seen = make(map[string]struct{})
	}
	g.seen[id] = struct{}{}
	return false
}
