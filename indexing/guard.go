package indexing

import "sync"

// KeyGuard tracks the recipe keys currently being written.
// It is safe for concurrent use.
type KeyGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewKeyGuard creates an empty guard.
func NewKeyGuard() *KeyGuard {
	return &KeyGuard{inFlight: make(map[string]struct{})}
}

// TryAcquire marks key as in flight.
// Returns false if another writer already holds it.
func (g *KeyGuard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[key]; busy {
		return false
	}
	g.inFlight[key] = struct{}{}
	return true
}

// Release clears the given keys.
func (g *KeyGuard) Release(keys ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, key := range keys {
		delete(g.inFlight, key)
	}
}

// InFlight returns the number of keys currently held.
func (g *KeyGuard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
