package workflow

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Guard tracks job identities with a run in flight.
type Guard struct {
	mu   sync.Mutex
	held map[string]string
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard {
	return &Guard{held: make(map[string]string)}
}

// TryAcquire atomically claims id. It returns a token for Release and false
// when id is already held.
func (g *Guard) TryAcquire(id string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[id]; busy {
		return "", false
	}
	token := uuid.NewString()
	g.held[id] = token
	return token, true
}

// Release frees id if token still owns it.
func (g *Guard) Release(id, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[id] == token {
		delete(g.held, id)
	}
}

// Held reports whether id is currently claimed.
func (g *Guard) Held(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[id]
	return ok
}

// Snapshot returns the held identities in sorted order.
func (g *Guard) Snapshot() []string {
	g.mu.Lock()
	ids := make([]string, 0, len(g.held))
	for id := range g.held {
		ids = append(ids, id)
	}
	g.mu.Unlock()
	slices.Sort(ids)
	return ids
}
