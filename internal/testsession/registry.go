package testsession

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-testflow/internal/model"
)

type ownerTest struct {
	owner  int
	testID uuid.UUID
}

// Registry keeps the live runners of this process. A learner has at most one
// runner per test; starting again replaces the old one.
type Registry struct {
	opts Options

	mu      sync.RWMutex
	runners map[uuid.UUID]*Runner
	byOwner map[ownerTest]uuid.UUID
}

// NewRegistry creates an empty registry whose runners share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:    opts,
		runners: make(map[uuid.UUID]*Runner),
		byOwner: make(map[ownerTest]uuid.UUID),
	}
}

// Start creates a runner for owner on def. Any previous runner of the same
// owner for the same test is replaced and closed. A definition that cannot
// seed a session leaves the previous runner in place.
func (g *Registry) Start(def *model.TestDefinition, owner int) (*Runner, error) {
	key := ownerTest{owner: owner, testID: def.ID}

	r, err := NewRunner(def, owner, g.opts)
	if err != nil {
		return nil, err
	}

	// swap under one lock so concurrent starts cannot both register
	g.mu.Lock()
	var previous *Runner
	if id, ok := g.byOwner[key]; ok {
		previous = g.runners[id]
		delete(g.runners, id)
	}
	g.runners[r.ID()] = r
	g.byOwner[key] = r.ID()
	g.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return r, nil
}

// Get returns a live runner by id. A lookup counts as owner activity.
func (g *Registry) Get(id uuid.UUID) (*Runner, bool) {
	g.mu.RLock()
	r, ok := g.runners[id]
	g.mu.RUnlock()
	if ok {
		r.Touch()
	}
	return r, ok
}

// Remove closes and forgets a runner.
func (g *Registry) Remove(id uuid.UUID) bool {
	g.mu.Lock()
	r, ok := g.runners[id]
	if ok {
		delete(g.runners, id)
		key := ownerTest{owner: r.Owner(), testID: r.TestID()}
		if g.byOwner[key] == id {
			delete(g.byOwner, key)
		}
	}
	g.mu.Unlock()

	if ok {
		r.Close()
	}
	return ok
}

// Reap closes completed runners nobody has looked at for maxIdle. Idle time
// runs from the later of the last activity and completion, so a result
// stays readable for maxIdle after expiry. Runners still in progress or
// with an attached stream are kept. Returns how many were closed.
func (g *Registry) Reap(now time.Time, maxIdle time.Duration) int {
	g.mu.RLock()
	var stale []uuid.UUID
	for id, r := range g.runners {
		since, completed := r.idleSince()
		if !completed || now.Sub(since) < maxIdle {
			continue
		}
		if r.Watched() {
			continue
		}
		stale = append(stale, id)
	}
	g.mu.RUnlock()

	for _, id := range stale {
		g.Remove(id)
	}
	return len(stale)
}

// Len returns the number of live runners.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runners)
}

// CloseAll closes every runner. Used on shutdown.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	runners := make([]*Runner, 0, len(g.runners))
	for _, r := range g.runners {
		runners = append(runners, r)
	}
	g.runners = make(map[uuid.UUID]*Runner)
	g.byOwner = make(map[ownerTest]uuid.UUID)
	g.mu.Unlock()

	for _, r := range runners {
		r.Close()
	}
}
