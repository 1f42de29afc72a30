// Package flight provides a keyed single-flight guard: at most one in-flight
// mutation per entity key. Unlike a lock, a second caller for the same key is
// rejected immediately rather than queued, so a slow collaborator call never
// builds up a convoy of writers behind it.
package flight

import (
	"sync"

	"consentdesk/pkg/platform/sentinel"
)

// Group tracks in-flight keys. The zero value is not ready; use New.
type Group struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func New() *Group {
	return &Group{inflight: make(map[string]struct{})}
}

// Acquire claims the flight slot for key. It returns a release func on
// success and sentinel.ErrInFlight when another mutation holds the key.
// Release must be called exactly once.
func (g *Group) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return nil, sentinel.ErrInFlight
	}
	g.inflight[key] = struct{}{}
	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}
	return release, nil
}

// Busy reports whether a mutation for key is currently in flight.
func (g *Group) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inflight[key]
	return busy
}
