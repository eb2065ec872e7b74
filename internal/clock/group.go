package clock

import (
	"sync"
	"time"
)

// Group owns a set of timers that are cancelled together. Once Cancel
// returns, no callback scheduled before the call is running or will run:
// callbacks execute one at a time under the group's run lock and check
// the generation they were scheduled in.
type Group struct {
	clock Clock

	mu         sync.Mutex
	generation uint64
	nextID     uint64
	timers     map[uint64]*Timer

	run sync.Mutex
}

// NewGroup returns an empty group driven by c.
func NewGroup(c Clock) *Group {
	return &Group{clock: c, timers: make(map[uint64]*Timer)}
}

// After schedules f to run once d has elapsed, unless the group is
// cancelled first.
func (g *Group) After(d time.Duration, f func()) {
	g.mu.Lock()
	generation := g.generation
	g.nextID++
	id := g.nextID
	g.timers[id] = nil
	g.mu.Unlock()

	fire := func() {
		g.run.Lock()
		defer g.run.Unlock()

		g.mu.Lock()
		delete(g.timers, id)
		stale := generation != g.generation
		g.mu.Unlock()
		if stale {
			return
		}
		f()
	}

	timer := g.clock.AfterFunc(d, fire)

	g.mu.Lock()
	if generation != g.generation {
		timer.Stop()
	} else if _, pending := g.timers[id]; pending {
		g.timers[id] = timer
	}
	g.mu.Unlock()
}

// Cancel stops every pending timer and waits for an in-flight callback
// to finish. Cancel must not be called from inside one of the group's
// own callbacks.
func (g *Group) Cancel() {
	g.mu.Lock()
	g.generation++
	timers := g.timers
	g.timers = make(map[uint64]*Timer)
	g.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}

	// Wait out a callback that passed its generation check already.
	g.run.Lock()
	g.run.Unlock()
}

// Pending returns the number of scheduled callbacks that have not run.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers)
}
