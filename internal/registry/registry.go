// Package registry implements the kernel's shared aircraft directory: a
// concurrency-safe map from aircraft ID to its current state, read and
// written by many periodic tasks at once.
//
// Grounded on the teacher's internal/atc/atcvoicemanager.go, which
// guards a shared map of per-aircraft state with a sync.RWMutex and
// returns copies rather than live pointers to callers outside its own
// package. Per-aircraft snapshots use github.com/mohae/deepcopy, the
// same library the teacher's NotifyAircraftChange uses to hand a
// caller-owned copy of an *Aircraft out to a notification goroutine.
package registry

import (
	"sync"

	"github.com/mohae/deepcopy"

	"github.com/curbz/atc-kernel/internal/model"
)

// Registry holds one model.State per tracked aircraft. Callers always
// receive copies: no caller can mutate another goroutine's view of an
// aircraft through a Registry method.
//
// Lock ordering: code that holds an aircraft's own mutex (internal/aircraft.Aircraft)
// must never call back into the Registry while holding it. Callers
// acquire the Registry lock first, then, if they need an aircraft's own
// lock, acquire that second — never the reverse — to avoid deadlock
// between a Registry-wide operation (e.g. Snapshot) and a per-aircraft
// operation.
type Registry struct {
	mu    sync.RWMutex
	items map[string]model.State

	removeMu sync.Mutex
	onRemove []RemoveObserver
}

// RemoveObserver is notified with an aircraft's ID whenever Remove
// purges it, so dependent components can purge their own per-aircraft
// state in the same step (spec.md §4.6: "Remove also purges any
// dependent state in the Separation Engine's cooldown map and the Radar
// Tracker's track set"). The kernel wires this to
// separation.Engine.Forget and radar.Tracker.Forget.
type RemoveObserver func(id string)

// New returns an empty Registry.
func New() *Registry {
	return &Registry{items: make(map[string]model.State)}
}

// OnRemove registers obs to be called, in registration order, every
// time Remove purges an aircraft that was actually present.
func (r *Registry) OnRemove(obs RemoveObserver) {
	r.removeMu.Lock()
	defer r.removeMu.Unlock()
	r.onRemove = append(r.onRemove, obs)
}

// Put inserts or replaces the state recorded for an aircraft.
func (r *Registry) Put(s model.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.ID] = s
}

// Remove deletes an aircraft from the registry and notifies every
// registered RemoveObserver. It is not an error to remove an ID that is
// not present; observers only run when the ID actually existed.
// Observers are copied out and called after the registry lock is
// released, the same snapshot-then-release-then-use discipline Snapshot
// and Get use, and the same pattern internal/bus.InMemory.Send uses for
// its own handler list.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, existed := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()

	if !existed {
		return
	}

	r.removeMu.Lock()
	observers := make([]RemoveObserver, len(r.onRemove))
	copy(observers, r.onRemove)
	r.removeMu.Unlock()

	for _, obs := range observers {
		obs(id)
	}
}

// Get returns a copy of the state recorded for id, and whether it was
// found.
func (r *Registry) Get(id string) (model.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	return s, ok
}

// Snapshot returns a copy of every aircraft currently registered. The
// copy is consistent per-aircraft but not across aircraft: two entries
// in the returned slice may reflect different moments, since each
// aircraft's own goroutine updates it independently of the others and
// Snapshot takes one RLock over the whole map rather than one lock per
// aircraft (spec.md §4.3: "a consistent-enough view, not a global
// freeze").
func (r *Registry) Snapshot() []model.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.State, 0, len(r.items))
	for _, s := range r.items {
		out = append(out, deepcopy.Copy(s).(model.State))
	}
	return out
}

// IDs returns the set of aircraft IDs currently registered.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for id := range r.items {
		out = append(out, id)
	}
	return out
}

// Len returns the number of aircraft currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
