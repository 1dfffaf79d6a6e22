package core

import (
	"cmp"
	"slices"
	"sync"
)

type registryEntry struct {
	identity Identity
	seq      uint64
}

// Registry is the presence store: connection handle -> Identity, with a
// secondary uniqueness constraint on username.
// All operations are serialized by one lock and perform no I/O.
type Registry struct {
	mu       sync.RWMutex
	byHandle map[string]registryEntry
	byName   map[string]string // username -> handle
	seq      uint64
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byHandle: make(map[string]registryEntry),
		byName:   make(map[string]string),
	}
}

// Upsert inserts rec. A record already holding rec.Username, or rec.Handle,
// is removed in the same critical section. The record evicted for the
// username, if any, is returned.
func (r *Registry) Upsert(rec Identity) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		evicted    Identity
		hasEvicted bool
	)
	if handle, ok := r.byName[rec.Username]; ok && handle != rec.Handle {
		evicted = r.byHandle[handle].identity
		hasEvicted = true
		r.removeLocked(handle)
	}
	r.removeLocked(rec.Handle)

	r.seq++
	r.byHandle[rec.Handle] = registryEntry{identity: rec, seq: r.seq}
	r.byName[rec.Username] = rec.Handle
	r.checkLocked()

	return evicted, hasEvicted
}

// Remove deletes the record bound to handle. Removing an unknown handle is a no-op.
func (r *Registry) Remove(handle string) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byHandle[handle]
	if !ok {
		return Identity{}, false
	}
	r.removeLocked(handle)
	r.checkLocked()
	return entry.identity, true
}

// Get returns the record bound to handle.
func (r *Registry) Get(handle string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byHandle[handle]
	return entry.identity, ok
}

// FindByUsername resolves a recipient by name.
func (r *Registry) FindByUsername(username string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handle, ok := r.byName[username]
	if !ok {
		return Identity{}, false
	}
	return r.byHandle[handle].identity, true
}

// Find returns the first record, in join order, that satisfies match.
func (r *Registry) Find(match func(Identity) bool) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.orderedLocked() {
		if match(rec) {
			return rec, true
		}
	}
	return Identity{}, false
}

// Snapshot returns the whole roster, ordered by join time.
func (r *Registry) Snapshot() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.orderedLocked()
}

// Len returns the number of joined connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byHandle)
}

func (r *Registry) removeLocked(handle string) {
	entry, ok := r.byHandle[handle]
	if !ok {
		return
	}
	delete(r.byHandle, handle)
	if r.byName[entry.identity.Username] == handle {
		delete(r.byName, entry.identity.Username)
	}
}

func (r *Registry) orderedLocked() []Identity {
	entries := make([]registryEntry, 0, len(r.byHandle))
	for _, entry := range r.byHandle {
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b registryEntry) int {
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Identity, len(entries))
	for i, entry := range entries {
		out[i] = entry.identity
	}
	return out
}

// checkLocked panics when the two indexes disagree. Upsert and Remove keep
// them in lockstep, so reaching this is a programming error.
func (r *Registry) checkLocked() {
	if len(r.byHandle) != len(r.byName) {
		panic("core: registry indexes out of sync")
	}
}
