package store

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry keeps one Store per dashboard session.
type Registry struct {
	mu     sync.Mutex
	stores *expirable.LRU[string, *Store]
}

// NewRegistry builds a registry bounded by size; a store expires ttl after its last use.
func NewRegistry(size int, ttl time.Duration) *Registry {
	if size <= 0 {
		size = 1024
	}
	return &Registry{
		stores: expirable.NewLRU[string, *Store](size, nil, ttl),
	}
}

// Get returns the store for sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.stores.Get(sessionID); ok {
		// Get leaves the expiry untouched; Add restarts it.
		r.stores.Add(sessionID, st)
		return st
	}
	st := New()
	r.stores.Add(sessionID, st)
	return st
}

// Drop forgets the store of a session, typically on logout.
func (r *Registry) Drop(sessionID string) {
	r.stores.Remove(sessionID)
}

// Len reports how many sessions currently hold a store.
func (r *Registry) Len() int {
	return r.stores.Len()
}
