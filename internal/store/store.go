package store

import (
	"context"
	"sync"
)

// Store holds the state of one dashboard session.
type Store struct {
	mu     sync.RWMutex
	state  State
	subs   map[Domain]map[int]func(State)
	nextID int
}

// New returns an empty Store.
func New() *Store {
	return &Store{subs: make(map[Domain]map[int]func(State))}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces a into the state and notifies subscribers of the touched domains.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	var listeners []func(State)
	for _, domain := range a.Domains() {
		for _, fn := range s.subs[domain] {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

// Invalidate marks a domain stale; the next read of it re-fetches.
func (s *Store) Invalidate(domains ...Domain) {
	for _, d := range domains {
		s.Dispatch(Invalidated{Domain: d})
	}
}

// Subscribe registers fn for changes of domain and returns the matching unsubscribe.
func (s *Store) Subscribe(domain Domain, fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[domain] == nil {
		s.subs[domain] = make(map[int]func(State))
	}
	id := s.nextID
	s.nextID++
	s.subs[domain][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[domain], id)
	}
}

// Fetch dispatches FetchStarted, runs load and dispatches exactly one result action:
// the action built by loaded on success, FetchFailed otherwise.
func Fetch[T any](ctx context.Context, s *Store, domain Domain, q Query, load func(context.Context, Query) (T, error), loaded func(Query, T) Action) (T, error) {
	s.Dispatch(FetchStarted{Domain: domain, Query: q})
	result, err := load(ctx, q)
	if err != nil {
		s.Dispatch(FetchFailed{Domain: domain, Query: q, Err: err})
		var zero T
		return zero, err
	}
	s.Dispatch(loaded(q, result))
	return result, nil
}
