package listview

import (
	"context"

	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

// Controller keeps one store domain in sync with the page a view asks for.
type Controller[T any] struct {
	Store  *store.Store
	Domain store.Domain
	Load   func(context.Context, store.Query) (T, error)
	Loaded func(store.Query, T) store.Action
}

// Ensure fetches q unless the domain already holds a fresh copy of it. It reports whether a
// request was made.
func (c Controller[T]) Ensure(ctx context.Context, q store.Query) (bool, error) {
	if !c.Store.State().NeedsFetch(c.Domain, q) {
		return false, nil
	}
	_, err := store.Fetch(ctx, c.Store, c.Domain, q, c.Load, c.Loaded)
	return true, err
}

// ReplacedText is shown when another request of the same session replaced the list
// between this request's fetch and its render.
const ReplacedText = "This list was reloaded from another tab. Refresh to see this page."

// Rows returns the rows of list when it holds q. failed keeps the last loaded rows on screen
// after a fetch error; otherwise rows of a different query are never returned.
func Rows[T any](list store.List[T], q store.Query, failed bool) (rows []T, total int, ok bool) {
	if list.Holds(q) || failed {
		return list.Items, list.Total, true
	}
	return nil, 0, false
}
