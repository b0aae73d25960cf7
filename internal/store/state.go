// Package store is the typed application-state container: a normalised cache of the
// last-fetched upstream responses, one slice per domain, mutated only through actions.
package store

import (
	"maps"
	"sort"
	"strconv"
	"strings"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
)

// Domain names a slice of the state.
type Domain string

// Domains held by the container.
const (
	DomainDealers    Domain = "dealers"
	DomainDealerInfo Domain = "dealer_info"
	DomainEntries    Domain = "entries"
	DomainPayments   Domain = "payments"
	DomainPlans      Domain = "plans"
	DomainWarranty   Domain = "warranty"
)

// Query identifies what a slice was loaded for. Two queries are equal when every field matches.
type Query struct {
	Scope    string
	Page     int
	PageSize int
	Params   map[string]string
}

// Equal compares queries field by field.
func (q Query) Equal(other Query) bool {
	return q.Scope == other.Scope &&
		q.Page == other.Page &&
		q.PageSize == other.PageSize &&
		maps.Equal(normaliseParams(q.Params), normaliseParams(other.Params))
}

// Key renders a stable string form of the query.
func (q Query) Key() string {
	params := normaliseParams(q.Params)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(q.Scope)
	b.WriteString("|")
	b.WriteString(strconv.Itoa(q.Page))
	b.WriteString("|")
	b.WriteString(strconv.Itoa(q.PageSize))
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	return b.String()
}

func normaliseParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Meta describes the lifecycle of a slice. Pending is the query most recently requested;
// results for any other query are dropped.
type Meta struct {
	Query   Query
	Pending *Query
	Loaded  bool
	Loading bool
	Stale   bool
	Err     string
	Version uint64
}

// answers reports whether a result for q belongs to the latest request of the slice.
func (m Meta) answers(q Query) bool {
	return m.Pending == nil || m.Pending.Equal(q)
}

// Holds reports whether the slice is loaded with exactly q.
func (m Meta) Holds(q Query) bool {
	return m.Loaded && m.Query.Equal(q)
}

// List is a paginated slice of rows.
type List[T any] struct {
	Meta
	Items []T
	Total int
}

// DealerInfo holds the header record of the dealer currently being reconciled.
type DealerInfo struct {
	Meta
	Dealer models.Dealer
}

// State is the whole container.
type State struct {
	Dealers    List[models.Dealer]
	DealerInfo DealerInfo
	Entries    List[models.LedgerEntry]
	Payments   List[models.PaymentEntry]
	Plans      List[models.ProductionPlan]
	Warranty   List[models.WarrantyRegistration]
}

// Meta returns the lifecycle metadata of a domain.
func (s State) Meta(domain Domain) Meta {
	switch domain {
	case DomainDealers:
		return s.Dealers.Meta
	case DomainDealerInfo:
		return s.DealerInfo.Meta
	case DomainEntries:
		return s.Entries.Meta
	case DomainPayments:
		return s.Payments.Meta
	case DomainPlans:
		return s.Plans.Meta
	case DomainWarranty:
		return s.Warranty.Meta
	}
	return Meta{}
}

// NeedsFetch reports whether the domain must be re-fetched to serve q.
func (s State) NeedsFetch(domain Domain, q Query) bool {
	meta := s.Meta(domain)
	return !meta.Loaded || meta.Stale || !meta.Query.Equal(q)
}

// FindEntry looks up a loaded ledger entry.
func (s State) FindEntry(id int64) (models.LedgerEntry, bool) {
	for _, e := range s.Entries.Items {
		if e.ID == id {
			return e, true
		}
	}
	return models.LedgerEntry{}, false
}

// FindPayment looks up a loaded payment entry.
func (s State) FindPayment(id int64) (models.PaymentEntry, bool) {
	for _, p := range s.Payments.Items {
		if p.ID == id {
			return p, true
		}
	}
	return models.PaymentEntry{}, false
}

// FindWarranty looks up a loaded warranty registration.
func (s State) FindWarranty(id int64) (models.WarrantyRegistration, bool) {
	for _, w := range s.Warranty.Items {
		if w.ID == id {
			return w, true
		}
	}
	return models.WarrantyRegistration{}, false
}
