package store

import "github.com/facelessdevhack/plati-rail-admin/internal/models"

// Reduce applies a to s and returns the next state. It never mutates s.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case FetchStarted:
		return withMeta(s, act.Domain, func(m Meta) Meta {
			q := act.Query
			m.Loading = true
			m.Pending = &q
			m.Err = ""
			return m
		})
	case FetchFailed:
		if !s.Meta(act.Domain).answers(act.Query) {
			return s
		}
		return withMeta(s, act.Domain, func(m Meta) Meta {
			m.Loading = false
			if act.Err != nil {
				m.Err = act.Err.Error()
			}
			return m
		})
	case Invalidated:
		return withMeta(s, act.Domain, func(m Meta) Meta {
			m.Stale = true
			return m
		})
	case DealersLoaded:
		if s.Dealers.answers(act.Query) {
			s.Dealers = List[models.Dealer]{Meta: loadedMeta(s.Dealers.Meta, act.Query), Items: act.Items, Total: act.Total}
		}
	case DealerInfoLoaded:
		if s.DealerInfo.answers(act.Query) {
			s.DealerInfo = DealerInfo{Meta: loadedMeta(s.DealerInfo.Meta, act.Query), Dealer: act.Dealer}
		}
	case EntriesLoaded:
		if s.Entries.answers(act.Query) {
			s.Entries = List[models.LedgerEntry]{Meta: loadedMeta(s.Entries.Meta, act.Query), Items: act.Items, Total: act.Total}
		}
	case PaymentsLoaded:
		if s.Payments.answers(act.Query) {
			s.Payments = List[models.PaymentEntry]{Meta: loadedMeta(s.Payments.Meta, act.Query), Items: act.Items, Total: act.Total}
		}
	case PlansLoaded:
		if s.Plans.answers(act.Query) {
			s.Plans = List[models.ProductionPlan]{Meta: loadedMeta(s.Plans.Meta, act.Query), Items: act.Items, Total: act.Total}
		}
	case WarrantyLoaded:
		if s.Warranty.answers(act.Query) {
			s.Warranty = List[models.WarrantyRegistration]{Meta: loadedMeta(s.Warranty.Meta, act.Query), Items: act.Items, Total: act.Total}
		}
	case EntryChecked:
		items := make([]models.LedgerEntry, len(s.Entries.Items))
		copy(items, s.Entries.Items)
		for i := range items {
			if items[i].ID == act.EntryID {
				items[i].IsChecked = true
			}
		}
		s.Entries.Items = items
		s.Entries.Version++
	case PaymentChecked:
		items := make([]models.PaymentEntry, len(s.Payments.Items))
		copy(items, s.Payments.Items)
		for i := range items {
			if items[i].ID == act.PaymentID {
				items[i].IsChecked = true
			}
		}
		s.Payments.Items = items
		s.Payments.Version++
	case WarrantyUpdated:
		items := make([]models.WarrantyRegistration, len(s.Warranty.Items))
		copy(items, s.Warranty.Items)
		for i := range items {
			if items[i].ID == act.Registration.ID {
				items[i] = act.Registration
			}
		}
		s.Warranty.Items = items
		s.Warranty.Version++
	}
	return s
}

// loadedMeta keeps Pending so a slower response to an older query, arriving after q,
// is still recognised as superseded.
func loadedMeta(prev Meta, q Query) Meta {
	return Meta{Query: q, Pending: prev.Pending, Loaded: true, Version: prev.Version + 1}
}

func withMeta(s State, domain Domain, fn func(Meta) Meta) State {
	switch domain {
	case DomainDealers:
		s.Dealers.Meta = fn(s.Dealers.Meta)
	case DomainDealerInfo:
		s.DealerInfo.Meta = fn(s.DealerInfo.Meta)
	case DomainEntries:
		s.Entries.Meta = fn(s.Entries.Meta)
	case DomainPayments:
		s.Payments.Meta = fn(s.Payments.Meta)
	case DomainPlans:
		s.Plans.Meta = fn(s.Plans.Meta)
	case DomainWarranty:
		s.Warranty.Meta = fn(s.Warranty.Meta)
	}
	return s
}
