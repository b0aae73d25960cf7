package store

import "github.com/facelessdevhack/plati-rail-admin/internal/models"

// Action is a plain state transition request.
type Action interface {
	// Domains lists the slices the action touches; subscribers of those domains are notified.
	Domains() []Domain
}

// FetchStarted marks a slice as loading for q. Rows already rendered stay in place.
type FetchStarted struct {
	Domain Domain
	Query  Query
}

// FetchFailed records a failed load; existing rows are kept.
type FetchFailed struct {
	Domain Domain
	Query  Query
	Err    error
}

// DealersLoaded replaces the dealers list.
type DealersLoaded struct {
	Query Query
	Items []models.Dealer
	Total int
}

// DealerInfoLoaded replaces the dealer header record.
type DealerInfoLoaded struct {
	Query  Query
	Dealer models.Dealer
}

// EntriesLoaded replaces the ledger entries list.
type EntriesLoaded struct {
	Query Query
	Items []models.LedgerEntry
	Total int
}

// PaymentsLoaded replaces the payment entries list.
type PaymentsLoaded struct {
	Query Query
	Items []models.PaymentEntry
	Total int
}

// PlansLoaded replaces the production plan list.
type PlansLoaded struct {
	Query Query
	Items []models.ProductionPlan
	Total int
}

// WarrantyLoaded replaces the warranty registration list.
type WarrantyLoaded struct {
	Query Query
	Items []models.WarrantyRegistration
	Total int
}

// EntryChecked flips the checked flag of one ledger entry.
type EntryChecked struct {
	EntryID int64
}

// PaymentChecked flips the checked flag of one payment entry.
type PaymentChecked struct {
	PaymentID int64
}

// WarrantyUpdated patches one warranty registration with the server's answer.
type WarrantyUpdated struct {
	Registration models.WarrantyRegistration
}

// Invalidated marks a slice stale so the next read re-fetches it.
type Invalidated struct {
	Domain Domain
}

func (a FetchStarted) Domains() []Domain     { return []Domain{a.Domain} }
func (a FetchFailed) Domains() []Domain      { return []Domain{a.Domain} }
func (a DealersLoaded) Domains() []Domain    { return []Domain{DomainDealers} }
func (a DealerInfoLoaded) Domains() []Domain { return []Domain{DomainDealerInfo} }
func (a EntriesLoaded) Domains() []Domain    { return []Domain{DomainEntries} }
func (a PaymentsLoaded) Domains() []Domain   { return []Domain{DomainPayments} }
func (a PlansLoaded) Domains() []Domain      { return []Domain{DomainPlans} }
func (a WarrantyLoaded) Domains() []Domain   { return []Domain{DomainWarranty} }
func (a EntryChecked) Domains() []Domain     { return []Domain{DomainEntries} }
func (a PaymentChecked) Domains() []Domain   { return []Domain{DomainPayments} }
func (a WarrantyUpdated) Domains() []Domain  { return []Domain{DomainWarranty} }
func (a Invalidated) Domains() []Domain      { return []Domain{a.Domain} }
