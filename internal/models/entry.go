package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceType identifies where a ledger entry originated.
type SourceType string

// Ledger entry sources.
const (
	SourcePurchase SourceType = "purchase"
	SourceSale     SourceType = "sale"
	SourceCharge   SourceType = "charge"
	SourceClaim    SourceType = "claim"
	SourcePayment  SourceType = "payment"
)

// IsPaymentType reports whether the entry edits as a money movement rather than a product line.
func (s SourceType) IsPaymentType() bool {
	return s == SourcePayment || s == SourceCharge
}

// Valid reports whether s is a known source.
func (s SourceType) Valid() bool {
	switch s {
	case SourcePurchase, SourceSale, SourceCharge, SourceClaim, SourcePayment:
		return true
	}
	return false
}

// PaymentStatus tracks settlement of a ledger entry.
type PaymentStatus string

// Payment statuses.
const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// LedgerEntry is a daily entry owned by a dealer.
type LedgerEntry struct {
	ID            int64
	DealerID      int64
	Date          time.Time
	ProductID     int64
	ProductName   string
	Description   string
	Quantity      int
	Price         decimal.Decimal
	Amount        decimal.Decimal
	PaymentStatus PaymentStatus
	SourceType    SourceType
	IsChecked     Flag
	IsClaim       Flag
	BalanceAfter  decimal.Decimal
}

// Checked reports whether an administrator has verified the entry.
func (e LedgerEntry) Checked() bool {
	return bool(e.IsChecked)
}
