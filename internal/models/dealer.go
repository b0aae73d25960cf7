package models

import "github.com/shopspring/decimal"

// Dealer is a ledger counterparty. Its balance is owned by the backend.
type Dealer struct {
	ID             int64
	Name           string
	CurrentBalance decimal.Decimal
	OverdueAmount  decimal.Decimal
	UncheckedCount int
	SalesID        int64
}

// Option is a value/label pair used by select and radio inputs.
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}
