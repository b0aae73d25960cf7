package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEntry is a money movement recorded against a dealer.
type PaymentEntry struct {
	ID             int64
	DealerID       int64
	Amount         decimal.Decimal
	Method         Option
	Description    string
	PaymentDate    time.Time
	IsChecked      Flag
	BalanceAfter   decimal.Decimal
	MiddleDealerID int64
}

// Checked reports whether the payment has been verified.
func (p PaymentEntry) Checked() bool {
	return bool(p.IsChecked)
}
