package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
)

// Upstream records name their identifiers differently depending on the table they come
// from. Every record is decoded into a wire struct and normalised here, once:
//
//	Dealer:       value | dealerId | id, and label | name | dealerName
//	LedgerEntry:  entryId | inwardsEntryId | id
//	PaymentEntry: paymentId | id

type wireDealer struct {
	Value          *int64          `json:"value"`
	DealerID       *int64          `json:"dealerId"`
	ID             *int64          `json:"id"`
	Label          string          `json:"label"`
	Name           string          `json:"name"`
	DealerName     string          `json:"dealerName"`
	CurrentBal     decimal.Decimal `json:"currentBal"`
	OverdueAmount  decimal.Decimal `json:"overdueAmount"`
	UncheckedCount int             `json:"uncheckedCount"`
	SalesID        int64           `json:"salesId"`
}

type wireEntry struct {
	EntryID        *int64          `json:"entryId"`
	InwardsEntryID *int64          `json:"inwardsEntryId"`
	ID             *int64          `json:"id"`
	DealerID       int64           `json:"dealerId"`
	Date           string          `json:"date"`
	ProductID      int64           `json:"productId"`
	ProductName    string          `json:"productName"`
	Description    string          `json:"description"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentStatus  string          `json:"paymentStatus"`
	SourceType     string          `json:"sourceType"`
	IsChecked      models.Flag     `json:"isChecked"`
	IsClaim        models.Flag     `json:"isClaim"`
	BalanceAfter   decimal.Decimal `json:"balanceAfterEntry"`
}

type wirePayment struct {
	PaymentID         *int64          `json:"paymentId"`
	ID                *int64          `json:"id"`
	DealerID          int64           `json:"dealerId"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentMethod     int64           `json:"paymentMethod"`
	PaymentMethodName string          `json:"paymentMethodName"`
	Description       string          `json:"description"`
	PaymentDate       string          `json:"paymentDate"`
	IsChecked         models.Flag     `json:"isChecked"`
	IsPaid            models.Flag     `json:"isPaid"`
	BalanceAfter      decimal.Decimal `json:"balanceAfterEntry"`
	MiddleDealerID    int64           `json:"middleDealerId"`
}

type wireOption struct {
	ID    *int64 `json:"id"`
	Value *int64 `json:"value"`
	Label string `json:"label"`
	Name  string `json:"name"`
}

func firstID(ids ...*int64) int64 {
	for _, id := range ids {
		if id != nil && *id != 0 {
			return *id
		}
	}
	return 0
}

func firstString(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
}

// parseDate reads the date formats the backend emits; unknown input yields the zero time.
func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (w wireDealer) normalise() models.Dealer {
	return models.Dealer{
		ID:             firstID(w.Value, w.DealerID, w.ID),
		Name:           firstString(w.Label, w.Name, w.DealerName),
		CurrentBalance: w.CurrentBal,
		OverdueAmount:  w.OverdueAmount,
		UncheckedCount: w.UncheckedCount,
		SalesID:        w.SalesID,
	}
}

func (w wireEntry) normalise() models.LedgerEntry {
	return models.LedgerEntry{
		ID:            firstID(w.EntryID, w.InwardsEntryID, w.ID),
		DealerID:      w.DealerID,
		Date:          parseDate(w.Date),
		ProductID:     w.ProductID,
		ProductName:   w.ProductName,
		Description:   w.Description,
		Quantity:      w.Quantity,
		Price:         w.Price,
		Amount:        w.Amount,
		PaymentStatus: models.PaymentStatus(strings.ToLower(w.PaymentStatus)),
		SourceType:    models.SourceType(strings.ToLower(w.SourceType)),
		IsChecked:     w.IsChecked,
		IsClaim:       w.IsClaim,
		BalanceAfter:  w.BalanceAfter,
	}
}

func (w wirePayment) normalise() models.PaymentEntry {
	return models.PaymentEntry{
		ID:             firstID(w.PaymentID, w.ID),
		DealerID:       w.DealerID,
		Amount:         w.Amount,
		Method:         models.Option{ID: w.PaymentMethod, Label: w.PaymentMethodName},
		Description:    w.Description,
		PaymentDate:    parseDate(w.PaymentDate),
		IsChecked:      w.IsChecked || w.IsPaid,
		BalanceAfter:   w.BalanceAfter,
		MiddleDealerID: w.MiddleDealerID,
	}
}

func (w wireOption) normalise() models.Option {
	return models.Option{ID: firstID(w.ID, w.Value), Label: firstString(w.Label, w.Name)}
}

func normaliseAll[T any, W interface{ normalise() T }](in []W) []T {
	out := make([]T, 0, len(in))
	for _, w := range in {
		out = append(out, w.normalise())
	}
	return out
}
