package ledger

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

// PaymentForm collects a new payment entry.
type PaymentForm struct {
	Description    string `validate:"required,max=255"`
	Amount         string `validate:"required,money"`
	Date           string `validate:"required,datetime=2006-01-02"`
	PaymentMethod  int64  `validate:"required,gt=0"`
	MiddleDealerID int64  `validate:"omitempty,gt=0"`
}

// NewPaymentForm returns an empty form dated today.
func NewPaymentForm(now time.Time) PaymentForm {
	return PaymentForm{Date: now.Format(upstreamDateLayout)}
}

// ParsePaymentForm reads the posted payment form.
func ParsePaymentForm(values url.Values) PaymentForm {
	return PaymentForm{
		Description:    strings.TrimSpace(values.Get("description")),
		Amount:         strings.TrimSpace(values.Get("amount")),
		Date:           strings.TrimSpace(values.Get("payment_date")),
		PaymentMethod:  parseID(values.Get("payment_method")),
		MiddleDealerID: parseID(values.Get("middle_dealer_id")),
	}
}

// Input converts a validated form into the create-pm-entry body.
func (f PaymentForm) Input(dealerID int64) PaymentInput {
	in := PaymentInput{
		DealerID:      dealerID,
		Description:   f.Description,
		Amount:        decimal.RequireFromString(f.Amount).StringFixed(2),
		PaymentMethod: f.PaymentMethod,
		PaymentDate:   f.Date,
	}
	if f.MiddleDealerID > 0 {
		id := f.MiddleDealerID
		in.MiddleDealerID = &id
	}
	return in
}

// EditForm collects changes to one ledger entry. Which fields apply depends on the entry's
// source type: payment-type entries edit description and amount, product entries edit the
// product reference, quantity, price and the claim flag.
type EditForm struct {
	SourceType  models.SourceType
	Description string
	Amount      string
	ProductID   int64
	Quantity    int
	Price       string
	IsClaim     bool
}

type paymentEdit struct {
	Description string `validate:"required,max=255"`
	Amount      string `validate:"required,money"`
}

type productEdit struct {
	ProductID int64  `validate:"required,gt=0"`
	Quantity  int    `validate:"required,gt=0"`
	Price     string `validate:"required,money_gte"`
}

// EditFormFor pre-fills the edit form from an entry.
func EditFormFor(e models.LedgerEntry) EditForm {
	return EditForm{
		SourceType:  e.SourceType,
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
		ProductID:   e.ProductID,
		Quantity:    e.Quantity,
		Price:       e.Price.StringFixed(2),
		IsClaim:     bool(e.IsClaim),
	}
}

// ParseEditForm reads the posted edit form for an entry of the given source.
func ParseEditForm(source models.SourceType, values url.Values) EditForm {
	qty, _ := strconv.Atoi(strings.TrimSpace(values.Get("quantity")))
	return EditForm{
		SourceType:  source,
		Description: strings.TrimSpace(values.Get("description")),
		Amount:      strings.TrimSpace(values.Get("amount")),
		ProductID:   parseID(values.Get("product_id")),
		Quantity:    qty,
		Price:       strings.TrimSpace(values.Get("price")),
		IsClaim:     values.Get("is_claim") == "1" || values.Get("is_claim") == "on",
	}
}

// Validate checks the fields relevant to the entry's source type.
func (f EditForm) Validate(v *validator.Validate) map[string]string {
	if f.SourceType.IsPaymentType() {
		return shared.FieldErrors(v.Struct(paymentEdit{Description: f.Description, Amount: f.Amount}))
	}
	return shared.FieldErrors(v.Struct(productEdit{ProductID: f.ProductID, Quantity: f.Quantity, Price: f.Price}))
}

// Update converts a validated form into the update-entry body for entryID.
func (f EditForm) Update(entryID int64) EntryUpdate {
	up := EntryUpdate{EntryID: entryID, SourceType: f.SourceType}
	if f.SourceType.IsPaymentType() {
		up.Description = f.Description
		up.Amount = decimal.RequireFromString(f.Amount).StringFixed(2)
		return up
	}
	claim := models.Flag(f.IsClaim)
	up.ProductID = f.ProductID
	up.Quantity = f.Quantity
	up.Price = decimal.RequireFromString(f.Price).StringFixed(2)
	up.IsClaim = &claim
	return up
}

// ParseSelection reads the entry ids ticked in a bulk form.
func ParseSelection(values url.Values) []int64 {
	var ids []int64
	for _, raw := range values["entry_ids"] {
		if id := parseID(raw); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
