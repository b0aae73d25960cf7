package ledger

import (
	"fmt"
	"html/template"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/facelessdevhack/plati-rail-admin/internal/listview"
	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

func money(value any) template.HTML {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return ""
	}
	return template.HTML(template.HTMLEscapeString(shared.FormatMoney(d)))
}

func balance(value any) template.HTML {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return ""
	}
	return template.HTML(fmt.Sprintf(`<span class="balance balance--%s">%s</span>`,
		shared.BalanceTone(d), template.HTMLEscapeString(shared.FormatMoney(d))))
}

func badge(checked bool) template.HTML {
	if checked {
		return `<span class="badge badge--ok">Checked</span>`
	}
	return `<span class="badge badge--muted">Unchecked</span>`
}

func dealerColumns() []listview.Column[models.Dealer] {
	return []listview.Column[models.Dealer]{
		{Key: "name", Title: "Dealer", Value: func(d models.Dealer) any { return d.Name }},
		{Key: "balance", Title: "Balance", Align: listview.AlignRight,
			Value:  func(d models.Dealer) any { return d.CurrentBalance },
			Render: func(v any, _ models.Dealer) template.HTML { return balance(v) }},
		{Key: "overdue", Title: "Overdue", Align: listview.AlignRight,
			Value:  func(d models.Dealer) any { return d.OverdueAmount },
			Render: func(v any, _ models.Dealer) template.HTML { return money(v) }},
		{Key: "unchecked", Title: "Unchecked", Align: listview.AlignRight,
			Value: func(d models.Dealer) any { return d.UncheckedCount }},
	}
}

func entryColumns() []listview.Column[models.LedgerEntry] {
	return []listview.Column[models.LedgerEntry]{
		{Key: "date", Title: "Date", Sortable: true, Value: func(e models.LedgerEntry) any {
			if e.Date.IsZero() {
				return nil
			}
			return e.Date.Format(filenameDateLayout)
		}},
		{Key: "source", Title: "Source", Value: func(e models.LedgerEntry) any { return string(e.SourceType) }},
		{Key: "product", Title: "Product", Value: func(e models.LedgerEntry) any { return e.ProductName }},
		{Key: "description", Title: "Description", Value: func(e models.LedgerEntry) any { return e.Description }},
		{Key: "quantity", Title: "Qty", Align: listview.AlignRight, Value: func(e models.LedgerEntry) any {
			if e.SourceType.IsPaymentType() {
				return nil
			}
			return e.Quantity
		}},
		{Key: "price", Title: "Price", Align: listview.AlignRight,
			Value:  func(e models.LedgerEntry) any { return e.Price },
			Render: func(v any, _ models.LedgerEntry) template.HTML { return money(v) }},
		{Key: "amount", Title: "Amount", Sortable: true, Align: listview.AlignRight,
			Value:  func(e models.LedgerEntry) any { return e.Amount },
			Render: func(v any, _ models.LedgerEntry) template.HTML { return money(v) }},
		{Key: "status", Title: "Payment", Value: func(e models.LedgerEntry) any { return string(e.PaymentStatus) }},
		{Key: "balance", Title: "Balance After", Align: listview.AlignRight,
			Value:  func(e models.LedgerEntry) any { return e.BalanceAfter },
			Render: func(v any, _ models.LedgerEntry) template.HTML { return balance(v) }},
		{Key: "checked", Title: "Status", Align: listview.AlignCenter,
			Render: func(_ any, e models.LedgerEntry) template.HTML { return badge(e.Checked()) }},
	}
}

func paymentColumns() []listview.Column[models.PaymentEntry] {
	return []listview.Column[models.PaymentEntry]{
		{Key: "date", Title: "Date", Value: func(p models.PaymentEntry) any {
			if p.PaymentDate.IsZero() {
				return nil
			}
			return p.PaymentDate.Format(filenameDateLayout)
		}},
		{Key: "method", Title: "Method", Value: func(p models.PaymentEntry) any { return p.Method.Label }},
		{Key: "description", Title: "Description", Value: func(p models.PaymentEntry) any { return p.Description }},
		{Key: "amount", Title: "Amount", Align: listview.AlignRight,
			Value:  func(p models.PaymentEntry) any { return p.Amount },
			Render: func(v any, _ models.PaymentEntry) template.HTML { return money(v) }},
		{Key: "balance", Title: "Balance After", Align: listview.AlignRight,
			Value:  func(p models.PaymentEntry) any { return p.BalanceAfter },
			Render: func(v any, _ models.PaymentEntry) template.HTML { return balance(v) }},
		{Key: "checked", Title: "Status", Align: listview.AlignCenter,
			Render: func(_ any, p models.PaymentEntry) template.HTML { return badge(p.Checked()) }},
	}
}

func entryKey(e models.LedgerEntry) string    { return strconv.FormatInt(e.ID, 10) }
func paymentKey(p models.PaymentEntry) string { return strconv.FormatInt(p.ID, 10) }
