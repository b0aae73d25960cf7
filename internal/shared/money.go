package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.MustParse("en-IN"))

// Balance tones used by templates to colour running balances.
const (
	ToneNegative = "negative"
	TonePositive = "positive"
)

// BalanceTone classifies a balance for display: below zero is negative, everything else positive.
func BalanceTone(value decimal.Decimal) string {
	if value.IsNegative() {
		return ToneNegative
	}
	return TonePositive
}

// FormatMoney renders an amount with two decimals and locale grouping.
func FormatMoney(value decimal.Decimal) string {
	f, _ := value.Round(2).Float64()
	return moneyPrinter.Sprintf("%.2f", f)
}
