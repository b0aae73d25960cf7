// Package ledger implements the dealer ledger reconciliation workflow: entry and payment
// listing, single and bulk checks, payment capture, entry edits, archival, balance
// recalculation and report export. Balances are computed by the backend; this package only
// orchestrates calls and re-fetches the authoritative values.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDealerNotFound is returned when the backend knows no such dealer.
	ErrDealerNotFound = errors.New("ledger: dealer not found")
	// ErrEntryNotFound is returned when an entry is not part of the loaded page.
	ErrEntryNotFound = errors.New("ledger: entry not found")
	// ErrPaymentNotFound is returned when a payment is not part of the loaded page.
	ErrPaymentNotFound = errors.New("ledger: payment not found")
	// ErrAlreadyChecked is returned when a checked entry is submitted again.
	ErrAlreadyChecked = errors.New("ledger: entry already checked")
	// ErrNothingToCheck is returned when a bulk selection holds no unchecked entry.
	ErrNothingToCheck = errors.New("ledger: no unchecked entries selected")
	// ErrRecalcRunning is returned when a recalculate-all run is already in flight.
	ErrRecalcRunning = errors.New("ledger: recalculation already running")
	// ErrRecalcCredential is returned when a queued run finds no operator token to act with.
	ErrRecalcCredential = errors.New("ledger: recalculation credential expired")
)

// ArchiveReason is the audit reason sent with every payment archival.
const ArchiveReason = "Archived by admin from dealer ledger"

// Tabs of the dealer page.
const (
	TabEntries  = "entries"
	TabPayments = "payments"
)

// Entry type values understood by the bulk check endpoint.
const (
	EntryTypeEntries  = "entries"
	EntryTypePayments = "payments"
)

const filenameDateLayout = "02-01-2006"

// ExportFilename names a downloaded ledger report. A range with a missing or invalid bound
// falls back to the dealer name alone.
func ExportFilename(dealerName string, start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return dealerName + ".pdf"
	}
	return fmt.Sprintf("%s (%s - %s).pdf", dealerName, start.Format(filenameDateLayout), end.Format(filenameDateLayout))
}

// ParseRangeDate reads a yyyy-mm-dd form value. Invalid input yields the zero time.
func ParseRangeDate(raw string) time.Time {
	t, err := time.Parse(upstreamDateLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
