package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions recorded for dashboard operators.
const (
	AuditEntryChecked     = "ledger.entry_checked"
	AuditEntriesChecked   = "ledger.entries_bulk_checked"
	AuditPaymentChecked   = "ledger.payment_checked"
	AuditPaymentCreated   = "ledger.payment_created"
	AuditEntryEdited      = "ledger.entry_edited"
	AuditPaymentArchived  = "ledger.payment_archived"
	AuditDealerRecalc     = "ledger.dealer_recalculated"
	AuditAllRecalcQueued  = "ledger.all_recalculation_queued"
	AuditPlansSubmitted   = "production.plans_submitted"
	AuditWarrantyUpdated  = "warranty.updated"
	AuditWarrantyVerified = "warranty.otp_verified"
	AuditSignedIn         = "auth.signed_in"
	AuditSignedOut        = "auth.signed_out"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditRecorder persists operator actions.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes records into audit_logs. A logger without a pool records nothing.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Enabled reports whether records are persisted.
func (l *AuditLogger) Enabled() bool {
	return l != nil && l.pool != nil
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if !l.Enabled() {
		return nil
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// NopAudit discards every record.
type NopAudit struct{}

// Record implements AuditRecorder.
func (NopAudit) Record(context.Context, AuditLog) error { return nil }
