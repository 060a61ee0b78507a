package domain

import (
	"context"
	"time"
)

// TradeLedger is the append-only record of every trade attempt.
type TradeLedger interface {
	// Insert appends a record. Records are never updated or deleted.
	Insert(ctx context.Context, rec TradeRecord) error

	// DailyVolume sums RequestedSizeUSD over successful records whose
	// Timestamp falls on the given UTC day.
	DailyVolume(ctx context.Context, day time.Time) (float64, error)

	// Recent returns up to n records, most recent first.
	Recent(ctx context.Context, n int) ([]TradeRecord, error)

	// ListBefore returns records older than cutoff, oldest first, capped at
	// limit. Used by the archiver.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]TradeRecord, error)
}

// AuditEntry is one row in the audit trail.
type AuditEntry struct {
	ID        int64
	Timestamp time.Time
	Kind      string
	RefID     string
	Detail    string
}

// AuditStore persists the audit trail of decisions: candidates, gate
// rejections, trade outcomes, archival runs.
type AuditStore interface {
	Log(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, kind string, limit int) ([]AuditEntry, error)
}
