package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mfadel/solarbot/internal/domain"
)

// ArchiveLedger is the narrow slice of the trade ledger the archiver needs:
// reading aged records and deleting them once the upload has succeeded.
type ArchiveLedger interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver implements domain.Archiver by serializing aged trade records to
// JSONL, uploading the file to blob storage, and then pruning the primary
// store. Records are deleted only after the upload succeeds, so a failed run
// leaves the ledger intact and the next run retries the same window.
type Archiver struct {
	writer domain.BlobWriter
	ledger ArchiveLedger
	audit  domain.AuditStore

	now func() time.Time
}

// NewArchiver creates an Archiver. audit may be nil, in which case archival
// runs are not recorded in the audit trail.
func NewArchiver(writer domain.BlobWriter, ledger ArchiveLedger, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer: writer,
		ledger: ledger,
		audit:  audit,
		now:    time.Now,
	}
}

var _ domain.Archiver = (*Archiver)(nil)

// ArchiveBefore uploads all trade records older than retentionDays to
// archive/trades/YYYY-MM-DD.jsonl (keyed by the cutoff day) and removes them
// from the ledger. It returns the number of records archived.
func (a *Archiver) ArchiveBefore(ctx context.Context, retentionDays int) (int, error) {
	cutoff := a.now().UTC().AddDate(0, 0, -retentionDays)

	recs, err := a.ledger.ListBefore(ctx, cutoff, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := fmt.Sprintf("archive/trades/%s.jsonl", cutoff.Format("2006-01-02"))
	if err := a.writer.Put(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	if _, err := a.ledger.DeleteBefore(ctx, cutoff); err != nil {
		return len(recs), fmt.Errorf("s3blob: archive prune: %w", err)
	}

	if a.audit != nil {
		entry := domain.AuditEntry{
			Timestamp: a.now().UTC(),
			Kind:      "archive",
			RefID:     key,
			Detail:    fmt.Sprintf("archived %d records before %s", len(recs), cutoff.Format(time.RFC3339)),
		}
		if err := a.audit.Log(ctx, entry); err != nil {
			return len(recs), fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}

	return len(recs), nil
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// object per line.
func marshalJSONL(recs []domain.TradeRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
