package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfadel/solarbot/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

var _ domain.AuditStore = (*AuditStore)(nil)

// Log appends one audit entry.
func (s *AuditStore) Log(ctx context.Context, entry domain.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (timestamp, kind, ref_id, detail)
		VALUES ($1, $2, $3, $4)`,
		entry.Timestamp, entry.Kind, entry.RefID, entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert audit entry: %w", err)
	}
	return nil
}

// List returns up to limit entries of one kind, most recent first. An empty
// kind returns entries of every kind.
func (s *AuditStore) List(ctx context.Context, kind string, limit int) ([]domain.AuditEntry, error) {
	query := `SELECT id, timestamp, kind, ref_id, detail FROM audit_log`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &e.RefID, &e.Detail); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
