package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfadel/solarbot/internal/domain"
)

// TradeLedger implements domain.TradeLedger using PostgreSQL.
type TradeLedger struct {
	pool *pgxpool.Pool
}

// NewTradeLedger creates a TradeLedger backed by the given connection pool.
func NewTradeLedger(pool *pgxpool.Pool) *TradeLedger {
	return &TradeLedger{pool: pool}
}

var _ domain.TradeLedger = (*TradeLedger)(nil)

const tradeSelectCols = `id, timestamp, token, buy_venue, sell_venue,
	requested_size_usd, executed_buy_price, executed_sell_price,
	realized_profit_usd, success, failure_kind, failure_detail,
	actual_slippage_pct, held_token_amount`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	for rows.Next() {
		var r domain.TradeRecord
		var kind string
		if err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Token, &r.BuyVenue, &r.SellVenue,
			&r.RequestedSizeUSD, &r.ExecutedBuyPrice, &r.ExecutedSellPrice,
			&r.RealizedProfitUSD, &r.Success, &kind, &r.FailureDetail,
			&r.ActualSlippagePct, &r.HeldTokenAmount,
		); err != nil {
			return nil, err
		}
		r.FailureKind = domain.FailureKind(kind)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Insert appends one trade record.
func (s *TradeLedger) Insert(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trade_records (
			id, timestamp, token, buy_venue, sell_venue,
			requested_size_usd, executed_buy_price, executed_sell_price,
			realized_profit_usd, success, failure_kind, failure_detail,
			actual_slippage_pct, held_token_amount
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14
		)`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Timestamp, rec.Token, rec.BuyVenue, rec.SellVenue,
		rec.RequestedSizeUSD, rec.ExecutedBuyPrice, rec.ExecutedSellPrice,
		rec.RealizedProfitUSD, rec.Success, string(rec.FailureKind), rec.FailureDetail,
		rec.ActualSlippagePct, rec.HeldTokenAmount,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade record: %w", err)
	}
	return nil
}

// DailyVolume sums requested sizes of successful records on the UTC day
// containing day.
func (s *TradeLedger) DailyVolume(ctx context.Context, day time.Time) (float64, error) {
	y, m, d := day.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var volume float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(requested_size_usd), 0)
		FROM trade_records
		WHERE success AND timestamp >= $1 AND timestamp < $2`,
		start, end,
	).Scan(&volume)
	if err != nil {
		return 0, fmt.Errorf("postgres: daily volume: %w", err)
	}
	return volume, nil
}

// Recent returns up to n records, most recent first.
func (s *TradeLedger) Recent(ctx context.Context, n int) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trade_records ORDER BY timestamp DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent trade records: %w", err)
	}
	defer rows.Close()

	recs, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent trade records: %w", err)
	}
	return recs, nil
}

// ListBefore returns records older than cutoff, oldest first, capped at limit.
func (s *TradeLedger) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trade_records WHERE timestamp < $1 ORDER BY timestamp ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade records before: %w", err)
	}
	defer rows.Close()

	recs, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trade records before: %w", err)
	}
	return recs, nil
}

// DeleteBefore removes records older than cutoff after archival. Returns the
// number deleted.
func (s *TradeLedger) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trade_records WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trade records before: %w", err)
	}
	return tag.RowsAffected(), nil
}
