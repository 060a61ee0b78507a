// Package memory implements domain store interfaces in process memory, for
// paper trading without a database and for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mfadel/solarbot/internal/domain"
)

// TradeLedger is an in-memory domain.TradeLedger.
type TradeLedger struct {
	mu   sync.RWMutex
	recs []domain.TradeRecord
}

// NewTradeLedger creates an empty in-memory ledger.
func NewTradeLedger() *TradeLedger {
	return &TradeLedger{}
}

var _ domain.TradeLedger = (*TradeLedger)(nil)

// Insert appends one record.
func (s *TradeLedger) Insert(_ context.Context, rec domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

// DailyVolume sums requested sizes of successful records on the UTC day
// containing day.
func (s *TradeLedger) DailyVolume(_ context.Context, day time.Time) (float64, error) {
	y, m, d := day.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var volume float64
	for _, r := range s.recs {
		ts := r.Timestamp.UTC()
		if r.Success && !ts.Before(start) && ts.Before(end) {
			volume += r.RequestedSizeUSD
		}
	}
	return volume, nil
}

// Recent returns up to n records, most recent first.
func (s *TradeLedger) Recent(_ context.Context, n int) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TradeRecord, len(s.recs))
	copy(out, s.recs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// DeleteBefore removes records older than cutoff and reports how many were
// removed. Called by the archiver after a successful upload.
func (s *TradeLedger) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.recs[:0]
	var removed int64
	for _, r := range s.recs {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.recs = kept
	return removed, nil
}

// ListBefore returns records older than cutoff, oldest first, capped at limit.
func (s *TradeLedger) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TradeRecord
	for _, r := range s.recs {
		if r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
