// Package service coordinates the stores, signal bus, audit trail, and
// operator alerts around the core trading flow.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfadel/solarbot/internal/domain"
	"github.com/mfadel/solarbot/internal/notify"
)

// Alerter is the slice of the notifier the ledger service uses.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
	NotifyAll(ctx context.Context, title, message string) error
}

// LedgerService persists trade outcomes and fans them out: signal bus event,
// durable stream entry, audit row, and operator alert. The ledger insert is
// the only step that can fail the call; everything downstream is best-effort
// and logged.
type LedgerService struct {
	ledger  domain.TradeLedger
	bus     domain.SignalBus
	audit   domain.AuditStore
	alerter Alerter
	logger  *slog.Logger
}

// NewLedgerService creates a LedgerService. bus, audit, and alerter may be
// nil; the corresponding fan-out step is skipped.
func NewLedgerService(
	ledger domain.TradeLedger,
	bus domain.SignalBus,
	audit domain.AuditStore,
	alerter Alerter,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		ledger:  ledger,
		bus:     bus,
		audit:   audit,
		alerter: alerter,
		logger:  logger.With(slog.String("component", "ledger_service")),
	}
}

// Record inserts the trade record and propagates it to the bus, stream,
// audit trail, and notifier. A record that left token exposure open is
// escalated past the alert filter.
func (s *LedgerService) Record(ctx context.Context, rec domain.TradeRecord) error {
	if err := s.ledger.Insert(ctx, rec); err != nil {
		return fmt.Errorf("ledger_service: insert: %w", err)
	}

	if s.bus != nil {
		event := map[string]any{
			"trade_id":     rec.ID,
			"token":        rec.Token,
			"buy_venue":    rec.BuyVenue,
			"sell_venue":   rec.SellVenue,
			"size_usd":     rec.RequestedSizeUSD,
			"profit_usd":   rec.RealizedProfitUSD,
			"success":      rec.Success,
			"failure_kind": string(rec.FailureKind),
			"timestamp":    rec.Timestamp.Format(time.RFC3339),
		}
		if err := s.bus.Publish(ctx, "trades", event); err != nil {
			s.logger.WarnContext(ctx, "publish trade event failed",
				slog.String("trade_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.bus.StreamAppend(ctx, "trades", event); err != nil {
			s.logger.WarnContext(ctx, "append trade stream failed",
				slog.String("trade_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.audit != nil {
		entry := domain.AuditEntry{
			Timestamp: rec.Timestamp,
			Kind:      "trade",
			RefID:     rec.ID,
			Detail:    auditDetail(rec),
		}
		if err := s.audit.Log(ctx, entry); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("trade_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.alert(ctx, rec)

	s.logger.InfoContext(ctx, "trade recorded",
		slog.String("trade_id", rec.ID),
		slog.String("token", rec.Token),
		slog.Bool("success", rec.Success),
		slog.String("failure_kind", string(rec.FailureKind)),
		slog.Float64("profit_usd", rec.RealizedProfitUSD),
	)
	return nil
}

// alert notifies the operator about the outcome. Open exposure always goes
// out; everything else respects the configured event filter.
func (s *LedgerService) alert(ctx context.Context, rec domain.TradeRecord) {
	if s.alerter == nil {
		return
	}

	event, title, message := notify.TradeAlert(rec)

	var err error
	if rec.ExposureOpen() {
		err = s.alerter.NotifyAll(ctx, title, message)
	} else {
		err = s.alerter.Notify(ctx, event, title, message)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "trade alert failed",
			slog.String("trade_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

// DailyVolume returns the successful trade volume for the UTC day containing
// day.
func (s *LedgerService) DailyVolume(ctx context.Context, day time.Time) (float64, error) {
	vol, err := s.ledger.DailyVolume(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("ledger_service: daily volume: %w", err)
	}
	return vol, nil
}

// Recent returns up to n records, most recent first.
func (s *LedgerService) Recent(ctx context.Context, n int) ([]domain.TradeRecord, error) {
	recs, err := s.ledger.Recent(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: recent: %w", err)
	}
	return recs, nil
}

func auditDetail(rec domain.TradeRecord) string {
	if rec.Success {
		return fmt.Sprintf("%s %s->%s size $%.2f profit $%.2f",
			rec.Token, rec.BuyVenue, rec.SellVenue, rec.RequestedSizeUSD, rec.RealizedProfitUSD)
	}
	return fmt.Sprintf("%s %s->%s size $%.2f failed (%s): %s",
		rec.Token, rec.BuyVenue, rec.SellVenue, rec.RequestedSizeUSD, rec.FailureKind, rec.FailureDetail)
}
