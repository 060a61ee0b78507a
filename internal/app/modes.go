package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mfadel/solarbot/internal/detector"
	"github.com/mfadel/solarbot/internal/domain"
	"github.com/mfadel/solarbot/internal/executor"
	"github.com/mfadel/solarbot/internal/feed"
	"github.com/mfadel/solarbot/internal/gate"
	"github.com/mfadel/solarbot/internal/notify"
	"github.com/mfadel/solarbot/internal/service"
)

const (
	// tradeLockName guards against two mainnet trading loops running at once.
	tradeLockName    = "trade_loop"
	tradeLockTTL     = 30 * time.Second
	tradeLockRefresh = 10 * time.Second

	healthInterval  = time.Minute
	archiveInterval = 24 * time.Hour
)

// runStats accumulates run-loop counters for the periodic health summary.
type runStats struct {
	mu       sync.Mutex
	attempts int
	wins     int
	profit   float64
}

func (s *runStats) record(rec domain.TradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if rec.Success {
		s.wins++
	}
	s.profit += rec.RealizedProfitUSD
}

func (s *runStats) snapshot() (attempts, wins int, profit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, s.wins, s.profit
}

// TradeMode runs the full pipeline: price feeds, detection, the limits gate,
// and execution (paper or mainnet per trading.mode).
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	mainnet := deps.Chain != nil

	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Bool("mainnet", mainnet),
		slog.Any("tokens", a.cfg.Arbitrage.Tokens),
		slog.Any("venues", a.cfg.Arbitrage.Venues),
	)

	g, ctx := errgroup.WithContext(ctx)

	limits := gate.New(a.cfg.Arbitrage, a.cfg.Trading, deps.Bus, deps.Audit, a.logger)

	// Resume today's consumed volume from the ledger so a restart cannot
	// double the daily budget.
	now := time.Now().UTC()
	if vol, err := deps.Ledger.DailyVolume(ctx, now); err != nil {
		a.logger.WarnContext(ctx, "restore daily volume failed",
			slog.String("error", err.Error()),
		)
	} else if vol > 0 {
		limits.RestoreVolume(vol, now)
		a.logger.InfoContext(ctx, "restored daily volume",
			slog.Float64("volume_usd", vol),
		)
	}

	// Mainnet holds a singleton lock so two processes never trade the same
	// wallet concurrently.
	if mainnet && deps.Locks != nil {
		token, err := deps.Locks.Acquire(ctx, tradeLockName, tradeLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return fmt.Errorf("trade mode: another trading instance is already running")
			}
			return fmt.Errorf("trade mode: acquire lock: %w", err)
		}
		g.Go(func() error {
			return a.holdTradeLock(ctx, deps, token)
		})
	}

	quoter := executor.NewJupiterQuoter(deps.Jupiter, a.cfg.Arbitrage.MaxSlippagePct)
	var submitter executor.Submitter
	if mainnet {
		submitter = executor.NewLiveSubmitter(deps.Jupiter, deps.Keys, deps.Chain)
	} else {
		submitter = executor.NewPaperSubmitter(deps.PaperWallet)
	}
	exec := executor.New(quoter, submitter, deps.Balances, a.cfg.Arbitrage.MaxSlippagePct, a.logger)

	det := detector.New(a.cfg.Arbitrage, a.cfg.Trading)
	agg := feed.NewAggregator(a.cfg.Arbitrage.MinSamples, a.cfg.Arbitrage.MaxPriceHistory)
	poller := feed.NewPoller(deps.Jupiter, agg, deps.PriceCache, deps.Bus,
		a.cfg.Arbitrage.Venues, a.cfg.Arbitrage.Tokens,
		a.cfg.Arbitrage.PollInterval.Duration, a.cfg.Arbitrage.PriceTTL.Duration, a.logger)
	ledgerSvc := service.NewLedgerService(deps.Ledger, deps.Bus, deps.Audit, deps.Notifier, a.logger)

	g.Go(func() error {
		return poller.Run(ctx)
	})
	if a.cfg.Arbitrage.WsEnabled {
		stream := feed.NewVenueStream(a.cfg.Arbitrage.WsHost, a.cfg.Arbitrage.Tokens, poller.Ingest, a.logger)
		g.Go(func() error {
			return stream.Run(ctx)
		})
	}

	stats := &runStats{}

	g.Go(func() error {
		return a.evaluateLoop(ctx, deps, agg, det, limits, exec, ledgerSvc, stats)
	})

	g.Go(func() error {
		return a.healthLoop(ctx, deps, limits, stats)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps.Archiver)
		})
	}

	return g.Wait()
}

// evaluateLoop scans every configured token each poll interval and drives
// detected candidates through the gate and executor.
func (a *App) evaluateLoop(
	ctx context.Context,
	deps *Dependencies,
	agg *feed.Aggregator,
	det *detector.Detector,
	limits *gate.Gate,
	exec *executor.Executor,
	ledgerSvc *service.LedgerService,
	stats *runStats,
) error {
	ticker := time.NewTicker(a.cfg.Arbitrage.PollInterval.Duration)
	defer ticker.Stop()

	// One ledger record per (route, reason) limit violation until the route
	// trades again, so a persistent spread does not flood the ledger.
	recordedRejects := make(map[string]domain.LimitReason)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		portfolio, err := deps.Balances.BalanceUSD(ctx, "USDC")
		if err != nil {
			a.logger.WarnContext(ctx, "portfolio balance read failed",
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, token := range a.cfg.Arbitrage.Tokens {
			snap := agg.Snapshot(token)
			if snap.VenueCount() < 2 {
				continue
			}

			cand, ok := det.Detect(snap, portfolio)
			if !ok {
				continue
			}

			title, message := notify.OpportunityAlert(cand)
			if err := deps.Notifier.Notify(ctx, notify.EventOpportunity, title, message); err != nil {
				a.logger.WarnContext(ctx, "opportunity alert failed",
					slog.String("error", err.Error()),
				)
			}

			now := time.Now().UTC()
			if err := limits.Approve(ctx, cand, portfolio, now); err != nil {
				le, isLimit := domain.IsLimitError(err)
				if !isLimit {
					a.logger.WarnContext(ctx, "gate approve failed",
						slog.String("candidate_id", cand.ID),
						slog.String("error", err.Error()),
					)
					continue
				}
				// Cooldown and in-flight rejections are routine and already
				// audited; structural violations get one ledger record each.
				if le.Reason != domain.LimitCooldown && recordedRejects[cand.Key()] != le.Reason {
					recordedRejects[cand.Key()] = le.Reason
					if recErr := ledgerSvc.Record(ctx, limitRecord(cand, le, now)); recErr != nil {
						a.logger.WarnContext(ctx, "record limit rejection failed",
							slog.String("candidate_id", cand.ID),
							slog.String("error", recErr.Error()),
						)
					}
				}
				continue
			}
			delete(recordedRejects, cand.Key())

			rec := exec.Execute(ctx, cand)
			limits.Complete(cand, rec.Success, time.Now().UTC())
			stats.record(rec)

			if err := ledgerSvc.Record(ctx, rec); err != nil {
				a.logger.ErrorContext(ctx, "record trade failed",
					slog.String("trade_id", rec.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// limitRecord converts a gate rejection into a failed trade record.
func limitRecord(cand domain.ArbitrageCandidate, le *domain.LimitError, now time.Time) domain.TradeRecord {
	return domain.TradeRecord{
		ID:               uuid.NewString(),
		Timestamp:        now,
		Token:            cand.Token,
		BuyVenue:         cand.BuyVenue,
		SellVenue:        cand.SellVenue,
		RequestedSizeUSD: cand.NotionalSizeUSD,
		FailureKind:      domain.FailureLimitExceeded,
		FailureDetail:    le.Error(),
	}
}

// holdTradeLock refreshes the mainnet singleton lock until shutdown, then
// releases it.
func (a *App) holdTradeLock(ctx context.Context, deps *Dependencies, token string) error {
	ticker := time.NewTicker(tradeLockRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := deps.Locks.Release(releaseCtx, tradeLockName, token); err != nil {
				a.logger.Warn("release trade lock failed",
					slog.String("error", err.Error()),
				)
			}
			return ctx.Err()
		case <-ticker.C:
			if err := deps.Locks.Refresh(ctx, tradeLockName, token, tradeLockTTL); err != nil {
				return fmt.Errorf("trade lock lost: %w", err)
			}
		}
	}
}

// healthLoop logs a periodic run summary.
func (a *App) healthLoop(ctx context.Context, deps *Dependencies, limits *gate.Gate, stats *runStats) error {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			attempts, wins, profit := stats.snapshot()
			now := time.Now().UTC()

			attrs := []any{
				slog.Int("attempts", attempts),
				slog.Int("successes", wins),
				slog.Float64("cumulative_profit_usd", profit),
				slog.Float64("daily_volume_usd", limits.DailyVolume(now)),
			}
			if deps.PaperWallet != nil {
				if bal, err := deps.PaperWallet.BalanceUSD(ctx, "USDC"); err == nil {
					attrs = append(attrs, slog.Float64("paper_balance_usd", bal))
				}
			}
			a.logger.InfoContext(ctx, "health summary", attrs...)
		}
	}
}

// archiveLoop moves aged trade records to blob storage once a day.
func (a *App) archiveLoop(ctx context.Context, archiver domain.Archiver) error {
	ticker := time.NewTicker(archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := archiver.ArchiveBefore(ctx, a.cfg.S3.RetentionDays)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive run failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if n > 0 {
				a.logger.InfoContext(ctx, "archived trade records",
					slog.Int("count", n),
				)
			}
		}
	}
}

// MonitorMode runs feeds and detection only: opportunities are audited,
// published, and alerted, but never executed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Any("tokens", a.cfg.Arbitrage.Tokens),
		slog.Any("venues", a.cfg.Arbitrage.Venues),
	)

	g, ctx := errgroup.WithContext(ctx)

	det := detector.New(a.cfg.Arbitrage, a.cfg.Trading)
	agg := feed.NewAggregator(a.cfg.Arbitrage.MinSamples, a.cfg.Arbitrage.MaxPriceHistory)
	poller := feed.NewPoller(deps.Jupiter, agg, deps.PriceCache, deps.Bus,
		a.cfg.Arbitrage.Venues, a.cfg.Arbitrage.Tokens,
		a.cfg.Arbitrage.PollInterval.Duration, a.cfg.Arbitrage.PriceTTL.Duration, a.logger)

	g.Go(func() error {
		return poller.Run(ctx)
	})
	if a.cfg.Arbitrage.WsEnabled {
		stream := feed.NewVenueStream(a.cfg.Arbitrage.WsHost, a.cfg.Arbitrage.Tokens, poller.Ingest, a.logger)
		g.Go(func() error {
			return stream.Run(ctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Arbitrage.PollInterval.Duration)
		defer ticker.Stop()

		// Re-report a route only after the cooldown window so a persistent
		// spread is not audited every tick.
		reportGap := time.Duration(a.cfg.Arbitrage.CooldownSeconds) * time.Second
		lastReport := make(map[string]time.Time)

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			portfolio, err := deps.Balances.BalanceUSD(ctx, "USDC")
			if err != nil {
				a.logger.WarnContext(ctx, "portfolio balance read failed",
					slog.String("error", err.Error()),
				)
				continue
			}

			for _, token := range a.cfg.Arbitrage.Tokens {
				snap := agg.Snapshot(token)
				if snap.VenueCount() < 2 {
					continue
				}
				cand, ok := det.Detect(snap, portfolio)
				if !ok {
					continue
				}

				now := time.Now().UTC()
				if last, seen := lastReport[cand.Key()]; seen && now.Sub(last) < reportGap {
					continue
				}
				lastReport[cand.Key()] = now

				a.logger.InfoContext(ctx, "opportunity detected",
					slog.String("candidate_id", cand.ID),
					slog.String("token", cand.Token),
					slog.String("buy_venue", cand.BuyVenue),
					slog.String("sell_venue", cand.SellVenue),
					slog.Float64("gross_spread_pct", cand.GrossSpreadPct),
					slog.Float64("net_spread_pct", cand.NetSpreadPct),
					slog.Float64("size_usd", cand.NotionalSizeUSD),
				)

				entry := domain.AuditEntry{
					Timestamp: now,
					Kind:      "opportunity",
					RefID:     cand.ID,
					Detail: fmt.Sprintf("%s %s->%s gross %.4f%% net %.4f%% size $%.2f",
						cand.Token, cand.BuyVenue, cand.SellVenue,
						cand.GrossSpreadPct, cand.NetSpreadPct, cand.NotionalSizeUSD),
				}
				if err := deps.Audit.Log(ctx, entry); err != nil {
					a.logger.WarnContext(ctx, "audit opportunity failed",
						slog.String("error", err.Error()),
					)
				}
				if deps.Bus != nil {
					event := map[string]any{
						"candidate_id":   cand.ID,
						"token":          cand.Token,
						"buy_venue":      cand.BuyVenue,
						"sell_venue":     cand.SellVenue,
						"net_spread_pct": cand.NetSpreadPct,
						"size_usd":       cand.NotionalSizeUSD,
					}
					if err := deps.Bus.Publish(ctx, "opportunities", event); err != nil {
						a.logger.WarnContext(ctx, "publish opportunity failed",
							slog.String("error", err.Error()),
						)
					}
				}

				title, message := notify.OpportunityAlert(cand)
				if err := deps.Notifier.Notify(ctx, notify.EventOpportunity, title, message); err != nil {
					a.logger.WarnContext(ctx, "opportunity alert failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})

	return g.Wait()
}
