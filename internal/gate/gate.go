// Package gate enforces trading limits between detection and execution.
// Each (token, buy venue, sell venue) route moves Cooling → Eligible →
// Cooling; approval flips the route in-flight, which is the sole guard
// against concurrent executions of the same route.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mfadel/solarbot/internal/config"
	"github.com/mfadel/solarbot/internal/domain"
)

// Gate applies cooldown, sizing, exposure, and daily-volume limits.
type Gate struct {
	mu sync.Mutex

	cooldown             time.Duration
	cooldownFromApproval bool
	minTradeSize         float64
	maxTradeSize         float64
	maxExposurePct       float64
	maxDailyVolume       float64
	countFailedVolume    bool
	mainnet              bool

	lastTrade  map[string]time.Time
	inFlight   map[string]bool
	approvedAt map[string]time.Time

	volumeDay   time.Time
	dailyVolume float64

	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

// New builds a Gate from the arbitrage and trading config sections. bus and
// audit may be nil; rejection events are then only logged.
func New(arb config.ArbitrageConfig, trading config.TradingConfig,
	bus domain.SignalBus, audit domain.AuditStore, logger *slog.Logger) *Gate {
	return &Gate{
		cooldown:             time.Duration(arb.CooldownSeconds) * time.Second,
		cooldownFromApproval: strings.EqualFold(arb.CooldownFrom, "approval"),
		minTradeSize:         trading.MinTradeSize,
		maxTradeSize:         trading.MaxTradeSize,
		maxExposurePct:       trading.MaxExposurePercentage,
		maxDailyVolume:       trading.MaxDailyVolume,
		countFailedVolume:    trading.CountFailedVolume,
		mainnet:              strings.EqualFold(trading.Mode, "mainnet"),
		lastTrade:            make(map[string]time.Time),
		inFlight:             make(map[string]bool),
		approvedAt:           make(map[string]time.Time),
		bus:                  bus,
		audit:                audit,
		logger:               logger.With(slog.String("component", "gate")),
	}
}

// Approve admits a candidate for execution or returns a *domain.LimitError
// naming the violated limit. On success the route is atomically marked
// in-flight; the caller must always follow up with Complete.
func (g *Gate) Approve(ctx context.Context, cand domain.ArbitrageCandidate, portfolioValueUSD float64, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(now)
	key := cand.Key()

	if g.inFlight[key] {
		return g.rejectLocked(ctx, cand, domain.LimitCooldown,
			fmt.Sprintf("route %s already has an execution in flight", key))
	}

	if last, ok := g.lastTrade[key]; ok {
		elapsed := now.Sub(last)
		if elapsed < g.cooldown {
			return g.rejectLocked(ctx, cand, domain.LimitCooldown,
				fmt.Sprintf("route %s cooling down for another %s", key, (g.cooldown - elapsed).Round(time.Second)))
		}
	}

	// Trade-size bounds are inclusive: a notional exactly at the limit passes.
	if cand.NotionalSizeUSD < g.minTradeSize || cand.NotionalSizeUSD > g.maxTradeSize {
		return g.rejectLocked(ctx, cand, domain.LimitTradeSize,
			fmt.Sprintf("notional %.2f outside [%.2f, %.2f]", cand.NotionalSizeUSD, g.minTradeSize, g.maxTradeSize))
	}

	if maxExposure := portfolioValueUSD * g.maxExposurePct / 100; cand.NotionalSizeUSD > maxExposure {
		return g.rejectLocked(ctx, cand, domain.LimitExposure,
			fmt.Sprintf("notional %.2f exceeds exposure limit %.2f (%.1f%% of portfolio)", cand.NotionalSizeUSD, maxExposure, g.maxExposurePct))
	}

	// Daily volume only binds real money.
	if g.mainnet && g.dailyVolume+cand.NotionalSizeUSD > g.maxDailyVolume {
		return g.rejectLocked(ctx, cand, domain.LimitDailyVolume,
			fmt.Sprintf("daily volume %.2f + %.2f exceeds limit %.2f", g.dailyVolume, cand.NotionalSizeUSD, g.maxDailyVolume))
	}

	g.inFlight[key] = true
	g.approvedAt[key] = now
	return nil
}

// Complete closes out an execution: it clears the in-flight flag, anchors
// the route's cooldown, and accrues daily volume. Volume counts successful
// trades only unless configured otherwise.
func (g *Gate) Complete(cand domain.ArbitrageCandidate, success bool, completedAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := cand.Key()
	anchor := completedAt
	if g.cooldownFromApproval {
		if at, ok := g.approvedAt[key]; ok {
			anchor = at
		}
	}
	g.lastTrade[key] = anchor
	delete(g.inFlight, key)
	delete(g.approvedAt, key)

	if success || g.countFailedVolume {
		g.rolloverLocked(completedAt)
		g.dailyVolume += cand.NotionalSizeUSD
	}
}

// RestoreVolume seeds today's cumulative volume from the ledger on startup,
// so a restart does not reset the daily limit.
func (g *Gate) RestoreVolume(volumeUSD float64, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.volumeDay = utcDay(now)
	g.dailyVolume = volumeUSD
}

// DailyVolume reports the cumulative volume for the UTC day containing now.
func (g *Gate) DailyVolume(now time.Time) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(now)
	return g.dailyVolume
}

// rolloverLocked resets the volume counter when the UTC day changes.
// The caller must hold g.mu.
func (g *Gate) rolloverLocked(now time.Time) {
	day := utcDay(now)
	if !day.Equal(g.volumeDay) {
		if !g.volumeDay.IsZero() && g.dailyVolume > 0 {
			g.logger.Info("daily volume reset",
				slog.Time("day", day),
				slog.Float64("previous_volume", g.dailyVolume))
		}
		g.volumeDay = day
		g.dailyVolume = 0
	}
}

// rejectLocked emits a structured rejection event and returns the typed
// error. The caller must hold g.mu.
func (g *Gate) rejectLocked(ctx context.Context, cand domain.ArbitrageCandidate, reason domain.LimitReason, detail string) error {
	g.logger.Debug("candidate rejected",
		slog.String("route", cand.Key()),
		slog.String("reason", string(reason)),
		slog.String("detail", detail))

	if g.bus != nil {
		event := map[string]any{
			"candidate_id": cand.ID,
			"route":        cand.Key(),
			"reason":       string(reason),
			"detail":       detail,
		}
		if err := g.bus.Publish(ctx, "gate_rejections", event); err != nil {
			g.logger.Warn("rejection publish failed", slog.String("error", err.Error()))
		}
	}
	if g.audit != nil {
		entry := domain.AuditEntry{
			Timestamp: time.Now().UTC(),
			Kind:      "gate_rejection",
			RefID:     cand.ID,
			Detail:    fmt.Sprintf("%s: %s", reason, detail),
		}
		if err := g.audit.Log(ctx, entry); err != nil {
			g.logger.Warn("rejection audit failed", slog.String("error", err.Error()))
		}
	}

	return &domain.LimitError{Reason: reason, Detail: detail}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
