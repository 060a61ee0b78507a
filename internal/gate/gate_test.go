package gate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfadel/solarbot/internal/config"
	"github.com/mfadel/solarbot/internal/domain"
)

func testArbCfg() config.ArbitrageConfig {
	return config.ArbitrageConfig{
		CooldownSeconds: 300,
		CooldownFrom:    "completion",
	}
}

func testTradingCfg(mode string) config.TradingConfig {
	return config.TradingConfig{
		Mode:                  mode,
		MinTradeSize:          5,
		MaxTradeSize:          20,
		MaxDailyVolume:        50,
		MaxExposurePercentage: 10,
	}
}

func newTestGate(arb config.ArbitrageConfig, trading config.TradingConfig) *Gate {
	return New(arb, trading, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func candidate(notional float64) domain.ArbitrageCandidate {
	return domain.ArbitrageCandidate{
		ID:              "cand-1",
		Token:           "SOL",
		BuyVenue:        "jupiter",
		SellVenue:       "raydium",
		NotionalSizeUSD: notional,
	}
}

func requireLimit(t *testing.T, err error, reason domain.LimitReason) {
	t.Helper()
	require.Error(t, err)
	le, ok := domain.IsLimitError(err)
	require.True(t, ok)
	assert.Equal(t, reason, le.Reason)
}

func TestTradeSizeBoundsAreInclusive(t *testing.T) {
	g := newTestGate(testArbCfg(), testTradingCfg("paper"))
	ctx := context.Background()
	now := time.Now()

	// Exactly at the ceiling passes. Portfolio large enough that exposure
	// does not interfere.
	require.NoError(t, g.Approve(ctx, candidate(20.00), 1000, now))
	g.Complete(candidate(20.00), true, now)

	// A hair over is rejected.
	c := candidate(20.01)
	c.BuyVenue = "orca" // different route, no cooldown interference
	requireLimit(t, g.Approve(ctx, c, 1000, now), domain.LimitTradeSize)

	// Exactly at the floor passes, below it does not.
	c2 := candidate(5.00)
	c2.SellVenue = "phoenix"
	require.NoError(t, g.Approve(ctx, c2, 1000, now))
	c3 := candidate(4.99)
	c3.SellVenue = "meteora"
	requireLimit(t, g.Approve(ctx, c3, 1000, now), domain.LimitTradeSize)
}

func TestExposureLimit(t *testing.T) {
	g := newTestGate(testArbCfg(), testTradingCfg("paper"))
	ctx := context.Background()
	now := time.Now()

	// 10% of a 100 USD portfolio is 10; a 15 USD notional is too much.
	requireLimit(t, g.Approve(ctx, candidate(15), 100, now), domain.LimitExposure)

	// Exactly at the exposure cap passes.
	require.NoError(t, g.Approve(ctx, candidate(10), 100, now))
}

func TestCooldownRefreshedFromCompletion(t *testing.T) {
	g := newTestGate(testArbCfg(), testTradingCfg("paper"))
	ctx := context.Background()
	start := time.Now()

	c := candidate(10)
	require.NoError(t, g.Approve(ctx, c, 1000, start))
	// Execution takes 30s; cooldown anchors at completion.
	g.Complete(c, true, start.Add(30*time.Second))

	// 300s after approval but only 270s after completion: still cooling.
	requireLimit(t, g.Approve(ctx, c, 1000, start.Add(300*time.Second)), domain.LimitCooldown)

	// 300s after completion: eligible again.
	require.NoError(t, g.Approve(ctx, c, 1000, start.Add(330*time.Second)))
}

func TestCooldownFromApprovalPolicy(t *testing.T) {
	arb := testArbCfg()
	arb.CooldownFrom = "approval"
	g := newTestGate(arb, testTradingCfg("paper"))
	ctx := context.Background()
	start := time.Now()

	c := candidate(10)
	require.NoError(t, g.Approve(ctx, c, 1000, start))
	g.Complete(c, true, start.Add(30*time.Second))

	// 300s after approval is enough under the approval-anchored policy.
	require.NoError(t, g.Approve(ctx, c, 1000, start.Add(300*time.Second)))
}

func TestCooldownAppliesToFailedTrades(t *testing.T) {
	g := newTestGate(testArbCfg(), testTradingCfg("paper"))
	ctx := context.Background()
	start := time.Now()

	c := candidate(10)
	require.NoError(t, g.Approve(ctx, c, 1000, start))
	g.Complete(c, false, start.Add(time.Second))

	requireLimit(t, g.Approve(ctx, c, 1000, start.Add(2*time.Second)), domain.LimitCooldown)
}

func TestInFlightRouteRejectsSecondApproval(t *testing.T) {
	g := newTestGate(testArbCfg(), testTradingCfg("paper"))
	ctx := context.Background()
	now := time.Now()

	c := candidate(10)
	require.NoError(t, g.Approve(ctx, c, 1000, now))
	requireLimit(t, g.Approve(ctx, c, 1000, now), domain.LimitCooldown)

	// A different route is unaffected.
	other := candidate(10)
	other.SellVenue = "orca"
	require.NoError(t, g.Approve(ctx, other, 1000, now))
}

func TestConcurrentApprovalAdmitsExactlyOne(t *testing.T) {
	g := newTestGate(testArbCfg(), testTradingCfg("paper"))
	ctx := context.Background()
	now := time.Now()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Approve(ctx, candidate(10), 1000, now); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
}

func TestDailyVolumeMainnetOnly(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	// Paper mode ignores the daily volume limit entirely.
	paper := newTestGate(testArbCfg(), testTradingCfg("paper"))
	paper.RestoreVolume(45, now)
	require.NoError(t, paper.Approve(ctx, candidate(10), 1000, now))

	// Mainnet rejects once the limit would be exceeded.
	mainnet := newTestGate(testArbCfg(), testTradingCfg("mainnet"))
	mainnet.RestoreVolume(45, now)
	requireLimit(t, mainnet.Approve(ctx, candidate(10), 1000, now), domain.LimitDailyVolume)

	// Exactly filling the limit passes.
	require.NoError(t, mainnet.Approve(ctx, candidate(5), 1000, now))
}

func TestVolumeCountsSuccessOnly(t *testing.T) {
	g := newTestGate(testArbCfg(), testTradingCfg("mainnet"))
	now := time.Now()

	c := candidate(10)
	g.Complete(c, false, now)
	assert.Zero(t, g.DailyVolume(now))

	g.Complete(c, true, now)
	assert.Equal(t, 10.0, g.DailyVolume(now))
}

func TestVolumeCountsFailuresWhenConfigured(t *testing.T) {
	trading := testTradingCfg("mainnet")
	trading.CountFailedVolume = true
	g := newTestGate(testArbCfg(), trading)
	now := time.Now()

	g.Complete(candidate(10), false, now)
	assert.Equal(t, 10.0, g.DailyVolume(now))
}

func TestDailyVolumeResetsAtUTCMidnight(t *testing.T) {
	g := newTestGate(testArbCfg(), testTradingCfg("mainnet"))
	ctx := context.Background()

	lateNight := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
	g.RestoreVolume(48, lateNight)

	// 23:50 with 48/50 used: a 10 USD trade is over the limit.
	requireLimit(t, g.Approve(ctx, candidate(10), 1000, lateNight), domain.LimitDailyVolume)

	// Past midnight the counter resets and the same trade is admitted.
	nextDay := time.Date(2025, 6, 2, 0, 5, 0, 0, time.UTC)
	require.NoError(t, g.Approve(ctx, candidate(10), 1000, nextDay))
	assert.Zero(t, g.DailyVolume(nextDay))
}

type recordingBus struct {
	mu     sync.Mutex
	events []map[string]any
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := payload.(map[string]any); ok && channel == "gate_rejections" {
		b.events = append(b.events, m)
	}
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, func(), error) {
	return nil, func() {}, nil
}

func (b *recordingBus) StreamAppend(context.Context, string, map[string]any) error { return nil }

func (b *recordingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestRejectionsArePublished(t *testing.T) {
	bus := &recordingBus{}
	g := New(testArbCfg(), testTradingCfg("paper"), bus, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := g.Approve(context.Background(), candidate(200), 1000, time.Now())
	requireLimit(t, err, domain.LimitTradeSize)

	require.Len(t, bus.events, 1)
	assert.Equal(t, "trade_size", bus.events[0]["reason"])
	assert.Equal(t, "SOL|jupiter|raydium", bus.events[0]["route"])
}
