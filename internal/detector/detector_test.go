package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfadel/solarbot/internal/config"
	"github.com/mfadel/solarbot/internal/domain"
)

// flatCostCfg yields a cost model where the only cost is the movement
// buffer, so spread arithmetic in tests stays readable.
func flatCostCfg(minProfitPct, bufferPct float64) config.ArbitrageConfig {
	return config.ArbitrageConfig{
		MinProfitPercentage: minProfitPct,
		MovementBufferPct:   bufferPct,
	}
}

func defaultTrading() config.TradingConfig {
	return config.TradingConfig{
		MinTradeSize:          5,
		MaxTradeSize:          100,
		MaxExposurePercentage: 10,
	}
}

func snapshot(token string, samples ...domain.PriceSample) domain.PriceSnapshot {
	snap := domain.PriceSnapshot{Token: token, Venues: make(map[string]domain.PriceSample)}
	for _, s := range samples {
		s.Token = token
		snap.Venues[s.Venue] = s
	}
	return snap
}

func TestDetectAcceptsProfitableSpread(t *testing.T) {
	d := New(flatCostCfg(0.5, 0.1), defaultTrading())
	now := time.Now()

	snap := snapshot("SOL",
		domain.PriceSample{Venue: "jupiter", Price: 100.00, Timestamp: now},
		domain.PriceSample{Venue: "raydium", Price: 101.50, Timestamp: now},
	)

	cand, ok := d.Detect(snap, 1000)
	require.True(t, ok)
	assert.Equal(t, "jupiter", cand.BuyVenue)
	assert.Equal(t, "raydium", cand.SellVenue)
	assert.InDelta(t, 1.5, cand.GrossSpreadPct, 1e-9)
	assert.InDelta(t, 1.4, cand.NetSpreadPct, 1e-9)
	assert.NotEmpty(t, cand.ID)
	assert.Equal(t, "SOL", cand.Token)
}

func TestDetectRejectsWhenThresholdTooHigh(t *testing.T) {
	d := New(flatCostCfg(2.0, 0.1), defaultTrading())
	now := time.Now()

	snap := snapshot("SOL",
		domain.PriceSample{Venue: "jupiter", Price: 100.00, Timestamp: now},
		domain.PriceSample{Venue: "raydium", Price: 101.50, Timestamp: now},
	)

	_, ok := d.Detect(snap, 1000)
	assert.False(t, ok)
}

func TestDetectBoundaryIsExclusive(t *testing.T) {
	// net spread is exactly the threshold: 1.5 - 0.1 - 1.4 == 0.
	d := New(flatCostCfg(1.4, 0.1), defaultTrading())
	now := time.Now()

	snap := snapshot("SOL",
		domain.PriceSample{Venue: "jupiter", Price: 100.00, Timestamp: now},
		domain.PriceSample{Venue: "raydium", Price: 101.50, Timestamp: now},
	)

	_, ok := d.Detect(snap, 1000)
	assert.False(t, ok)
}

func TestDetectRequiresTwoVenues(t *testing.T) {
	d := New(flatCostCfg(0, 0), defaultTrading())

	snap := snapshot("SOL",
		domain.PriceSample{Venue: "jupiter", Price: 100, Timestamp: time.Now()},
	)
	_, ok := d.Detect(snap, 1000)
	assert.False(t, ok)

	_, ok = d.Detect(domain.PriceSnapshot{Token: "SOL"}, 1000)
	assert.False(t, ok)
}

func TestDetectRejectsNonPositiveGross(t *testing.T) {
	d := New(flatCostCfg(0, 0), defaultTrading())
	now := time.Now()

	snap := snapshot("SOL",
		domain.PriceSample{Venue: "jupiter", Price: 100, Timestamp: now},
		domain.PriceSample{Venue: "raydium", Price: 100, Timestamp: now},
	)
	_, ok := d.Detect(snap, 1000)
	assert.False(t, ok)
}

func TestDetectPicksWidestSpread(t *testing.T) {
	d := New(flatCostCfg(0.1, 0), defaultTrading())
	now := time.Now()

	snap := snapshot("SOL",
		domain.PriceSample{Venue: "jupiter", Price: 100, Timestamp: now},
		domain.PriceSample{Venue: "raydium", Price: 101, Timestamp: now},
		domain.PriceSample{Venue: "orca", Price: 103, Timestamp: now},
	)

	cand, ok := d.Detect(snap, 1000)
	require.True(t, ok)
	assert.Equal(t, "jupiter", cand.BuyVenue)
	assert.Equal(t, "orca", cand.SellVenue)
	assert.InDelta(t, 3.0, cand.GrossSpreadPct, 1e-9)
}

func TestDetectTieBreaksOnFresherStaleLeg(t *testing.T) {
	d := New(flatCostCfg(0.1, 0), defaultTrading())
	now := time.Now()

	// Both buy venues offer the same gross spread against orca; the pair
	// whose older leg is more recent wins.
	snap := snapshot("SOL",
		domain.PriceSample{Venue: "jupiter", Price: 100, Timestamp: now.Add(-time.Minute)},
		domain.PriceSample{Venue: "raydium", Price: 100, Timestamp: now.Add(-time.Second)},
		domain.PriceSample{Venue: "orca", Price: 102, Timestamp: now},
	)

	cand, ok := d.Detect(snap, 1000)
	require.True(t, ok)
	assert.Equal(t, "raydium", cand.BuyVenue)
	assert.Equal(t, "orca", cand.SellVenue)
	assert.Equal(t, now.Add(-time.Second), cand.DetectedAt)
}

func TestDetectAppliesVenueFeesAndSlippage(t *testing.T) {
	cfg := config.ArbitrageConfig{
		MinProfitPercentage: 0.5,
		MovementBufferPct:   0.03,
		BaseSlippagePct:     0.05,
		PerVenueFeePct:      map[string]float64{"jupiter": 0.10, "raydium": 0.22},
		DefaultVenueFeePct:  0.25,
		HighLiquidity:       []string{"SOL"},
	}
	d := New(cfg, defaultTrading())
	now := time.Now()

	snap := snapshot("SOL",
		domain.PriceSample{Venue: "jupiter", Price: 100.00, Timestamp: now},
		domain.PriceSample{Venue: "raydium", Price: 102.00, Timestamp: now},
	)

	cand, ok := d.Detect(snap, 1000)
	require.True(t, ok)
	// costs = 0.10 + 0.22 + 2*(0.05*0.5) + 0.03 = 0.40
	assert.InDelta(t, 2.0-0.40, cand.NetSpreadPct, 1e-9)
	assert.InDelta(t, 0.32, cand.EstimatedFeesPct, 1e-9)
	assert.InDelta(t, 0.05, cand.EstimatedSlippagePct, 1e-9)
}

func TestPositionSizing(t *testing.T) {
	trading := defaultTrading()
	d := New(flatCostCfg(0.5, 0.1), trading)
	now := time.Now()

	// Wide spread: confidence caps at 3x, then the exposure limit clamps
	// 10% * 3 * 1000 = 300 down to 10% of the portfolio.
	wide := snapshot("SOL",
		domain.PriceSample{Venue: "jupiter", Price: 100, Timestamp: now},
		domain.PriceSample{Venue: "raydium", Price: 110, Timestamp: now},
	)
	cand, ok := d.Detect(wide, 1000)
	require.True(t, ok)
	assert.InDelta(t, 100, cand.NotionalSizeUSD, 1e-9)

	// Tiny portfolio: size floors at the minimum trade.
	cand, ok = d.Detect(wide, 50)
	require.True(t, ok)
	assert.InDelta(t, trading.MinTradeSize, cand.NotionalSizeUSD, 1e-9)
}

func TestCostModelTiers(t *testing.T) {
	m := CostModel{
		BaseSlippagePct: 0.05,
		HighLiquidity:   map[string]bool{"SOL": true},
		MediumLiquidity: map[string]bool{"RAY": true},
	}
	assert.InDelta(t, 0.025, m.SlippagePct("SOL"), 1e-9)
	assert.InDelta(t, 0.0625, m.SlippagePct("RAY"), 1e-9)
	assert.InDelta(t, 0.075, m.SlippagePct("BONK"), 1e-9)
}
