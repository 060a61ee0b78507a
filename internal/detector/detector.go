// Package detector turns cross-venue price snapshots into sized arbitrage
// candidates. Detection is pure: no clocks, no I/O, no shared state.
package detector

import (
	"time"

	"github.com/google/uuid"

	"github.com/mfadel/solarbot/internal/config"
	"github.com/mfadel/solarbot/internal/domain"
)

// Sizing constants carried over from the production tuning of the strategy.
const (
	// basePortfolioFraction of the portfolio anchors position sizing.
	basePortfolioFraction = 0.10
	// maxConfidence caps how far expected profit scales a position up.
	maxConfidence = 3.0
)

// Detector evaluates snapshots against the configured profit threshold and
// cost model.
type Detector struct {
	minProfitPct   float64
	maxExposurePct float64
	minTradeSize   float64
	costs          CostModel
}

// New builds a Detector from the arbitrage and trading config sections.
func New(arb config.ArbitrageConfig, trading config.TradingConfig) *Detector {
	return &Detector{
		minProfitPct:   arb.MinProfitPercentage,
		maxExposurePct: trading.MaxExposurePercentage,
		minTradeSize:   trading.MinTradeSize,
		costs: CostModel{
			VenueFeePct:        arb.PerVenueFeePct,
			DefaultVenueFeePct: arb.DefaultVenueFeePct,
			BaseSlippagePct:    arb.BaseSlippagePct,
			HighLiquidity:      stringSet(arb.HighLiquidity),
			MediumLiquidity:    stringSet(arb.MediumLiquidity),
			MovementBufferPct:  arb.MovementBufferPct,
		},
	}
}

// Detect returns the best candidate in the snapshot, or false when no venue
// pair clears the profit threshold after estimated costs.
//
// The best pair is the one with the highest gross spread. Ties go to the
// pair whose staler leg is fresher, so detection prefers routes built on
// recent data.
func (d *Detector) Detect(snap domain.PriceSnapshot, portfolioValueUSD float64) (domain.ArbitrageCandidate, bool) {
	if snap.VenueCount() < 2 {
		return domain.ArbitrageCandidate{}, false
	}

	var (
		found        bool
		bestBuy      domain.PriceSample
		bestSell     domain.PriceSample
		bestGross    float64
		bestStaleLeg time.Time
	)

	for _, buy := range snap.Venues {
		for _, sell := range snap.Venues {
			if buy.Venue == sell.Venue || buy.Price <= 0 {
				continue
			}
			gross := (sell.Price - buy.Price) / buy.Price * 100
			staleLeg := olderOf(buy.Timestamp, sell.Timestamp)

			better := gross > bestGross ||
				(found && gross == bestGross && staleLeg.After(bestStaleLeg))
			if !better {
				continue
			}
			found = true
			bestBuy, bestSell = buy, sell
			bestGross = gross
			bestStaleLeg = staleLeg
		}
	}

	if !found || bestGross <= 0 {
		return domain.ArbitrageCandidate{}, false
	}

	costPct := d.costs.EstimatedCostPct(snap.Token, bestBuy.Venue, bestSell.Venue)
	net := bestGross - costPct
	// Boundary is exclusive: a spread that exactly covers the threshold
	// plus costs is not worth the execution risk.
	if net-d.minProfitPct <= 0 {
		return domain.ArbitrageCandidate{}, false
	}

	return domain.ArbitrageCandidate{
		ID:                   uuid.NewString(),
		Token:                snap.Token,
		BuyVenue:             bestBuy.Venue,
		SellVenue:            bestSell.Venue,
		BuyPrice:             bestBuy.Price,
		SellPrice:            bestSell.Price,
		GrossSpreadPct:       bestGross,
		NetSpreadPct:         net,
		NotionalSizeUSD:      d.positionSize(net, portfolioValueUSD),
		EstimatedFeesPct:     d.costs.VenueFee(bestBuy.Venue) + d.costs.VenueFee(bestSell.Venue),
		EstimatedSlippagePct: 2 * d.costs.SlippagePct(snap.Token),
		DetectedAt:           bestStaleLeg,
	}, true
}

// positionSize scales a base fraction of the portfolio by how far the net
// spread exceeds break-even, clamped by the exposure limit and floored at
// the minimum viable trade.
func (d *Detector) positionSize(netSpreadPct, portfolioValueUSD float64) float64 {
	confidence := netSpreadPct / 2
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	size := portfolioValueUSD * basePortfolioFraction * confidence

	maxExposure := portfolioValueUSD * d.maxExposurePct / 100
	if size > maxExposure {
		size = maxExposure
	}
	if size < d.minTradeSize {
		size = d.minTradeSize
	}
	return size
}

func olderOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
