package domain

import (
	"fmt"
	"time"
)

// ArbitrageCandidate is a detected cross-venue opportunity: buy on BuyVenue,
// sell on SellVenue. Spreads are percentages (1.5 means 1.5%).
type ArbitrageCandidate struct {
	ID                   string
	Token                string
	BuyVenue             string
	SellVenue            string
	BuyPrice             float64
	SellPrice            float64
	GrossSpreadPct       float64
	NetSpreadPct         float64
	NotionalSizeUSD      float64
	EstimatedFeesPct     float64
	EstimatedSlippagePct float64
	DetectedAt           time.Time
}

// Key identifies the (token, buy venue, sell venue) route. The gate keys its
// cooldown and in-flight state on this.
func (c ArbitrageCandidate) Key() string {
	return fmt.Sprintf("%s|%s|%s", c.Token, c.BuyVenue, c.SellVenue)
}

// ExpectedProfitUSD is the net spread applied to the notional.
func (c ArbitrageCandidate) ExpectedProfitUSD() float64 {
	return c.NotionalSizeUSD * c.NetSpreadPct / 100
}
