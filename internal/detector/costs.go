package detector

// CostModel estimates round-trip execution costs as a percentage of notional:
// taker fees on both legs, slippage scaled by token liquidity, and a fixed
// buffer for price movement between quote and fill.
type CostModel struct {
	// VenueFeePct maps venue name to taker fee percentage. Venues not
	// listed pay DefaultVenueFeePct.
	VenueFeePct        map[string]float64
	DefaultVenueFeePct float64

	// BaseSlippagePct is scaled by the token's liquidity tier.
	BaseSlippagePct float64
	HighLiquidity   map[string]bool
	MediumLiquidity map[string]bool

	// MovementBufferPct covers adverse movement between detection and fill.
	MovementBufferPct float64
}

// Slippage tier multipliers. Deep books move less per fill.
const (
	highLiquidityFactor   = 0.5
	mediumLiquidityFactor = 1.25
	lowLiquidityFactor    = 1.5
)

// VenueFee returns the taker fee percentage for a venue.
func (m CostModel) VenueFee(venue string) float64 {
	if fee, ok := m.VenueFeePct[venue]; ok {
		return fee
	}
	return m.DefaultVenueFeePct
}

// SlippagePct returns the expected one-leg slippage percentage for token.
func (m CostModel) SlippagePct(token string) float64 {
	switch {
	case m.HighLiquidity[token]:
		return m.BaseSlippagePct * highLiquidityFactor
	case m.MediumLiquidity[token]:
		return m.BaseSlippagePct * mediumLiquidityFactor
	default:
		return m.BaseSlippagePct * lowLiquidityFactor
	}
}

// EstimatedCostPct is the total round-trip cost for one candidate: both leg
// fees, slippage on both legs, and the movement buffer.
func (m CostModel) EstimatedCostPct(token, buyVenue, sellVenue string) float64 {
	return m.VenueFee(buyVenue) + m.VenueFee(sellVenue) + 2*m.SlippagePct(token) + m.MovementBufferPct
}

func stringSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
