package jupiter

import "fmt"

// QuoteRequest asks for a swap route from InputMint to OutputMint.
// Amount is in the input mint's base units. Venue, when non-empty,
// restricts routing to a single DEX.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
	Venue       string
}

// Quote is the aggregator's answer: the route and expected amounts.
type Quote struct {
	InputMint            string      `json:"inputMint"`
	OutputMint           string      `json:"outputMint"`
	InAmount             uint64      `json:"inAmount,string"`
	OutAmount            uint64      `json:"outAmount,string"`
	OtherAmountThreshold uint64      `json:"otherAmountThreshold,string"`
	PriceImpactPct       float64     `json:"priceImpactPct,string"`
	SlippageBps          int         `json:"slippageBps"`
	RoutePlan            []RouteStep `json:"routePlan"`
}

// RouteStep is one hop of the route.
type RouteStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// SwapInfo identifies the AMM serving one hop.
type SwapInfo struct {
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	FeeAmount  uint64 `json:"feeAmount,string"`
	FeeMint    string `json:"feeMint"`
}

// SwapRequest asks the swap endpoint to build a transaction for a quote.
type SwapRequest struct {
	Quote         *Quote
	UserPublicKey string
	// WrapUnwrapSOL controls automatic wSOL handling.
	WrapUnwrapSOL bool
}

// SwapResponse carries the base64-serialized transaction ready for signing.
type SwapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// APIError is a non-2xx response from the quote or swap API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jupiter: HTTP %d: %s", e.Status, e.Body)
}
