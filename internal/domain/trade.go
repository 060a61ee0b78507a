package domain

import "time"

// FailureKind classifies why a trade attempt failed. The set is closed:
// every failed TradeRecord carries exactly one of these, and a successful
// record carries none.
type FailureKind string

const (
	FailureNone                FailureKind = ""
	FailureInsufficientData    FailureKind = "insufficient_data"
	FailureLimitExceeded       FailureKind = "limit_exceeded"
	FailureSlippageExceeded    FailureKind = "slippage_exceeded"
	FailureQuote               FailureKind = "quote_failure"
	FailureTransactionRejected FailureKind = "transaction_rejected"
	FailureConfirmationTimeout FailureKind = "confirmation_timeout"
	FailureSellLeg             FailureKind = "sell_leg_failed"
	FailureInsufficientBalance FailureKind = "insufficient_balance"
)

// TradeRecord is the immutable outcome of one arbitrage attempt, successful
// or not. The executor always produces one; the ledger never mutates one.
type TradeRecord struct {
	ID                string
	Timestamp         time.Time
	Token             string
	BuyVenue          string
	SellVenue         string
	RequestedSizeUSD  float64
	ExecutedBuyPrice  float64
	ExecutedSellPrice float64
	RealizedProfitUSD float64
	Success           bool
	FailureKind       FailureKind
	FailureDetail     string
	ActualSlippagePct float64
	// HeldTokenAmount is nonzero only when the buy leg filled but the sell
	// leg failed: tokens acquired and still held.
	HeldTokenAmount float64
}

// ExposureOpen reports whether this record left tokens held with no
// completed sell leg.
func (r TradeRecord) ExposureOpen() bool {
	return r.FailureKind == FailureSellLeg && r.HeldTokenAmount > 0
}
