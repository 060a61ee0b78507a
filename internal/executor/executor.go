// Package executor turns approved candidates into executed (or failed)
// trades. Execute never returns an error past its boundary: every outcome,
// including partial failure with held tokens, becomes a TradeRecord.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"github.com/mfadel/solarbot/internal/domain"
	"github.com/mfadel/solarbot/internal/platform/jupiter"
	"github.com/mfadel/solarbot/internal/platform/solana"
)

// quoteAttempts bounds quote retries. Submission and confirmation are never
// retried: a transaction that may have landed must not be sent twice.
const quoteAttempts = 3

// LegQuote is a priced route for one swap leg. For a buy leg InAmount is
// USD and OutAmount is tokens; for a sell leg the reverse.
type LegQuote struct {
	Venue       string
	Token       string
	Side        string // "buy" or "sell"
	InAmount    float64
	OutAmount   float64
	SlippagePct float64
	// Payload carries the provider's route for transaction assembly.
	Payload any
}

// Fill is the realized outcome of a submitted leg.
type Fill struct {
	InAmount  float64
	OutAmount float64
	Signature string
}

// QuoteProvider prices swap legs pinned to a venue.
type QuoteProvider interface {
	BuyQuote(ctx context.Context, venue, token string, usdAmount float64) (*LegQuote, error)
	SellQuote(ctx context.Context, venue, token string, tokenAmount float64) (*LegQuote, error)
}

// Submitter executes a quoted leg to completion. The live implementation
// signs, sends, and confirms on-chain; the paper implementation fills from
// the quote. This is the only seam between paper and mainnet trading.
type Submitter interface {
	Submit(ctx context.Context, quote *LegQuote) (*Fill, error)
}

// Executor runs the two-leg arbitrage sequence.
type Executor struct {
	quotes         QuoteProvider
	submitter      Submitter
	balances       domain.BalanceReader
	maxSlippagePct float64
	logger         *slog.Logger
}

// New creates an Executor.
func New(quotes QuoteProvider, submitter Submitter, balances domain.BalanceReader,
	maxSlippagePct float64, logger *slog.Logger) *Executor {
	return &Executor{
		quotes:         quotes,
		submitter:      submitter,
		balances:       balances,
		maxSlippagePct: maxSlippagePct,
		logger:         logger.With(slog.String("component", "executor")),
	}
}

// Execute runs balance check, buy leg, then sell leg sized to the tokens
// actually received. A buy-leg failure produces a failed record with no sell
// attempt; a sell-leg failure after a successful buy is reported as
// SellLegFailed with the held token amount.
func (e *Executor) Execute(ctx context.Context, cand domain.ArbitrageCandidate) domain.TradeRecord {
	rec := domain.TradeRecord{
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		Token:            cand.Token,
		BuyVenue:         cand.BuyVenue,
		SellVenue:        cand.SellVenue,
		RequestedSizeUSD: cand.NotionalSizeUSD,
	}

	// Balance check.
	balance, err := e.balances.BalanceUSD(ctx, cand.Token)
	if err != nil {
		return e.fail(rec, domain.FailureQuote, fmt.Sprintf("balance check: %v", err))
	}
	if balance < cand.NotionalSizeUSD {
		return e.fail(rec, domain.FailureInsufficientBalance,
			fmt.Sprintf("balance %.2f below notional %.2f", balance, cand.NotionalSizeUSD))
	}

	// Buy leg.
	buyQuote, err := e.quoteWithRetry(ctx, func(ctx context.Context) (*LegQuote, error) {
		return e.quotes.BuyQuote(ctx, cand.BuyVenue, cand.Token, cand.NotionalSizeUSD)
	})
	if err != nil {
		return e.fail(rec, domain.FailureQuote, fmt.Sprintf("buy quote on %s: %v", cand.BuyVenue, err))
	}
	if buyQuote.SlippagePct > e.maxSlippagePct {
		return e.fail(rec, domain.FailureSlippageExceeded,
			fmt.Sprintf("buy quote slippage %.3f%% exceeds limit %.3f%%", buyQuote.SlippagePct, e.maxSlippagePct))
	}

	buyFill, err := e.submitter.Submit(ctx, buyQuote)
	if err != nil {
		return e.fail(rec, classifySubmit(err), fmt.Sprintf("buy leg on %s: %v", cand.BuyVenue, err))
	}
	tokensHeld := buyFill.OutAmount
	if tokensHeld > 0 {
		rec.ExecutedBuyPrice = buyFill.InAmount / tokensHeld
	}

	e.logger.Info("buy leg filled",
		slog.String("token", cand.Token),
		slog.String("venue", cand.BuyVenue),
		slog.Float64("usd_in", buyFill.InAmount),
		slog.Float64("tokens_out", tokensHeld))

	// Sell leg, sized to what the buy actually delivered.
	sellQuote, err := e.quoteWithRetry(ctx, func(ctx context.Context) (*LegQuote, error) {
		return e.quotes.SellQuote(ctx, cand.SellVenue, cand.Token, tokensHeld)
	})
	if err != nil {
		return e.sellLegFail(rec, tokensHeld, fmt.Sprintf("sell quote on %s: %v", cand.SellVenue, err))
	}
	if sellQuote.SlippagePct > e.maxSlippagePct {
		return e.sellLegFail(rec, tokensHeld,
			fmt.Sprintf("sell quote slippage %.3f%% exceeds limit %.3f%%", sellQuote.SlippagePct, e.maxSlippagePct))
	}

	sellFill, err := e.submitter.Submit(ctx, sellQuote)
	if err != nil {
		return e.sellLegFail(rec, tokensHeld, fmt.Sprintf("sell leg on %s: %v", cand.SellVenue, err))
	}
	if tokensHeld > 0 {
		rec.ExecutedSellPrice = sellFill.OutAmount / tokensHeld
	}

	rec.Success = true
	rec.RealizedProfitUSD = sellFill.OutAmount - buyFill.InAmount
	rec.ActualSlippagePct = realizedSlippagePct(cand, rec)

	e.logger.Info("trade completed",
		slog.String("token", cand.Token),
		slog.String("route", cand.Key()),
		slog.Float64("profit_usd", rec.RealizedProfitUSD))
	return rec
}

// quoteWithRetry retries transient quote failures with bounded backoff.
func (e *Executor) quoteWithRetry(ctx context.Context, fetch func(context.Context) (*LegQuote, error)) (*LegQuote, error) {
	boff := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
	}

	var lastErr error
	for attempt := 1; attempt <= quoteAttempts; attempt++ {
		quote, err := fetch(ctx)
		if err == nil {
			return quote, nil
		}
		lastErr = err
		if !jupiter.IsRetryable(err) || attempt == quoteAttempts {
			break
		}
		wait := boff.Duration()
		e.logger.Warn("quote attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

func (e *Executor) fail(rec domain.TradeRecord, kind domain.FailureKind, detail string) domain.TradeRecord {
	rec.Success = false
	rec.FailureKind = kind
	rec.FailureDetail = detail
	e.logger.Warn("trade failed",
		slog.String("token", rec.Token),
		slog.String("kind", string(kind)),
		slog.String("detail", detail))
	return rec
}

// sellLegFail marks a failure after the buy leg filled: tokens are held and
// exposure is open until operators intervene.
func (e *Executor) sellLegFail(rec domain.TradeRecord, tokensHeld float64, detail string) domain.TradeRecord {
	rec.HeldTokenAmount = tokensHeld
	return e.fail(rec, domain.FailureSellLeg, detail)
}

// classifySubmit maps submission errors onto the failure taxonomy.
func classifySubmit(err error) domain.FailureKind {
	switch {
	case errors.Is(err, solana.ErrConfirmTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.FailureConfirmationTimeout
	default:
		return domain.FailureTransactionRejected
	}
}

// realizedSlippagePct sums the adverse price movement on both legs relative
// to the detection-time prices.
func realizedSlippagePct(cand domain.ArbitrageCandidate, rec domain.TradeRecord) float64 {
	var slip float64
	if cand.BuyPrice > 0 && rec.ExecutedBuyPrice > 0 {
		slip += (rec.ExecutedBuyPrice - cand.BuyPrice) / cand.BuyPrice * 100
	}
	if cand.SellPrice > 0 && rec.ExecutedSellPrice > 0 {
		slip += (cand.SellPrice - rec.ExecutedSellPrice) / cand.SellPrice * 100
	}
	return slip
}
