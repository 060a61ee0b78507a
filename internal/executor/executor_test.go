package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfadel/solarbot/internal/domain"
	"github.com/mfadel/solarbot/internal/platform/jupiter"
	"github.com/mfadel/solarbot/internal/platform/solana"
)

// fakeProvider scripts quote outcomes per leg and counts calls.
type fakeProvider struct {
	buyQuote  *LegQuote
	buyErrs   []error
	sellQuote *LegQuote
	sellErrs  []error

	buyCalls  int
	sellCalls int
}

func (f *fakeProvider) BuyQuote(context.Context, string, string, float64) (*LegQuote, error) {
	f.buyCalls++
	if len(f.buyErrs) > 0 {
		err := f.buyErrs[0]
		f.buyErrs = f.buyErrs[1:]
		return nil, err
	}
	return f.buyQuote, nil
}

func (f *fakeProvider) SellQuote(context.Context, string, string, float64) (*LegQuote, error) {
	f.sellCalls++
	if len(f.sellErrs) > 0 {
		err := f.sellErrs[0]
		f.sellErrs = f.sellErrs[1:]
		return nil, err
	}
	return f.sellQuote, nil
}

// fakeSubmitter scripts one error per submitted leg, keyed by side.
type fakeSubmitter struct {
	errBySide map[string]error
	submitted []*LegQuote
}

func (f *fakeSubmitter) Submit(_ context.Context, quote *LegQuote) (*Fill, error) {
	f.submitted = append(f.submitted, quote)
	if err := f.errBySide[quote.Side]; err != nil {
		return nil, err
	}
	return &Fill{InAmount: quote.InAmount, OutAmount: quote.OutAmount, Signature: "sig"}, nil
}

func testCandidate() domain.ArbitrageCandidate {
	return domain.ArbitrageCandidate{
		ID:              "cand-1",
		Token:           "SOL",
		BuyVenue:        "jupiter",
		SellVenue:       "raydium",
		BuyPrice:        100.0,
		SellPrice:       101.5,
		NotionalSizeUSD: 20.0,
	}
}

func happyProvider() *fakeProvider {
	return &fakeProvider{
		buyQuote: &LegQuote{
			Venue: "jupiter", Token: "SOL", Side: "buy",
			InAmount: 20.0, OutAmount: 0.2, SlippagePct: 0.02,
		},
		sellQuote: &LegQuote{
			Venue: "raydium", Token: "SOL", Side: "sell",
			InAmount: 0.2, OutAmount: 20.3, SlippagePct: 0.02,
		},
	}
}

func newTestExecutor(p QuoteProvider, s Submitter) *Executor {
	wallet := domain.NewPaperWallet(1000)
	return New(p, s, wallet, 0.5, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExecuteHappyPath(t *testing.T) {
	provider := happyProvider()
	submitter := &fakeSubmitter{}
	exec := newTestExecutor(provider, submitter)

	rec := exec.Execute(context.Background(), testCandidate())

	require.True(t, rec.Success)
	assert.Equal(t, domain.FailureNone, rec.FailureKind)
	assert.InDelta(t, 0.3, rec.RealizedProfitUSD, 1e-9)
	assert.InDelta(t, 100.0, rec.ExecutedBuyPrice, 1e-9)
	assert.InDelta(t, 101.5, rec.ExecutedSellPrice, 1e-9)
	assert.Zero(t, rec.HeldTokenAmount)
	require.Len(t, submitter.submitted, 2)
	assert.Equal(t, "buy", submitter.submitted[0].Side)
	assert.Equal(t, "sell", submitter.submitted[1].Side)
}

func TestExecuteInsufficientBalance(t *testing.T) {
	provider := happyProvider()
	wallet := domain.NewPaperWallet(10) // below the 20 USD notional
	exec := New(provider, &fakeSubmitter{}, wallet, 0.5, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := exec.Execute(context.Background(), testCandidate())

	require.False(t, rec.Success)
	assert.Equal(t, domain.FailureInsufficientBalance, rec.FailureKind)
	assert.Zero(t, provider.buyCalls)
}

func TestBuyFailureSkipsSellEntirely(t *testing.T) {
	provider := happyProvider()
	provider.buyErrs = []error{errors.New("route not found")}
	submitter := &fakeSubmitter{}
	exec := newTestExecutor(provider, submitter)

	rec := exec.Execute(context.Background(), testCandidate())

	require.False(t, rec.Success)
	assert.Equal(t, domain.FailureQuote, rec.FailureKind)
	assert.Zero(t, rec.RealizedProfitUSD)
	assert.Zero(t, provider.sellCalls)
	assert.Empty(t, submitter.submitted)
}

func TestBuySubmitRejectionSkipsSell(t *testing.T) {
	provider := happyProvider()
	submitter := &fakeSubmitter{errBySide: map[string]error{
		"buy": errors.New("Transaction simulation failed"),
	}}
	exec := newTestExecutor(provider, submitter)

	rec := exec.Execute(context.Background(), testCandidate())

	require.False(t, rec.Success)
	assert.Equal(t, domain.FailureTransactionRejected, rec.FailureKind)
	assert.Zero(t, provider.sellCalls)
	assert.Zero(t, rec.HeldTokenAmount)
}

func TestSellQuoteFailureIsSellLegFailed(t *testing.T) {
	provider := happyProvider()
	// The sell quote times out on every attempt (retryable, then exhausted).
	timeout := &jupiter.APIError{Status: http.StatusGatewayTimeout, Body: "timeout"}
	provider.sellErrs = []error{timeout, timeout, timeout}
	submitter := &fakeSubmitter{}
	exec := newTestExecutor(provider, submitter)

	rec := exec.Execute(context.Background(), testCandidate())

	require.False(t, rec.Success)
	assert.Equal(t, domain.FailureSellLeg, rec.FailureKind)
	assert.InDelta(t, 0.2, rec.HeldTokenAmount, 1e-9)
	assert.True(t, rec.ExposureOpen())
	assert.Equal(t, 3, provider.sellCalls)
	// Only the buy leg was submitted.
	require.Len(t, submitter.submitted, 1)
	assert.Equal(t, "buy", submitter.submitted[0].Side)
}

func TestSellSubmitFailureIsSellLegFailed(t *testing.T) {
	provider := happyProvider()
	submitter := &fakeSubmitter{errBySide: map[string]error{
		"sell": solana.ErrConfirmTimeout,
	}}
	exec := newTestExecutor(provider, submitter)

	rec := exec.Execute(context.Background(), testCandidate())

	require.False(t, rec.Success)
	assert.Equal(t, domain.FailureSellLeg, rec.FailureKind)
	assert.InDelta(t, 0.2, rec.HeldTokenAmount, 1e-9)
}

func TestBuyConfirmationTimeout(t *testing.T) {
	provider := happyProvider()
	submitter := &fakeSubmitter{errBySide: map[string]error{
		"buy": solana.ErrConfirmTimeout,
	}}
	exec := newTestExecutor(provider, submitter)

	rec := exec.Execute(context.Background(), testCandidate())

	require.False(t, rec.Success)
	assert.Equal(t, domain.FailureConfirmationTimeout, rec.FailureKind)
}

func TestSlippageValidationBlocksSubmission(t *testing.T) {
	provider := happyProvider()
	provider.buyQuote.SlippagePct = 0.75 // above the 0.5% limit
	submitter := &fakeSubmitter{}
	exec := newTestExecutor(provider, submitter)

	rec := exec.Execute(context.Background(), testCandidate())

	require.False(t, rec.Success)
	assert.Equal(t, domain.FailureSlippageExceeded, rec.FailureKind)
	assert.Empty(t, submitter.submitted)
}

func TestQuoteRetriesTransientErrorsOnly(t *testing.T) {
	t.Run("retryable errors are retried up to the bound", func(t *testing.T) {
		provider := happyProvider()
		provider.buyErrs = []error{
			&jupiter.APIError{Status: http.StatusBadGateway},
			&jupiter.APIError{Status: http.StatusTooManyRequests},
		}
		exec := newTestExecutor(provider, &fakeSubmitter{})

		rec := exec.Execute(context.Background(), testCandidate())
		require.True(t, rec.Success)
		assert.Equal(t, 3, provider.buyCalls)
	})

	t.Run("non-retryable errors fail immediately", func(t *testing.T) {
		provider := happyProvider()
		provider.buyErrs = []error{&jupiter.APIError{Status: http.StatusBadRequest}}
		exec := newTestExecutor(provider, &fakeSubmitter{})

		rec := exec.Execute(context.Background(), testCandidate())
		require.False(t, rec.Success)
		assert.Equal(t, domain.FailureQuote, rec.FailureKind)
		assert.Equal(t, 1, provider.buyCalls)
	})
}

func TestSellSizedToTokensActuallyReceived(t *testing.T) {
	provider := happyProvider()
	var sellAmount float64
	provider.sellQuote = &LegQuote{Venue: "raydium", Token: "SOL", Side: "sell", InAmount: 0.19, OutAmount: 19.3}

	wrapped := &sizeRecordingProvider{inner: provider, sellAmount: &sellAmount}
	// Buy delivers fewer tokens than quoted.
	submitter := &shortFillSubmitter{}
	exec := newTestExecutor(wrapped, submitter)

	rec := exec.Execute(context.Background(), testCandidate())
	require.True(t, rec.Success)
	assert.InDelta(t, 0.19, sellAmount, 1e-9)
}

type sizeRecordingProvider struct {
	inner      QuoteProvider
	sellAmount *float64
}

func (p *sizeRecordingProvider) BuyQuote(ctx context.Context, venue, token string, usd float64) (*LegQuote, error) {
	return p.inner.BuyQuote(ctx, venue, token, usd)
}

func (p *sizeRecordingProvider) SellQuote(ctx context.Context, venue, token string, tokens float64) (*LegQuote, error) {
	*p.sellAmount = tokens
	return p.inner.SellQuote(ctx, venue, token, tokens)
}

// shortFillSubmitter delivers 5% fewer tokens on the buy leg than quoted.
type shortFillSubmitter struct{}

func (s *shortFillSubmitter) Submit(_ context.Context, quote *LegQuote) (*Fill, error) {
	out := quote.OutAmount
	if quote.Side == "buy" {
		out = quote.OutAmount * 0.95
	}
	return &Fill{InAmount: quote.InAmount, OutAmount: out, Signature: "sig"}, nil
}

func TestPaperSubmitterFillsFromQuote(t *testing.T) {
	wallet := domain.NewPaperWallet(100)
	sub := NewPaperSubmitter(wallet)

	fill, err := sub.Submit(context.Background(), &LegQuote{
		Side: "buy", Token: "SOL", InAmount: 20, OutAmount: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.2, fill.OutAmount)

	usd, err := wallet.BalanceUSD(context.Background(), "SOL")
	require.NoError(t, err)
	assert.InDelta(t, 80, usd, 1e-9)
	tokens, err := wallet.TokenBalance(context.Background(), "SOL")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, tokens, 1e-9)
}
