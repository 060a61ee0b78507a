package jupiter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfadel/solarbot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quoteJSON(in, out uint64) string {
	return `{
		"inputMint": "So11111111111111111111111111111111111111112",
		"outputMint": "` + usdcMint + `",
		"inAmount": "` + jsonUint(in) + `",
		"outAmount": "` + jsonUint(out) + `",
		"otherAmountThreshold": "` + jsonUint(out) + `",
		"priceImpactPct": "0.01",
		"slippageBps": 50,
		"routePlan": [{"swapInfo": {"label": "Raydium", "feeAmount": "100", "feeMint": "` + usdcMint + `"}, "percent": 100}]
	}`
}

func jsonUint(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestQuoteSetsDexFilter(t *testing.T) {
	var gotDexes string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDexes = r.URL.Query().Get("dexes")
		w.Write([]byte(quoteJSON(1_000_000_000, 150_000_000)))
	}))
	defer srv.Close()

	c := NewClient(Options{QuoteHost: srv.URL, SwapHost: srv.URL, RatePerSec: 1000}, discardLogger())

	quote, err := c.Quote(context.Background(), QuoteRequest{
		InputMint:  "So11111111111111111111111111111111111111112",
		OutputMint: usdcMint,
		Amount:     1_000_000_000,
		Venue:      "raydium",
	})
	require.NoError(t, err)
	assert.Equal(t, "Raydium", gotDexes)
	assert.Equal(t, uint64(150_000_000), quote.OutAmount)

	// Aggregated routing sends no dexes filter.
	_, err = c.Quote(context.Background(), QuoteRequest{
		InputMint:  "So11111111111111111111111111111111111111112",
		OutputMint: usdcMint,
		Amount:     1_000_000_000,
		Venue:      "jupiter",
	})
	require.NoError(t, err)
	assert.Empty(t, gotDexes)
}

func TestQuoteFallsBackToSecondaryHost(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(quoteJSON(1_000_000_000, 149_000_000)))
	}))
	defer up.Close()

	c := NewClient(Options{
		QuoteHost:     down.URL,
		FallbackHosts: []string{up.URL},
		SwapHost:      up.URL,
		RatePerSec:    1000,
	}, discardLogger())

	quote, err := c.Quote(context.Background(), QuoteRequest{
		InputMint:  "mintA",
		OutputMint: usdcMint,
		Amount:     1_000_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(149_000_000), quote.OutAmount)
}

func TestQuoteBadRequestDoesNotFallBack(t *testing.T) {
	var fallbackHits int
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid mint", http.StatusBadRequest)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHits++
		w.Write([]byte(quoteJSON(1, 1)))
	}))
	defer fallback.Close()

	c := NewClient(Options{
		QuoteHost:     primary.URL,
		FallbackHosts: []string{fallback.URL},
		SwapHost:      fallback.URL,
		RatePerSec:    1000,
	}, discardLogger())

	_, err := c.Quote(context.Background(), QuoteRequest{InputMint: "x", OutputMint: "y", Amount: 1})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Zero(t, fallbackHits)
}

func TestPriceConvertsOutAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000000000", r.URL.Query().Get("amount"))
		w.Write([]byte(quoteJSON(1_000_000_000, 150_750_000)))
	}))
	defer srv.Close()

	c := NewClient(Options{QuoteHost: srv.URL, SwapHost: srv.URL, RatePerSec: 1000}, discardLogger())

	price, err := c.Price(context.Background(), "raydium", "So11111111111111111111111111111111111111112", 9)
	require.NoError(t, err)
	assert.InDelta(t, 150.75, price, 1e-9)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&APIError{Status: http.StatusBadGateway}))
	assert.True(t, IsRetryable(&APIError{Status: http.StatusTooManyRequests}))
	assert.True(t, IsRetryable(domain.ErrRateLimited))
	assert.False(t, IsRetryable(&APIError{Status: http.StatusBadRequest}))
	assert.False(t, IsRetryable(assert.AnError))
}

func TestSwapReturnsTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "WalletPubkey111", payload["userPublicKey"])
		w.Write([]byte(`{"swapTransaction": "AQID", "lastValidBlockHeight": 12345}`))
	}))
	defer srv.Close()

	c := NewClient(Options{QuoteHost: srv.URL, SwapHost: srv.URL, RatePerSec: 1000}, discardLogger())

	quote := &Quote{InAmount: 1, OutAmount: 2}
	resp, err := c.Swap(context.Background(), SwapRequest{
		Quote:         quote,
		UserPublicKey: "WalletPubkey111",
		WrapUnwrapSOL: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "AQID", resp.SwapTransaction)
	assert.Equal(t, uint64(12345), resp.LastValidBlockHeight)
}
