// Package jupiter is the REST client for the Jupiter aggregator quote and
// swap APIs. Quotes can be pinned to a single DEX, which is how per-venue
// prices are observed.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfadel/solarbot/internal/domain"
)

// usdcMint is the quote currency for all USD-denominated prices.
const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

const usdcDecimals = 6

// dexLabels maps venue names to the routing labels the quote API accepts in
// its dexes filter. "jupiter" means unrestricted aggregation.
var dexLabels = map[string]string{
	"raydium":  "Raydium",
	"orca":     "Orca",
	"openbook": "Openbook",
	"phoenix":  "Phoenix",
	"meteora":  "Meteora",
}

// Options configures a Client.
type Options struct {
	QuoteHost     string
	FallbackHosts []string
	SwapHost      string
	Timeout       time.Duration
	// RatePerSec bounds outbound requests across all hosts.
	RatePerSec float64
}

// Client talks to the Jupiter quote and swap APIs.
type Client struct {
	quoteHosts []string
	swapHost   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Jupiter API client. FallbackHosts are tried in order
// when the primary quote host fails.
func NewClient(opts Options, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSec := opts.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	hosts := append([]string{opts.QuoteHost}, opts.FallbackHosts...)
	return &Client{
		quoteHosts: hosts,
		swapHost:   opts.SwapHost,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), int(math.Ceil(perSec))),
		logger:     logger.With(slog.String("component", "jupiter")),
	}
}

// Quote fetches a swap route. Hosts are tried in order; the first decodable
// response wins. A non-retryable API error stops the fallback chain.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Amount == 0 {
		return nil, errors.New("jupiter: quote amount must be positive")
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	if label, ok := dexLabels[req.Venue]; ok {
		q.Set("dexes", label)
	}

	var lastErr error
	for _, host := range c.quoteHosts {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("jupiter: rate limiter: %w", err)
		}

		body, err := c.get(ctx, host+"/quote?"+q.Encode())
		if err != nil {
			if !IsRetryable(err) {
				return nil, fmt.Errorf("jupiter: quote: %w", err)
			}
			c.logger.Warn("quote host failed, trying next",
				slog.String("host", host), slog.String("error", err.Error()))
			lastErr = err
			continue
		}

		var quote Quote
		if err := json.Unmarshal(body, &quote); err != nil {
			lastErr = fmt.Errorf("decode quote: %w", err)
			continue
		}
		return &quote, nil
	}

	return nil, fmt.Errorf("jupiter: quote failed on all hosts: %w", lastErr)
}

// Price returns the USD price of one whole token on a venue, observed via a
// 1-token quote into USDC.
func (c *Client) Price(ctx context.Context, venue, mint string, decimals int) (float64, error) {
	oneToken := uint64(math.Pow10(decimals))
	quote, err := c.Quote(ctx, QuoteRequest{
		InputMint:  mint,
		OutputMint: usdcMint,
		Amount:     oneToken,
		Venue:      venue,
	})
	if err != nil {
		return 0, err
	}
	if quote.OutAmount == 0 {
		return 0, fmt.Errorf("jupiter: empty quote for mint %s on %s", mint, venue)
	}
	return float64(quote.OutAmount) / math.Pow10(usdcDecimals), nil
}

// Swap builds a serialized transaction for a previously fetched quote. The
// returned transaction is base64 and must be signed before submission.
func (c *Client) Swap(ctx context.Context, req SwapRequest) (*SwapResponse, error) {
	if req.Quote == nil {
		return nil, errors.New("jupiter: swap requires a quote")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("jupiter: rate limiter: %w", err)
	}

	payload := map[string]any{
		"quoteResponse":    req.Quote,
		"userPublicKey":    req.UserPublicKey,
		"wrapAndUnwrapSol": req.WrapUnwrapSOL,
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jupiter: marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.swapHost+"/swap", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("jupiter: create swap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("jupiter: swap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jupiter: read swap response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("jupiter: swap: %w", err)
	}

	var swap SwapResponse
	if err := json.Unmarshal(body, &swap); err != nil {
		return nil, fmt.Errorf("jupiter: decode swap response: %w", err)
	}
	if swap.SwapTransaction == "" {
		return nil, errors.New("jupiter: swap response missing transaction")
	}
	return &swap, nil
}

// IsRetryable reports whether err is transient: rate limiting, server-side
// errors, and network failures. Malformed requests and rejections are not.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to typed errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	if statusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, string(body))
	}
	return &APIError{Status: statusCode, Body: string(body)}
}
