// Package solana is a minimal JSON-RPC client for the Solana cluster:
// balances, blockhashes, transaction submission, and confirmation polling.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mfadel/solarbot/internal/domain"
)

// ErrConfirmTimeout is returned when a transaction does not reach the
// requested commitment within the confirmation window.
var ErrConfirmTimeout = errors.New("solana: confirmation timeout")

// ErrTransactionFailed is returned when the cluster reports an on-chain
// error for a submitted transaction.
var ErrTransactionFailed = errors.New("solana: transaction failed")

const lamportsPerSOL = 1_000_000_000

// Options configures a Client.
type Options struct {
	Endpoint       string
	Commitment     string
	RequestTimeout time.Duration
	ConfirmTimeout time.Duration
	ConfirmPoll    time.Duration
}

// Client is a Solana JSON-RPC client bound to one wallet.
type Client struct {
	endpoint       string
	commitment     string
	httpClient     *http.Client
	confirmTimeout time.Duration
	confirmPoll    time.Duration
	walletPubkey   string
	logger         *slog.Logger
	nextID         atomic.Int64
}

// NewClient creates a JSON-RPC client. walletPubkey is the base58 wallet
// address used for balance queries.
func NewClient(opts Options, walletPubkey string, logger *slog.Logger) *Client {
	reqTimeout := opts.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = 15 * time.Second
	}
	confirmTimeout := opts.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}
	confirmPoll := opts.ConfirmPoll
	if confirmPoll <= 0 {
		confirmPoll = 500 * time.Millisecond
	}
	commitment := opts.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}
	return &Client{
		endpoint:       opts.Endpoint,
		commitment:     commitment,
		httpClient:     &http.Client{Timeout: reqTimeout},
		confirmTimeout: confirmTimeout,
		confirmPoll:    confirmPoll,
		walletPubkey:   walletPubkey,
		logger:         logger.With(slog.String("component", "solana")),
	}
}

var _ domain.BalanceReader = (*Client)(nil)

// BalanceUSD returns the spendable balance for buying token. Stablecoin
// buys spend USDC, so the USDC token balance is the answer; SOL-funded
// wallets report the native balance instead.
func (c *Client) BalanceUSD(ctx context.Context, token string) (float64, error) {
	bal, err := c.TokenBalance(ctx, "USDC")
	if err != nil {
		return 0, err
	}
	return bal, nil
}

// TokenBalance returns the held amount of token in whole-token units. SOL
// reads the native lamport balance; SPL tokens sum parsed token accounts.
func (c *Client) TokenBalance(ctx context.Context, token string) (float64, error) {
	if token == "SOL" {
		lamports, err := c.getBalance(ctx)
		if err != nil {
			return 0, err
		}
		return float64(lamports) / lamportsPerSOL, nil
	}

	info, ok := Token(token)
	if !ok {
		return 0, fmt.Errorf("solana: unknown token %q", token)
	}

	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount   string `json:"amount"`
								Decimals int    `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	params := []any{
		c.walletPubkey,
		map[string]any{"mint": info.Mint},
		map[string]any{"encoding": "jsonParsed", "commitment": c.commitment},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return 0, fmt.Errorf("solana: token accounts for %s: %w", token, err)
	}

	var total float64
	for _, acc := range result.Value {
		amt := acc.Account.Data.Parsed.Info.TokenAmount
		raw, err := strconv.ParseFloat(amt.Amount, 64)
		if err != nil {
			continue
		}
		total += raw / math.Pow10(amt.Decimals)
	}
	return total, nil
}

// LatestBlockhash fetches a recent blockhash for transaction assembly.
func (c *Client) LatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []any{map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", fmt.Errorf("solana: latest blockhash: %w", err)
	}
	return result.Value.Blockhash, nil
}

// SendTransaction submits a base64-serialized signed transaction and returns
// its signature. Preflight stays enabled so obviously invalid transactions
// are rejected before landing.
func (c *Client) SendTransaction(ctx context.Context, signedTxBase64 string) (string, error) {
	var signature string
	params := []any{
		signedTxBase64,
		map[string]any{"encoding": "base64", "preflightCommitment": c.commitment},
	}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", fmt.Errorf("solana: send transaction: %w", err)
	}
	return signature, nil
}

// Confirm polls signature status until it reaches the client's commitment,
// the transaction errors on-chain, or the confirmation window elapses.
func (c *Client) Confirm(ctx context.Context, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.confirmPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrConfirmTimeout, signature)
			}
			return ctx.Err()
		case <-ticker.C:
		}

		var result struct {
			Value []*struct {
				ConfirmationStatus string          `json:"confirmationStatus"`
				Err                json.RawMessage `json:"err"`
			} `json:"value"`
		}
		params := []any{[]string{signature}}
		if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
			c.logger.Warn("signature status poll failed", slog.String("error", err.Error()))
			continue
		}
		if len(result.Value) == 0 || result.Value[0] == nil {
			continue
		}
		status := result.Value[0]
		if len(status.Err) > 0 && string(status.Err) != "null" {
			return fmt.Errorf("%w: %s: %s", ErrTransactionFailed, signature, string(status.Err))
		}
		if commitmentReached(status.ConfirmationStatus, c.commitment) {
			return nil
		}
	}
}

// commitmentReached reports whether got satisfies want in the
// processed < confirmed < finalized ordering.
func commitmentReached(got, want string) bool {
	rank := map[string]int{"processed": 0, "confirmed": 1, "finalized": 2}
	g, ok := rank[got]
	if !ok {
		return false
	}
	w, ok := rank[want]
	if !ok {
		w = 1
	}
	return g >= w
}

func (c *Client) getBalance(ctx context.Context) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	params := []any{c.walletPubkey, map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, fmt.Errorf("solana: get balance: %w", err)
	}
	return result.Value, nil
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("solana: RPC error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC 2.0 request and decodes result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
		"params":  params,
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, method)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
