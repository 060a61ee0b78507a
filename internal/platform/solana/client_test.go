package solana

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcHandler func(method string, params []json.RawMessage) (any, *rpcError)

func newRPCServer(t *testing.T, handler rpcHandler) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = map[string]any{"code": rpcErr.Code, "message": rpcErr.Message}
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(srv *httptest.Server, confirmTimeout time.Duration) *Client {
	return NewClient(Options{
		Endpoint:       srv.URL,
		Commitment:     "confirmed",
		ConfirmTimeout: confirmTimeout,
		ConfirmPoll:    5 * time.Millisecond,
	}, "Wallet1111", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTokenBalanceSOL(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "getBalance", method)
		return map[string]any{"value": 2_500_000_000}, nil
	})
	defer srv.Close()

	bal, err := newTestClient(srv, time.Second).TokenBalance(context.Background(), "SOL")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, bal, 1e-9)
}

func TestTokenBalanceSPLSumsAccounts(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "getTokenAccountsByOwner", method)
		account := func(amount string) map[string]any {
			return map[string]any{
				"account": map[string]any{
					"data": map[string]any{
						"parsed": map[string]any{
							"info": map[string]any{
								"tokenAmount": map[string]any{"amount": amount, "decimals": 6},
							},
						},
					},
				},
			}
		}
		return map[string]any{"value": []any{account("1500000"), account("250000")}}, nil
	})
	defer srv.Close()

	bal, err := newTestClient(srv, time.Second).TokenBalance(context.Background(), "USDC")
	require.NoError(t, err)
	assert.InDelta(t, 1.75, bal, 1e-9)
}

func TestTokenBalanceUnknownToken(t *testing.T) {
	srv := newRPCServer(t, func(string, []json.RawMessage) (any, *rpcError) { return nil, nil })
	defer srv.Close()

	_, err := newTestClient(srv, time.Second).TokenBalance(context.Background(), "DOGE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown token")
}

func TestConfirmReachesCommitment(t *testing.T) {
	polls := 0
	srv := newRPCServer(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "getSignatureStatuses", method)
		polls++
		status := "processed"
		if polls >= 3 {
			status = "confirmed"
		}
		return map[string]any{
			"value": []any{map[string]any{"confirmationStatus": status, "err": nil}},
		}, nil
	})
	defer srv.Close()

	err := newTestClient(srv, time.Second).Confirm(context.Background(), "sig111")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, polls, 3)
}

func TestConfirmOnChainError(t *testing.T) {
	srv := newRPCServer(t, func(string, []json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"value": []any{map[string]any{
				"confirmationStatus": "confirmed",
				"err":                map[string]any{"InstructionError": []any{0, "Custom"}},
			}},
		}, nil
	})
	defer srv.Close()

	err := newTestClient(srv, time.Second).Confirm(context.Background(), "sig111")
	require.ErrorIs(t, err, ErrTransactionFailed)
}

func TestConfirmTimesOut(t *testing.T) {
	srv := newRPCServer(t, func(string, []json.RawMessage) (any, *rpcError) {
		return map[string]any{"value": []any{nil}}, nil
	})
	defer srv.Close()

	err := newTestClient(srv, 50*time.Millisecond).Confirm(context.Background(), "sig111")
	require.ErrorIs(t, err, ErrConfirmTimeout)
}

func TestSendTransactionRPCError(t *testing.T) {
	srv := newRPCServer(t, func(string, []json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32002, Message: "Transaction simulation failed"}
	})
	defer srv.Close()

	_, err := newTestClient(srv, time.Second).SendTransaction(context.Background(), "AQID")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulation failed")
}
