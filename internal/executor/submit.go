package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/mfadel/solarbot/internal/crypto"
	"github.com/mfadel/solarbot/internal/domain"
	"github.com/mfadel/solarbot/internal/platform/jupiter"
	"github.com/mfadel/solarbot/internal/platform/solana"
)

const (
	usdcMint     = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdcDecimals = 6
)

// JupiterQuoter prices legs through the Jupiter aggregator with venue-pinned
// routing.
type JupiterQuoter struct {
	client *jupiter.Client
	// slippageBps is passed through to route construction.
	slippageBps int
}

// NewJupiterQuoter creates a QuoteProvider backed by the Jupiter quote API.
// maxSlippagePct also bounds the on-chain slippage tolerance of built routes.
func NewJupiterQuoter(client *jupiter.Client, maxSlippagePct float64) *JupiterQuoter {
	return &JupiterQuoter{
		client:      client,
		slippageBps: int(math.Round(maxSlippagePct * 100)),
	}
}

var _ QuoteProvider = (*JupiterQuoter)(nil)

// BuyQuote prices USD into tokens on one venue.
func (q *JupiterQuoter) BuyQuote(ctx context.Context, venue, token string, usdAmount float64) (*LegQuote, error) {
	info, ok := solana.Token(token)
	if !ok {
		return nil, fmt.Errorf("executor: unknown token %q", token)
	}
	quote, err := q.client.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   usdcMint,
		OutputMint:  info.Mint,
		Amount:      uint64(math.Round(usdAmount * math.Pow10(usdcDecimals))),
		SlippageBps: q.slippageBps,
		Venue:       venue,
	})
	if err != nil {
		return nil, err
	}
	return &LegQuote{
		Venue:       venue,
		Token:       token,
		Side:        "buy",
		InAmount:    usdAmount,
		OutAmount:   float64(quote.OutAmount) / math.Pow10(info.Decimals),
		SlippagePct: quote.PriceImpactPct * 100,
		Payload:     quote,
	}, nil
}

// SellQuote prices tokens back into USD on one venue.
func (q *JupiterQuoter) SellQuote(ctx context.Context, venue, token string, tokenAmount float64) (*LegQuote, error) {
	info, ok := solana.Token(token)
	if !ok {
		return nil, fmt.Errorf("executor: unknown token %q", token)
	}
	quote, err := q.client.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   info.Mint,
		OutputMint:  usdcMint,
		Amount:      uint64(math.Round(tokenAmount * math.Pow10(info.Decimals))),
		SlippageBps: q.slippageBps,
		Venue:       venue,
	})
	if err != nil {
		return nil, err
	}
	return &LegQuote{
		Venue:       venue,
		Token:       token,
		Side:        "sell",
		InAmount:    tokenAmount,
		OutAmount:   float64(quote.OutAmount) / math.Pow10(usdcDecimals),
		SlippagePct: quote.PriceImpactPct * 100,
		Payload:     quote,
	}, nil
}

// LiveSubmitter executes legs on-chain: it asks Jupiter to build the swap
// transaction, signs it with the wallet keypair, submits it, and waits for
// confirmation at the configured commitment.
type LiveSubmitter struct {
	swaps *jupiter.Client
	keys  *crypto.Keypair
	chain *solana.Client
}

// NewLiveSubmitter creates a Submitter that trades real funds.
func NewLiveSubmitter(swaps *jupiter.Client, keys *crypto.Keypair, chain *solana.Client) *LiveSubmitter {
	return &LiveSubmitter{swaps: swaps, keys: keys, chain: chain}
}

var _ Submitter = (*LiveSubmitter)(nil)

// Submit builds, signs, sends, and confirms the leg. It is never retried:
// a transaction that may have landed must not be sent twice.
func (s *LiveSubmitter) Submit(ctx context.Context, quote *LegQuote) (*Fill, error) {
	route, ok := quote.Payload.(*jupiter.Quote)
	if !ok {
		return nil, fmt.Errorf("executor: leg quote carries no route")
	}

	swap, err := s.swaps.Swap(ctx, jupiter.SwapRequest{
		Quote:         route,
		UserPublicKey: s.keys.PublicKey(),
		WrapUnwrapSOL: true,
	})
	if err != nil {
		return nil, fmt.Errorf("executor: build swap: %w", err)
	}

	signed, err := signTransaction(swap.SwapTransaction, s.keys)
	if err != nil {
		return nil, fmt.Errorf("executor: sign swap: %w", err)
	}

	sig, err := s.chain.SendTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("executor: send swap: %w", err)
	}
	if err := s.chain.Confirm(ctx, sig); err != nil {
		return nil, fmt.Errorf("executor: confirm swap: %w", err)
	}

	return &Fill{
		InAmount:  quote.InAmount,
		OutAmount: quote.OutAmount,
		Signature: sig,
	}, nil
}

// signTransaction signs a base64 fee-payer transaction built by the swap
// API. The wire layout is a compact signature array followed by the message;
// the wallet is the sole required signer, so its signature fills slot 0.
func signTransaction(txBase64 string, keys *crypto.Keypair) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}
	if len(raw) < 1+64 {
		return "", fmt.Errorf("transaction too short (%d bytes)", len(raw))
	}
	numSigs := int(raw[0])
	if numSigs != 1 {
		return "", fmt.Errorf("expected single-signer transaction, got %d signers", numSigs)
	}

	message := raw[1+64:]
	sig := keys.SignRaw(message)
	copy(raw[1:1+64], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// PaperSubmitter fills every leg exactly at its quote without touching the
// chain. Everything upstream of submission behaves identically to mainnet.
type PaperSubmitter struct {
	wallet *domain.PaperWallet
}

// NewPaperSubmitter creates a Submitter for paper trading. wallet may be
// nil when balance tracking is handled elsewhere.
func NewPaperSubmitter(wallet *domain.PaperWallet) *PaperSubmitter {
	return &PaperSubmitter{wallet: wallet}
}

var _ Submitter = (*PaperSubmitter)(nil)

// Submit fills from the quote and adjusts the paper wallet.
func (s *PaperSubmitter) Submit(_ context.Context, quote *LegQuote) (*Fill, error) {
	if s.wallet != nil {
		switch quote.Side {
		case "buy":
			s.wallet.ApplyBuy(quote.Token, quote.InAmount, quote.OutAmount)
		case "sell":
			s.wallet.ApplySell(quote.Token, quote.InAmount, quote.OutAmount)
		}
	}
	return &Fill{
		InAmount:  quote.InAmount,
		OutAmount: quote.OutAmount,
		Signature: "paper",
	}, nil
}
