package domain

import (
	"context"
	"sync"
)

// PaperWallet is an in-memory wallet for simulated trading. It implements
// BalanceReader so the executor's balance checks behave exactly as they do
// against the chain.
type PaperWallet struct {
	mu     sync.Mutex
	usd    float64
	tokens map[string]float64
}

// NewPaperWallet creates a wallet seeded with startingUSD.
func NewPaperWallet(startingUSD float64) *PaperWallet {
	return &PaperWallet{
		usd:    startingUSD,
		tokens: make(map[string]float64),
	}
}

var _ BalanceReader = (*PaperWallet)(nil)

// BalanceUSD returns the spendable USD balance.
func (w *PaperWallet) BalanceUSD(_ context.Context, _ string) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.usd, nil
}

// TokenBalance returns the held amount of token.
func (w *PaperWallet) TokenBalance(_ context.Context, token string) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tokens[token], nil
}

// ApplyBuy debits USD and credits tokens.
func (w *PaperWallet) ApplyBuy(token string, usdIn, tokensOut float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.usd -= usdIn
	w.tokens[token] += tokensOut
}

// ApplySell debits tokens and credits USD.
func (w *PaperWallet) ApplySell(token string, tokensIn, usdOut float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tokens[token] -= tokensIn
	w.usd += usdOut
}
