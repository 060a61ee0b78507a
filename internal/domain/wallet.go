package domain

import "context"

// BalanceReader reports spendable balances. Implemented by the Solana RPC
// client on mainnet and by the paper wallet in paper mode.
type BalanceReader interface {
	// BalanceUSD returns the spendable USD-denominated balance available
	// for buying token.
	BalanceUSD(ctx context.Context, token string) (float64, error)

	// TokenBalance returns the held amount of token, in token units.
	TokenBalance(ctx context.Context, token string) (float64, error)
}
