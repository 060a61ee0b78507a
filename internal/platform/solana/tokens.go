package solana

// TokenInfo describes a known SPL token: its mint address and decimals.
type TokenInfo struct {
	Mint     string
	Decimals int
}

// knownTokens maps ticker symbols to mainnet mints.
var knownTokens = map[string]TokenInfo{
	"SOL":  {Mint: "So11111111111111111111111111111111111111112", Decimals: 9},
	"USDC": {Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	"USDT": {Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
	"RAY":  {Mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Decimals: 6},
	"ORCA": {Mint: "orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE", Decimals: 6},
	"SRM":  {Mint: "SRMuApVNdxXokk5GT7XD5cUUgXMBCoAz2LHeuAoKWRt", Decimals: 6},
	"MNGO": {Mint: "MangoCzJ36AjZyKwVj3VnYU4GTonjfVEnJmvvWaxLac", Decimals: 6},
}

// Token resolves a ticker symbol to its mint and decimals.
func Token(symbol string) (TokenInfo, bool) {
	info, ok := knownTokens[symbol]
	return info, ok
}
