// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SOLARB_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Solana    SolanaConfig    `toml:"solana"`
	Jupiter   JupiterConfig   `toml:"jupiter"`
	Trading   TradingConfig   `toml:"trading"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds Solana wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// SolanaConfig holds RPC endpoint and chain parameters.
type SolanaConfig struct {
	RPCEndpoint       string `toml:"rpc_endpoint"`
	Commitment        string `toml:"commitment"`
	ConfirmTimeoutSec int    `toml:"confirm_timeout_sec"`
	ConfirmPollMs     int    `toml:"confirm_poll_ms"`
	RequestTimeoutSec int    `toml:"request_timeout_sec"`
}

// JupiterConfig holds Jupiter aggregator API endpoints and client limits.
type JupiterConfig struct {
	QuoteHost       string   `toml:"quote_host"`
	FallbackHosts   []string `toml:"fallback_hosts"`
	SwapHost        string   `toml:"swap_host"`
	TimeoutSec      int      `toml:"timeout_sec"`
	MaxRetries      int      `toml:"max_retries"`
	RateLimitPerSec float64  `toml:"rate_limit_per_sec"`
}

// TradingConfig holds sizing and daily limits.
type TradingConfig struct {
	// Mode selects execution: "paper" simulates fills, "mainnet" trades on-chain.
	Mode                  string  `toml:"mode"`
	MinTradeSize          float64 `toml:"min_trade_size"`
	MaxTradeSize          float64 `toml:"max_trade_size"`
	MaxDailyVolume        float64 `toml:"max_daily_volume"`
	MaxExposurePercentage float64 `toml:"max_exposure_percentage"`
	// CountFailedVolume makes failed trades consume daily volume too.
	CountFailedVolume bool    `toml:"count_failed_volume"`
	PaperBalanceUSD   float64 `toml:"paper_balance_usd"`
}

// ArbitrageConfig holds detection thresholds and the cost model.
type ArbitrageConfig struct {
	MinProfitPercentage float64 `toml:"min_profit_percentage"`
	CooldownSeconds     int     `toml:"cooldown_seconds"`
	// CooldownFrom selects the cooldown anchor: "completion" or "approval".
	CooldownFrom    string  `toml:"cooldown_from"`
	MinSamples      int     `toml:"min_samples"`
	MaxPriceHistory int     `toml:"max_price_history"`
	MaxSlippagePct  float64 `toml:"max_slippage_pct"`
	// MovementBufferPct covers price movement between quote and fill.
	MovementBufferPct float64 `toml:"movement_buffer_pct"`
	// BaseSlippagePct is scaled per token by liquidity tier.
	BaseSlippagePct float64 `toml:"base_slippage_pct"`
	// PerVenueFeePct maps venue name to taker fee percentage; venues not
	// listed use DefaultVenueFeePct.
	PerVenueFeePct     map[string]float64 `toml:"per_venue_fee_pct"`
	DefaultVenueFeePct float64            `toml:"default_venue_fee_pct"`
	HighLiquidity      []string           `toml:"high_liquidity_tokens"`
	MediumLiquidity    []string           `toml:"medium_liquidity_tokens"`
	Tokens             []string           `toml:"tokens"`
	Venues             []string           `toml:"venues"`
	PollInterval       duration           `toml:"poll_interval"`
	PriceTTL           duration           `toml:"price_ttl"`
	WsHost             string             `toml:"ws_host"`
	WsEnabled          bool               `toml:"ws_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	// Enabled false keeps the ledger in memory (paper runs without a DB).
	Enabled bool `toml:"enabled"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "1m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCEndpoint:       "https://api.mainnet-beta.solana.com",
			Commitment:        "confirmed",
			ConfirmTimeoutSec: 60,
			ConfirmPollMs:     500,
			RequestTimeoutSec: 15,
		},
		Jupiter: JupiterConfig{
			QuoteHost: "https://quote-api.jup.ag/v6",
			FallbackHosts: []string{
				"https://quote-api.jup.ag/v4",
			},
			SwapHost:        "https://quote-api.jup.ag/v6",
			TimeoutSec:      10,
			MaxRetries:      3,
			RateLimitPerSec: 5,
		},
		Trading: TradingConfig{
			Mode:                  "paper",
			MinTradeSize:          5.0,
			MaxTradeSize:          100.0,
			MaxDailyVolume:        1000.0,
			MaxExposurePercentage: 10.0,
			CountFailedVolume:     false,
			PaperBalanceUSD:       1000.0,
		},
		Arbitrage: ArbitrageConfig{
			MinProfitPercentage: 0.5,
			CooldownSeconds:     300,
			CooldownFrom:        "completion",
			MinSamples:          10,
			MaxPriceHistory:     100,
			MaxSlippagePct:      0.5,
			MovementBufferPct:   0.03,
			BaseSlippagePct:     0.05,
			PerVenueFeePct: map[string]float64{
				"jupiter":  0.10,
				"raydium":  0.22,
				"openbook": 0.14,
				"orca":     0.25,
				"meteora":  0.20,
				"phoenix":  0.05,
			},
			DefaultVenueFeePct: 0.25,
			HighLiquidity:      []string{"SOL", "USDC", "USDT", "ETH"},
			MediumLiquidity:    []string{"RAY", "ORCA", "SRM", "MNGO"},
			Tokens:             []string{"SOL", "RAY", "ORCA"},
			Venues:             []string{"jupiter", "raydium", "orca"},
			PollInterval:       duration{5 * time.Second},
			PriceTTL:           duration{30 * time.Second},
			WsEnabled:          false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "solarbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "solarbot-data",
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "trade_executed", "trade_failed", "error"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

// validTradingModes enumerates the accepted values for Trading.Mode.
var validTradingModes = map[string]bool{
	"paper":   true,
	"mainnet": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validCooldownFrom enumerates the accepted cooldown anchors.
var validCooldownFrom = map[string]bool{
	"completion": true,
	"approval":   true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Trading mode
	if !validTradingModes[strings.ToLower(c.Trading.Mode)] {
		errs = append(errs, fmt.Sprintf("trading: unknown mode %q (valid: paper, mainnet)", c.Trading.Mode))
	}

	// Wallet is required only for mainnet trading.
	if c.Mode == "trade" && strings.ToLower(c.Trading.Mode) == "mainnet" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mainnet trading")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Solana
	if c.Solana.RPCEndpoint == "" {
		errs = append(errs, "solana: rpc_endpoint must not be empty")
	}
	if c.Solana.Commitment != "processed" && c.Solana.Commitment != "confirmed" && c.Solana.Commitment != "finalized" {
		errs = append(errs, fmt.Sprintf("solana: commitment must be processed, confirmed, or finalized, got %q", c.Solana.Commitment))
	}
	if c.Solana.ConfirmTimeoutSec <= 0 {
		errs = append(errs, "solana: confirm_timeout_sec must be > 0")
	}

	// Jupiter
	if c.Jupiter.QuoteHost == "" {
		errs = append(errs, "jupiter: quote_host must not be empty")
	}
	if c.Jupiter.MaxRetries < 1 {
		errs = append(errs, "jupiter: max_retries must be >= 1")
	}
	if c.Jupiter.RateLimitPerSec <= 0 {
		errs = append(errs, "jupiter: rate_limit_per_sec must be > 0")
	}

	// Trading limits
	if c.Trading.MinTradeSize <= 0 {
		errs = append(errs, "trading: min_trade_size must be > 0")
	}
	if c.Trading.MaxTradeSize < c.Trading.MinTradeSize {
		errs = append(errs, "trading: max_trade_size must be >= min_trade_size")
	}
	if c.Trading.MaxDailyVolume <= 0 {
		errs = append(errs, "trading: max_daily_volume must be > 0")
	}
	if c.Trading.MaxExposurePercentage <= 0 || c.Trading.MaxExposurePercentage > 100 {
		errs = append(errs, fmt.Sprintf("trading: max_exposure_percentage must be in (0, 100], got %g", c.Trading.MaxExposurePercentage))
	}

	// Arbitrage
	if c.Arbitrage.MinProfitPercentage < 0 {
		errs = append(errs, "arbitrage: min_profit_percentage must be >= 0")
	}
	if c.Arbitrage.CooldownSeconds < 0 {
		errs = append(errs, "arbitrage: cooldown_seconds must be >= 0")
	}
	if !validCooldownFrom[strings.ToLower(c.Arbitrage.CooldownFrom)] {
		errs = append(errs, fmt.Sprintf("arbitrage: unknown cooldown_from %q (valid: completion, approval)", c.Arbitrage.CooldownFrom))
	}
	if c.Arbitrage.MinSamples < 1 {
		errs = append(errs, "arbitrage: min_samples must be >= 1")
	}
	if c.Arbitrage.MaxPriceHistory < c.Arbitrage.MinSamples {
		errs = append(errs, "arbitrage: max_price_history must be >= min_samples")
	}
	if c.Arbitrage.MaxSlippagePct <= 0 {
		errs = append(errs, "arbitrage: max_slippage_pct must be > 0")
	}
	if len(c.Arbitrage.Tokens) == 0 {
		errs = append(errs, "arbitrage: at least one token must be configured")
	}
	if len(c.Arbitrage.Venues) < 2 {
		errs = append(errs, "arbitrage: at least two venues must be configured")
	}
	if c.Arbitrage.PollInterval.Duration <= 0 {
		errs = append(errs, "arbitrage: poll_interval must be > 0")
	}
	if c.Arbitrage.WsEnabled && c.Arbitrage.WsHost == "" {
		errs = append(errs, "arbitrage: ws_host is required when ws_enabled is set")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Mainnet trading needs the durable ledger and the execution lock.
	if strings.ToLower(c.Trading.Mode) == "mainnet" {
		if !c.Postgres.Enabled {
			errs = append(errs, "postgres: must be enabled for mainnet trading")
		}
		if !c.Redis.Enabled {
			errs = append(errs, "redis: must be enabled for mainnet trading")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
