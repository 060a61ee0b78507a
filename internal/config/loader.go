package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SOLARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SOLARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SOLARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SOLARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SOLARB_WALLET_KEY_PASSWORD")

	// ── Solana ──
	setStr(&cfg.Solana.RPCEndpoint, "SOLARB_SOLANA_RPC_ENDPOINT")
	setStr(&cfg.Solana.Commitment, "SOLARB_SOLANA_COMMITMENT")
	setInt(&cfg.Solana.ConfirmTimeoutSec, "SOLARB_SOLANA_CONFIRM_TIMEOUT_SEC")
	setInt(&cfg.Solana.ConfirmPollMs, "SOLARB_SOLANA_CONFIRM_POLL_MS")
	setInt(&cfg.Solana.RequestTimeoutSec, "SOLARB_SOLANA_REQUEST_TIMEOUT_SEC")

	// ── Jupiter ──
	setStr(&cfg.Jupiter.QuoteHost, "SOLARB_JUPITER_QUOTE_HOST")
	setStringSlice(&cfg.Jupiter.FallbackHosts, "SOLARB_JUPITER_FALLBACK_HOSTS")
	setStr(&cfg.Jupiter.SwapHost, "SOLARB_JUPITER_SWAP_HOST")
	setInt(&cfg.Jupiter.TimeoutSec, "SOLARB_JUPITER_TIMEOUT_SEC")
	setInt(&cfg.Jupiter.MaxRetries, "SOLARB_JUPITER_MAX_RETRIES")
	setFloat64(&cfg.Jupiter.RateLimitPerSec, "SOLARB_JUPITER_RATE_LIMIT_PER_SEC")

	// ── Trading ──
	setStr(&cfg.Trading.Mode, "SOLARB_TRADING_MODE")
	setFloat64(&cfg.Trading.MinTradeSize, "SOLARB_TRADING_MIN_TRADE_SIZE")
	setFloat64(&cfg.Trading.MaxTradeSize, "SOLARB_TRADING_MAX_TRADE_SIZE")
	setFloat64(&cfg.Trading.MaxDailyVolume, "SOLARB_TRADING_MAX_DAILY_VOLUME")
	setFloat64(&cfg.Trading.MaxExposurePercentage, "SOLARB_TRADING_MAX_EXPOSURE_PERCENTAGE")
	setBool(&cfg.Trading.CountFailedVolume, "SOLARB_TRADING_COUNT_FAILED_VOLUME")
	setFloat64(&cfg.Trading.PaperBalanceUSD, "SOLARB_TRADING_PAPER_BALANCE_USD")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.MinProfitPercentage, "SOLARB_ARBITRAGE_MIN_PROFIT_PERCENTAGE")
	setInt(&cfg.Arbitrage.CooldownSeconds, "SOLARB_ARBITRAGE_COOLDOWN_SECONDS")
	setStr(&cfg.Arbitrage.CooldownFrom, "SOLARB_ARBITRAGE_COOLDOWN_FROM")
	setInt(&cfg.Arbitrage.MinSamples, "SOLARB_ARBITRAGE_MIN_SAMPLES")
	setInt(&cfg.Arbitrage.MaxPriceHistory, "SOLARB_ARBITRAGE_MAX_PRICE_HISTORY")
	setFloat64(&cfg.Arbitrage.MaxSlippagePct, "SOLARB_ARBITRAGE_MAX_SLIPPAGE_PCT")
	setFloat64(&cfg.Arbitrage.MovementBufferPct, "SOLARB_ARBITRAGE_MOVEMENT_BUFFER_PCT")
	setFloat64(&cfg.Arbitrage.BaseSlippagePct, "SOLARB_ARBITRAGE_BASE_SLIPPAGE_PCT")
	setFloat64(&cfg.Arbitrage.DefaultVenueFeePct, "SOLARB_ARBITRAGE_DEFAULT_VENUE_FEE_PCT")
	setStringSlice(&cfg.Arbitrage.Tokens, "SOLARB_ARBITRAGE_TOKENS")
	setStringSlice(&cfg.Arbitrage.Venues, "SOLARB_ARBITRAGE_VENUES")
	setDuration(&cfg.Arbitrage.PollInterval, "SOLARB_ARBITRAGE_POLL_INTERVAL")
	setDuration(&cfg.Arbitrage.PriceTTL, "SOLARB_ARBITRAGE_PRICE_TTL")
	setStr(&cfg.Arbitrage.WsHost, "SOLARB_ARBITRAGE_WS_HOST")
	setBool(&cfg.Arbitrage.WsEnabled, "SOLARB_ARBITRAGE_WS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SOLARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SOLARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SOLARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SOLARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SOLARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SOLARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SOLARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SOLARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SOLARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SOLARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SOLARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SOLARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SOLARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SOLARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SOLARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SOLARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SOLARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SOLARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SOLARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SOLARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SOLARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "SOLARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SOLARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SOLARB_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "SOLARB_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "SOLARB_S3_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SOLARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SOLARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SOLARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SOLARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SOLARB_MODE")
	setStr(&cfg.LogLevel, "SOLARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
