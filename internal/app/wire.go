package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/mfadel/solarbot/internal/blob/s3"
	"github.com/mfadel/solarbot/internal/cache/redis"
	"github.com/mfadel/solarbot/internal/config"
	"github.com/mfadel/solarbot/internal/crypto"
	"github.com/mfadel/solarbot/internal/domain"
	"github.com/mfadel/solarbot/internal/notify"
	"github.com/mfadel/solarbot/internal/platform/jupiter"
	"github.com/mfadel/solarbot/internal/platform/solana"
	"github.com/mfadel/solarbot/internal/store/memory"
	"github.com/mfadel/solarbot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	Ledger domain.TradeLedger
	Audit  domain.AuditStore

	// Redis-backed, nil when redis is disabled
	PriceCache domain.PriceCache
	Bus        domain.SignalBus
	Locks      domain.LockManager

	// Platform clients
	Jupiter *jupiter.Client
	Chain   *solana.Client

	// Execution: Keys and Chain are set for mainnet, PaperWallet otherwise.
	Keys        *crypto.Keypair
	PaperWallet *domain.PaperWallet
	Balances    domain.BalanceReader

	// Blob storage, nil when s3 is disabled
	Archiver domain.Archiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Trade ledger and audit trail: PostgreSQL when enabled, in-memory
	// otherwise (paper runs without a database). ---
	var archiveLedger s3blob.ArchiveLedger
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		ledger := postgres.NewTradeLedger(pool)
		deps.Ledger = ledger
		archiveLedger = ledger
		deps.Audit = postgres.NewAuditStore(pool)
	} else {
		ledger := memory.NewTradeLedger()
		deps.Ledger = ledger
		archiveLedger = ledger
		deps.Audit = memory.NewAuditStore()
	}

	// --- Redis: price cache, signal bus, execution lock ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
	}

	// --- S3 archiver ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         strings.HasPrefix(cfg.S3.Endpoint, "https://"),
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), archiveLedger, deps.Audit)
	}

	// --- Jupiter client: quotes, swaps, and the price poller source ---
	deps.Jupiter = jupiter.NewClient(jupiter.Options{
		QuoteHost:     cfg.Jupiter.QuoteHost,
		FallbackHosts: cfg.Jupiter.FallbackHosts,
		SwapHost:      cfg.Jupiter.SwapHost,
		Timeout:       time.Duration(cfg.Jupiter.TimeoutSec) * time.Second,
		RatePerSec:    cfg.Jupiter.RateLimitPerSec,
	}, logger)

	// --- Execution backend: on-chain wallet for mainnet, simulated wallet
	// otherwise. ---
	if strings.EqualFold(cfg.Mode, "trade") && strings.EqualFold(cfg.Trading.Mode, "mainnet") {
		keys, err := crypto.LoadKeypair(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		deps.Keys = keys

		deps.Chain = solana.NewClient(solana.Options{
			Endpoint:       cfg.Solana.RPCEndpoint,
			Commitment:     cfg.Solana.Commitment,
			RequestTimeout: time.Duration(cfg.Solana.RequestTimeoutSec) * time.Second,
			ConfirmTimeout: time.Duration(cfg.Solana.ConfirmTimeoutSec) * time.Second,
			ConfirmPoll:    time.Duration(cfg.Solana.ConfirmPollMs) * time.Millisecond,
		}, keys.PublicKey(), logger)
		deps.Balances = deps.Chain
	} else {
		deps.PaperWallet = domain.NewPaperWallet(cfg.Trading.PaperBalanceUSD)
		deps.Balances = deps.PaperWallet
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
