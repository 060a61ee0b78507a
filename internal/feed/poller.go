package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/mfadel/solarbot/internal/domain"
	"github.com/mfadel/solarbot/internal/platform/solana"
)

// PriceSource fetches the current USD price of a token on one venue.
type PriceSource interface {
	Price(ctx context.Context, venue, mint string, decimals int) (float64, error)
}

// Poller periodically fetches per-venue prices and fans them out to the
// in-memory aggregator, the shared price cache, and the signal bus.
type Poller struct {
	source   PriceSource
	agg      *Aggregator
	cache    domain.PriceCache
	bus      domain.SignalBus
	venues   []string
	tokens   []string
	interval time.Duration
	priceTTL time.Duration
	logger   *slog.Logger
}

// NewPoller creates a Poller. cache and bus may be nil; fan-out to them is
// skipped when absent (paper runs without Redis).
func NewPoller(source PriceSource, agg *Aggregator, cache domain.PriceCache, bus domain.SignalBus,
	venues, tokens []string, interval, priceTTL time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		source:   source,
		agg:      agg,
		cache:    cache,
		bus:      bus,
		venues:   venues,
		tokens:   tokens,
		interval: interval,
		priceTTL: priceTTL,
		logger:   logger.With(slog.String("component", "price_poller")),
	}
}

// Run polls until ctx is cancelled. One fetch failure never stops the loop;
// the venue simply misses a sample this round.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("price poller started",
		slog.Int("venues", len(p.venues)),
		slog.Int("tokens", len(p.tokens)),
		slog.Duration("interval", p.interval))

	// First round immediately so history starts filling before the first tick.
	p.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	for _, token := range p.tokens {
		info, ok := solana.Token(token)
		if !ok {
			p.logger.Warn("skipping unknown token", slog.String("token", token))
			continue
		}
		for _, venue := range p.venues {
			price, err := p.source.Price(ctx, venue, info.Mint, info.Decimals)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Warn("price fetch failed",
					slog.String("venue", venue),
					slog.String("token", token),
					slog.String("error", err.Error()))
				continue
			}
			p.ingest(ctx, domain.PriceSample{
				Venue:     venue,
				Token:     token,
				Price:     price,
				Timestamp: time.Now().UTC(),
			})
		}
	}
}

// ingest records one sample everywhere it needs to go.
func (p *Poller) ingest(ctx context.Context, sample domain.PriceSample) {
	p.agg.Record(sample.Venue, sample.Token, sample.Price, sample.Timestamp)

	if p.cache != nil {
		if err := p.cache.SetPrice(ctx, sample, p.priceTTL); err != nil {
			p.logger.Warn("price cache write failed", slog.String("error", err.Error()))
		}
	}
	if p.bus != nil {
		if err := p.bus.Publish(ctx, "prices", sample); err != nil {
			p.logger.Warn("price publish failed", slog.String("error", err.Error()))
		}
	}
}

// Ingest feeds an externally sourced sample (e.g. the WebSocket stream)
// through the same fan-out as polled samples.
func (p *Poller) Ingest(ctx context.Context, sample domain.PriceSample) {
	p.ingest(ctx, sample)
}
