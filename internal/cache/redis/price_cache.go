package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mfadel/solarbot/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each
// (venue, token) price lives at key "price:{venue}:{token}" with fields
// "price" and "ts" (Unix nanosecond timestamp), expiring after the
// configured TTL so a stalled poller never serves ancient prices.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

var _ domain.PriceCache = (*PriceCache)(nil)

func priceKey(venue, token string) string {
	return "price:" + venue + ":" + token
}

// SetPrice stores the sample and refreshes the key's TTL.
func (pc *PriceCache) SetPrice(ctx context.Context, sample domain.PriceSample, ttl time.Duration) error {
	key := priceKey(sample.Venue, sample.Token)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(sample.Price, 'f', -1, 64),
		"ts":    strconv.FormatInt(sample.Timestamp.UnixNano(), 10),
	}

	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s/%s: %w", sample.Venue, sample.Token, err)
	}
	return nil
}

// GetPrice retrieves the latest sample for a (venue, token). It returns
// domain.ErrNotFound when the key does not exist or has expired.
func (pc *PriceCache) GetPrice(ctx context.Context, venue, token string) (domain.PriceSample, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(venue, token)).Result()
	if err != nil {
		return domain.PriceSample{}, fmt.Errorf("redis: get price %s/%s: %w", venue, token, err)
	}
	if len(vals) == 0 {
		return domain.PriceSample{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return domain.PriceSample{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.PriceSample{}, fmt.Errorf("redis: parse price %s/%s: %w", venue, token, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return domain.PriceSample{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.PriceSample{}, fmt.Errorf("redis: parse ts %s/%s: %w", venue, token, err)
	}

	return domain.PriceSample{
		Venue:     venue,
		Token:     token,
		Price:     price,
		Timestamp: time.Unix(0, tsNano).UTC(),
	}, nil
}
