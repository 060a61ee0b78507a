package domain

import (
	"context"
	"time"
)

// PriceCache shares the latest observed prices across processes.
type PriceCache interface {
	SetPrice(ctx context.Context, sample PriceSample, ttl time.Duration) error
	GetPrice(ctx context.Context, venue, token string) (PriceSample, error)
}

// StreamMessage is one entry read back from a bus stream.
type StreamMessage struct {
	ID     string
	Values map[string]string
}

// SignalBus carries structured events between components and processes.
// Publish/Subscribe is fire-and-forget pub/sub; StreamAppend/StreamRead is
// a bounded durable stream for events that must survive a restart.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
	StreamAppend(ctx context.Context, stream string, values map[string]any) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// LockManager provides distributed mutual exclusion. A mainnet trading
// process holds a singleton lock so two instances never trade concurrently.
type LockManager interface {
	// Acquire takes the lock or returns ErrLockHeld.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, err error)
	// Release frees the lock if token still owns it.
	Release(ctx context.Context, name, token string) error
	// Refresh extends the TTL if token still owns the lock.
	Refresh(ctx context.Context, name, token string, ttl time.Duration) error
}
