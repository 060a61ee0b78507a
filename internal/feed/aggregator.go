// Package feed collects per-venue token prices: a rolling in-memory
// aggregator fed by REST pollers and an optional WebSocket stream.
package feed

import (
	"sync"
	"time"

	"github.com/mfadel/solarbot/internal/domain"
)

// Aggregator maintains a rolling per-(venue, token) price history and serves
// cross-venue snapshots. A venue only appears in a snapshot once it has
// accumulated minSamples observations, so detection never runs on a venue
// that is still warming up.
type Aggregator struct {
	mu         sync.RWMutex
	history    map[string][]domain.PriceSample
	minSamples int
	maxHistory int
}

// NewAggregator creates an Aggregator. maxHistory caps each (venue, token)
// history; the oldest sample is evicted once the cap is reached.
func NewAggregator(minSamples, maxHistory int) *Aggregator {
	if minSamples < 1 {
		minSamples = 1
	}
	if maxHistory < minSamples {
		maxHistory = minSamples
	}
	return &Aggregator{
		history:    make(map[string][]domain.PriceSample),
		minSamples: minSamples,
		maxHistory: maxHistory,
	}
}

func historyKey(venue, token string) string {
	return venue + "|" + token
}

// Record appends one observation to the (venue, token) history.
func (a *Aggregator) Record(venue, token string, price float64, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := historyKey(venue, token)
	samples := append(a.history[key], domain.PriceSample{
		Venue:     venue,
		Token:     token,
		Price:     price,
		Timestamp: ts,
	})
	if len(samples) > a.maxHistory {
		samples = samples[len(samples)-a.maxHistory:]
	}
	a.history[key] = samples
}

// Snapshot returns the latest sample per venue for token. Venues with fewer
// than minSamples observations are omitted.
func (a *Aggregator) Snapshot(token string) domain.PriceSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := domain.PriceSnapshot{
		Token:  token,
		Venues: make(map[string]domain.PriceSample),
	}
	suffix := "|" + token
	for key, samples := range a.history {
		if len(key) <= len(suffix) || key[len(key)-len(suffix):] != suffix {
			continue
		}
		if len(samples) < a.minSamples {
			continue
		}
		latest := samples[len(samples)-1]
		snap.Venues[latest.Venue] = latest
	}
	return snap
}

// History returns a copy of the (venue, token) history, oldest first.
func (a *Aggregator) History(venue, token string) []domain.PriceSample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	src := a.history[historyKey(venue, token)]
	if len(src) == 0 {
		return nil
	}
	out := make([]domain.PriceSample, len(src))
	copy(out, src)
	return out
}
