package feed

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotOmitsWarmingVenues(t *testing.T) {
	agg := NewAggregator(3, 10)
	now := time.Now()

	for i := 0; i < 3; i++ {
		agg.Record("jupiter", "SOL", 100+float64(i), now.Add(time.Duration(i)*time.Second))
	}
	agg.Record("raydium", "SOL", 101.5, now)
	agg.Record("raydium", "SOL", 101.6, now.Add(time.Second))

	snap := agg.Snapshot("SOL")
	require.Equal(t, 1, snap.VenueCount())
	require.Contains(t, snap.Venues, "jupiter")
	assert.Equal(t, 102.0, snap.Venues["jupiter"].Price)

	// One more sample and raydium becomes eligible.
	agg.Record("raydium", "SOL", 101.7, now.Add(2*time.Second))
	snap = agg.Snapshot("SOL")
	require.Equal(t, 2, snap.VenueCount())
	assert.Equal(t, 101.7, snap.Venues["raydium"].Price)
}

func TestSnapshotIsPerToken(t *testing.T) {
	agg := NewAggregator(1, 10)
	now := time.Now()

	agg.Record("jupiter", "SOL", 150, now)
	agg.Record("jupiter", "RAY", 2.5, now)

	snap := agg.Snapshot("SOL")
	require.Equal(t, 1, snap.VenueCount())
	assert.Equal(t, 150.0, snap.Venues["jupiter"].Price)
	assert.Equal(t, "SOL", snap.Venues["jupiter"].Token)
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	agg := NewAggregator(1, 5)
	now := time.Now()

	for i := 0; i < 8; i++ {
		agg.Record("orca", "SOL", float64(i), now.Add(time.Duration(i)*time.Second))
	}

	hist := agg.History("orca", "SOL")
	require.Len(t, hist, 5)
	assert.Equal(t, 3.0, hist[0].Price)
	assert.Equal(t, 7.0, hist[len(hist)-1].Price)

	// Latest sample survives eviction and is served in the snapshot.
	snap := agg.Snapshot("SOL")
	assert.Equal(t, 7.0, snap.Venues["orca"].Price)
}

func TestHistoryReturnsCopy(t *testing.T) {
	agg := NewAggregator(1, 10)
	agg.Record("orca", "SOL", 10, time.Now())

	hist := agg.History("orca", "SOL")
	require.Len(t, hist, 1)
	hist[0].Price = 999

	assert.Equal(t, 10.0, agg.History("orca", "SOL")[0].Price)
}

func TestConcurrentRecordAndSnapshot(t *testing.T) {
	agg := NewAggregator(1, 50)
	now := time.Now()

	var wg sync.WaitGroup
	for v := 0; v < 4; v++ {
		venue := fmt.Sprintf("venue%d", v)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				agg.Record(venue, "SOL", float64(i), now.Add(time.Duration(i)*time.Millisecond))
				_ = agg.Snapshot("SOL")
			}
		}()
	}
	wg.Wait()

	snap := agg.Snapshot("SOL")
	assert.Equal(t, 4, snap.VenueCount())
}
