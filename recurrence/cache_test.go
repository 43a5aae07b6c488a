package recurrence

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskfolk/agendo/storage"
)

func newTestCache(ttl time.Duration, maxEntries int) *Cache {
	return NewCache(CacheConfig{
		TTL:             ttl,
		MaxEntries:      maxEntries,
		CleanupInterval: time.Hour, // keep the background loop out of the way
	})
}

func TestCache_SetGet(t *testing.T) {
	cache := newTestCache(time.Minute, 10)
	defer cache.Close()

	lo := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2025, 1, 26, 0, 0, 0, 0, time.UTC)
	occ := []time.Time{time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)}

	_, ok := cache.Get("RRULE:FREQ=WEEKLY", lo, hi)
	assert.False(t, ok)

	cache.Set("RRULE:FREQ=WEEKLY", lo, hi, occ)

	got, ok := cache.Get("RRULE:FREQ=WEEKLY", lo, hi)
	require.True(t, ok)
	assert.Equal(t, occ, got)

	// A different range is a different key.
	_, ok = cache.Get("RRULE:FREQ=WEEKLY", lo, hi.AddDate(0, 0, 1))
	assert.False(t, ok)

	// So is a different rule.
	_, ok = cache.Get("RRULE:FREQ=DAILY", lo, hi)
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	cache := newTestCache(20*time.Millisecond, 10)
	defer cache.Close()

	lo := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2025, 1, 26, 0, 0, 0, 0, time.UTC)

	cache.Set("RRULE:FREQ=WEEKLY", lo, hi, []time.Time{lo})

	_, ok := cache.Get("RRULE:FREQ=WEEKLY", lo, hi)
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	_, ok = cache.Get("RRULE:FREQ=WEEKLY", lo, hi)
	assert.False(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	cache := newTestCache(time.Minute, 10)
	defer cache.Close()

	lo := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2025, 1, 26, 0, 0, 0, 0, time.UTC)

	cache.Set("RRULE:FREQ=WEEKLY", lo, hi, []time.Time{lo})
	cache.Set("RRULE:FREQ=DAILY", lo, hi, []time.Time{lo})

	cache.Invalidate()

	_, ok := cache.Get("RRULE:FREQ=WEEKLY", lo, hi)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Stats().TotalEntries)
}

func TestCache_EvictsOverLimit(t *testing.T) {
	cache := newTestCache(time.Minute, 3)
	defer cache.Close()

	lo := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2025, 1, 26, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		cache.Set(fmt.Sprintf("RRULE:FREQ=DAILY;COUNT=%d", i), lo, hi, []time.Time{lo})
	}

	stats := cache.Stats()
	assert.LessOrEqual(t, stats.TotalEntries, 3)
	assert.Equal(t, stats.TotalEntries, stats.ActiveEntries)
}

func TestExpander_CachedResultReused(t *testing.T) {
	x := NewExpanderWithOptions(Options{
		CacheEnabled:   true,
		CacheConfig:    DefaultCacheConfig,
		MaxOccurrences: DefaultOptions.MaxOccurrences,
		MaxTimeSpan:    DefaultOptions.MaxTimeSpan,
	})
	defer x.Close()

	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	task := storage.Task{
		ID:       "weekly",
		Interval: storage.IntervalWeekly,
		Start:    &start,
		Infinite: true,
	}

	lo := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2025, 1, 26, 23, 59, 0, 0, time.UTC)

	first, _, err := x.Occurrences(&task, lo, hi)
	require.NoError(t, err)
	second, _, err := x.Occurrences(&task, lo, hi)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	x.Invalidate()

	third, _, err := x.Occurrences(&task, lo, hi)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}
