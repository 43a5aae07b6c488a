package recurrence

import "time"

// Options holds configuration for the expander
type Options struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxOccurrences caps a single expansion to prevent runaway results
	// from dense rules over wide ranges.
	MaxOccurrences int

	// MaxTimeSpan bounds expansion when the caller's query window is
	// open-ended (infinite tasks with no end date).
	MaxTimeSpan time.Duration
}

// DefaultOptions provides sensible defaults for production use
var DefaultOptions = Options{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxOccurrences: 1000,
	MaxTimeSpan:    2 * 365 * 24 * time.Hour, // 2 years
}

// DisabledCacheOptions turns off caching entirely, for tests and
// memory-constrained deployments
var DisabledCacheOptions = Options{
	CacheEnabled: false,
	CacheConfig:  CacheConfig{}, // Not used

	MaxOccurrences: 1000,
	MaxTimeSpan:    2 * 365 * 24 * time.Hour,
}
