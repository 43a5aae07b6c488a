package recurrence

import (
	"time"

	"github.com/taskfolk/agendo/storage"
)

// Expander turns recurring tasks into occurrence instants, optionally
// caching expansion results.
type Expander struct {
	cache *Cache
	opts  Options
}

// NewExpander creates an expander with default options.
func NewExpander() *Expander {
	return NewExpanderWithOptions(DefaultOptions)
}

// NewExpanderWithOptions creates an expander with custom options.
func NewExpanderWithOptions(opts Options) *Expander {
	var cache *Cache
	if opts.CacheEnabled {
		cache = NewCache(opts.CacheConfig)
	}
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = DefaultOptions.MaxOccurrences
	}
	if opts.MaxTimeSpan <= 0 {
		opts.MaxTimeSpan = DefaultOptions.MaxTimeSpan
	}
	return &Expander{cache: cache, opts: opts}
}

// MaxTimeSpan is the bound applied to open-ended expansion ranges.
func (x *Expander) MaxTimeSpan() time.Duration {
	return x.opts.MaxTimeSpan
}

// Occurrences expands the task's rule within [rangeStart, rangeEnd],
// inclusive on both ends. Returns (nil, false, nil) when the task is not
// recurring. The boolean reports whether the occurrence cap truncated
// the result.
func (x *Expander) Occurrences(task *storage.Task, rangeStart, rangeEnd time.Time) ([]time.Time, bool, error) {
	rule, err := BuildRule(task)
	if err != nil {
		return nil, false, err
	}
	if rule == nil {
		return nil, false, nil
	}

	if x.cache != nil {
		if occ, ok := x.cache.Get(rule.String(), rangeStart, rangeEnd); ok {
			return occ, false, nil
		}
	}

	occ := rule.Between(rangeStart, rangeEnd, true)

	truncated := false
	if len(occ) > x.opts.MaxOccurrences {
		occ = occ[:x.opts.MaxOccurrences]
		truncated = true
	}

	// Truncated results are range-dependent in a way the key doesn't
	// capture fully, but the cap is a hard error condition for the
	// caller to log, not a normal mode; caching them is still safe for
	// the identical range.
	if x.cache != nil {
		x.cache.Set(rule.String(), rangeStart, rangeEnd, occ)
	}

	return occ, truncated, nil
}

// Invalidate drops all cached expansions. Call after any task write.
func (x *Expander) Invalidate() {
	if x.cache != nil {
		x.cache.Invalidate()
	}
}

// Close releases the cache's background resources.
func (x *Expander) Close() {
	if x.cache != nil {
		x.cache.Close()
	}
}
