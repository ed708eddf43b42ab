// Package cache memoizes resolved rule views per canonical path.
package cache

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/starford/synapse/internal/discovery"
	"github.com/starford/synapse/internal/models"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 1000
)

// Cache is a TTL and capacity bounded map from canonical path to rule view.
// Get and Insert are safe for concurrent use. Concurrent misses on the same key
// are not coalesced; each caller resolves and the last Insert wins.
type Cache struct {
	lru     *expirable.LRU[string, *models.CompositeRuleView]
	max     int
	metrics bool
	logger  *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	HitRate float64 `json:"hit_rate"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics controls whether Stats logs the snapshot. Counters advance either way.
func WithMetrics(enabled bool) Option {
	return func(c *Cache) { c.metrics = enabled }
}

// WithLogger sets the logger used for metric snapshots.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache. Non-positive ttl or maxEntries fall back to the defaults.
func New(ttl time.Duration, maxEntries int, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache{
		lru:     expirable.NewLRU[string, *models.CompositeRuleView](maxEntries, nil, ttl),
		max:     maxEntries,
		metrics: true,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key returns the cache key for path.
func Key(path string) string {
	return discovery.Canonical(path)
}

// Get returns the cached view for path, counting a hit or a miss.
func (c *Cache) Get(path string) (*models.CompositeRuleView, bool) {
	v, ok := c.lru.Get(Key(path))
	if !ok || v == nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return v, true
}

// Insert stores view for path, replacing any existing entry.
func (c *Cache) Insert(path string, view *models.CompositeRuleView) {
	if view == nil {
		return
	}
	c.lru.Add(Key(path), view)
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Size:    c.lru.Len(),
		MaxSize: c.max,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	if c.metrics {
		c.logger.Debug("resolution cache stats",
			slog.Uint64("hits", s.Hits),
			slog.Uint64("misses", s.Misses),
			slog.Int("size", s.Size),
			slog.Float64("hit_rate", s.HitRate),
		)
	}
	return s
}
