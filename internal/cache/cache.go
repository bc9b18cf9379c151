// Package cache holds recently computed search responses so repeated queries
// skip the provider round trip. Entries are bounded by an LRU map and expire
// individually; news responses use a shorter TTL than general web responses.
package cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codexray/metasearch/internal/models"
)

// Config tunes the cache. Zero values fall back to defaults in New.
type Config struct {
	Capacity int
	WebTTL   time.Duration
	NewsTTL  time.Duration
}

type entry struct {
	response *models.SearchResponse
	storedAt time.Time
	ttl      time.Duration
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Cache is safe for concurrent use. A nil *Cache behaves as always-miss, so
// callers never have to branch on cache availability.
type Cache struct {
	cfg    Config
	store  *lru.Cache[string, entry]
	hits   atomic.Int64
	misses atomic.Int64
	now    func() time.Time
}

func New(cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 128
	}
	if cfg.WebTTL <= 0 {
		cfg.WebTTL = 10 * time.Minute
	}
	if cfg.NewsTTL <= 0 {
		cfg.NewsTTL = 5 * time.Minute
	}
	store, err := lru.New[string, entry](cfg.Capacity)
	if err != nil {
		// Only reachable with a non-positive capacity, which is normalized
		// above. Degrade to an always-miss cache rather than failing startup.
		return nil
	}
	return &Cache{cfg: cfg, store: store, now: time.Now}
}

// TTLFor picks the entry lifetime for a query; freshness-sensitive news
// queries expire sooner.
func (c *Cache) TTLFor(t models.SearchType) time.Duration {
	if c == nil {
		return 0
	}
	if t == models.SearchTypeNews {
		return c.cfg.NewsTTL
	}
	return c.cfg.WebTTL
}

// Get returns the cached response for key, or a miss. An expired entry is
// removed on access and never served.
func (c *Cache) Get(key string) (*models.SearchResponse, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.store.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= e.ttl {
		c.store.Remove(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.response, true
}

// Put stores a response under key. The least recently used entry is evicted
// once the cache is at capacity.
func (c *Cache) Put(key string, response *models.SearchResponse, ttl time.Duration) {
	if c == nil || response == nil || ttl <= 0 {
		return
	}
	c.store.Add(key, entry{response: response, storedAt: c.now(), ttl: ttl})
}

// Clear drops every entry and returns how many were evicted.
func (c *Cache) Clear() int {
	if c == nil {
		return 0
	}
	evicted := c.store.Len()
	c.store.Purge()
	return evicted
}

func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{Size: c.store.Len(), Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
