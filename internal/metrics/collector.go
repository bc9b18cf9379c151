// Package metrics tracks per-provider call outcomes and global search
// counters. The derived health classification is observability only; dispatch
// eligibility is decided solely by each provider's circuit breaker.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Health classifies a provider by its error rate.
type Health string

const (
	Healthy   Health = "healthy"
	Degraded  Health = "degraded"
	Unhealthy Health = "unhealthy"
)

// emaAlpha is the smoothing factor for the rolling latency average.
const emaAlpha = 0.1

// maxTrackedQueries bounds the frequency table; query texts beyond the bound
// are not tracked rather than evicting hot entries.
const maxTrackedQueries = 512

// ProviderStats is a snapshot of one provider's counters.
type ProviderStats struct {
	Provider     string  `json:"provider"`
	Calls        int64   `json:"calls"`
	Successes    int64   `json:"successes"`
	Failures     int64   `json:"failures"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	Health       Health  `json:"health"`
}

// QueryCount pairs a query text with how often it was searched.
type QueryCount struct {
	Text  string `json:"text"`
	Count int64  `json:"count"`
}

type providerCounters struct {
	calls        int64
	successes    int64
	failures     int64
	avgLatencyMs float64
}

// Collector aggregates in-process counters and mirrors them to Prometheus.
type Collector struct {
	mu            sync.RWMutex
	providers     map[string]*providerCounters
	queryCounts   map[string]int64
	totalSearches int64

	registry        *prometheus.Registry
	callsTotal      *prometheus.CounterVec
	callLatency     *prometheus.HistogramVec
	searchesTotal   prometheus.Counter
	cacheHitsTotal  prometheus.Counter
	cacheMissTotal  prometheus.Counter
	cacheHits       int64
	cacheMisses     int64
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		providers:   make(map[string]*providerCounters),
		queryCounts: make(map[string]int64),
		registry:    registry,
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metasearch_provider_calls_total",
			Help: "Provider calls partitioned by outcome",
		}, []string{"provider", "outcome"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "metasearch_provider_call_duration_seconds",
			Help:    "Time spent on provider calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		searchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metasearch_searches_total",
			Help: "Completed search requests",
		}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metasearch_cache_hits_total",
			Help: "Search responses served from cache",
		}),
		cacheMissTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metasearch_cache_misses_total",
			Help: "Searches that missed the cache",
		}),
	}
	registry.MustRegister(c.callsTotal, c.callLatency, c.searchesTotal, c.cacheHitsTotal, c.cacheMissTotal)
	return c
}

// Registry exposes the Prometheus registry for the /metrics endpoint.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCall records one settled provider call.
func (c *Collector) RecordCall(provider string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.callsTotal.WithLabelValues(provider, outcome).Inc()
	c.callLatency.WithLabelValues(provider).Observe(duration.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.providers[provider]
	if !ok {
		stats = &providerCounters{}
		c.providers[provider] = stats
	}
	stats.calls++
	if err != nil {
		stats.failures++
	} else {
		stats.successes++
	}
	ms := float64(duration.Milliseconds())
	if stats.calls == 1 {
		stats.avgLatencyMs = ms
	} else {
		stats.avgLatencyMs = emaAlpha*ms + (1-emaAlpha)*stats.avgLatencyMs
	}
}

// RecordSearch bumps the global counters and the bounded query frequency map.
func (c *Collector) RecordSearch(queryText string) {
	c.searchesTotal.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalSearches++
	if _, tracked := c.queryCounts[queryText]; tracked || len(c.queryCounts) < maxTrackedQueries {
		c.queryCounts[queryText]++
	}
}

func (c *Collector) RecordCacheHit() {
	c.cacheHitsTotal.Inc()
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

func (c *Collector) RecordCacheMiss() {
	c.cacheMissTotal.Inc()
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// ProviderSnapshot returns the counters for one provider.
func (c *Collector) ProviderSnapshot(provider string) ProviderStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked(provider)
}

// Snapshot returns counters for every provider seen so far.
func (c *Collector) Snapshot() []ProviderStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ProviderStats, 0, len(c.providers))
	for name := range c.providers {
		out = append(out, c.snapshotLocked(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

func (c *Collector) snapshotLocked(provider string) ProviderStats {
	stats := ProviderStats{Provider: provider, Health: Healthy}
	counters, ok := c.providers[provider]
	if !ok {
		return stats
	}
	stats.Calls = counters.calls
	stats.Successes = counters.successes
	stats.Failures = counters.failures
	stats.AvgLatencyMs = counters.avgLatencyMs
	if counters.calls > 0 {
		stats.ErrorRate = float64(counters.failures) / float64(counters.calls)
	}
	stats.Health = classify(stats.ErrorRate)
	return stats
}

func classify(errorRate float64) Health {
	switch {
	case errorRate > 0.5:
		return Unhealthy
	case errorRate >= 0.2:
		return Degraded
	default:
		return Healthy
	}
}

// TopQueries returns the n most frequent query texts, most frequent first.
// Ties are broken lexically so the order is stable.
func (c *Collector) TopQueries(n int) []QueryCount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]QueryCount, 0, len(c.queryCounts))
	for text, count := range c.queryCounts {
		out = append(out, QueryCount{Text: text, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Text < out[j].Text
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CacheHitRate returns the fraction of lookups served from cache.
func (c *Collector) CacheHitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.cacheHits + c.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(c.cacheHits) / float64(total)
}

// TotalSearches returns how many searches completed since start.
func (c *Collector) TotalSearches() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalSearches
}
