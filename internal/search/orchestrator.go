// Package search implements the aggregation core: it fans a query out to all
// eligible providers concurrently, tolerates per-provider failure, merges and
// ranks the combined results, and caches the response.
package search

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codexray/metasearch/internal/cache"
	"github.com/codexray/metasearch/internal/metrics"
	"github.com/codexray/metasearch/internal/models"
	"github.com/codexray/metasearch/internal/providers"
	"github.com/codexray/metasearch/internal/reliability"
)

const (
	maxResultsCap      = 50
	defaultConcurrency = 3
	defaultMaxQueryLen = 500
	defaultCallTimeout = 10 * time.Second
)

// ProviderEntry wires one provider with its guard and dispatch metadata.
type ProviderEntry struct {
	Provider    providers.Provider
	Guard       *reliability.Guard
	Priority    int // lower is preferred
	Weight      float64
	CallTimeout time.Duration
	MaxRetries  int
}

// Options tunes the orchestrator.
type Options struct {
	Concurrency    int
	MaxQueryLength int
}

// Orchestrator owns the search pipeline. Its dependencies are injected at
// construction and shared across concurrent Search calls; the cache and the
// per-provider guards are the only mutable state it touches.
type Orchestrator struct {
	entries        []ProviderEntry
	cache          *cache.Cache
	metrics        *metrics.Collector
	log            *zap.Logger
	concurrency    int
	maxQueryLength int
	now            func() time.Time
}

func NewOrchestrator(entries []ProviderEntry, c *cache.Cache, m *metrics.Collector, log *zap.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewCollector()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = defaultMaxQueryLen
	}

	sorted := make([]ProviderEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	for i := range sorted {
		if sorted[i].CallTimeout <= 0 {
			sorted[i].CallTimeout = defaultCallTimeout
		}
		if sorted[i].Weight <= 0 {
			sorted[i].Weight = 1.0
		}
	}

	return &Orchestrator{
		entries:        sorted,
		cache:          c,
		metrics:        m,
		log:            log,
		concurrency:    opts.Concurrency,
		maxQueryLength: opts.MaxQueryLength,
		now:            time.Now,
	}
}

// Search runs the full pipeline: cache lookup, concurrent dispatch to all
// eligible providers, merge, dedupe, rank, truncate, cache fill.
func (o *Orchestrator) Search(ctx context.Context, query models.SearchQuery) (*models.SearchResponse, error) {
	start := o.now()

	query, err := o.validate(query)
	if err != nil {
		return nil, err
	}

	o.metrics.RecordSearch(cache.NormalizeText(query.Text))

	key := cache.Key(query)
	if cached, ok := o.cache.Get(key); ok {
		o.metrics.RecordCacheHit()
		resp := *cached
		resp.CacheHit = true
		resp.ProcessingTimeMs = time.Since(start).Milliseconds()
		return &resp, nil
	}
	o.metrics.RecordCacheMiss()

	eligible := o.eligible(query)
	if len(eligible) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	outcomes := make([]*models.FetchOutcome, len(eligible))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, entry := range eligible {
		g.Go(func() error {
			outcomes[i] = o.dispatch(ctx, entry, query)
			return nil
		})
	}
	_ = g.Wait()

	resp := o.assemble(query, eligible, outcomes, start)
	if len(resp.ProvidersUsed) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	if len(resp.Results) > 0 {
		o.cache.Put(key, resp, o.cache.TTLFor(query.Type))
	}

	o.log.Info("search completed",
		zap.String("query", query.Text),
		zap.Int("results", len(resp.Results)),
		zap.Strings("providers_used", resp.ProvidersUsed),
		zap.Strings("providers_failed", resp.ProvidersFailed),
		zap.Int64("processing_ms", resp.ProcessingTimeMs))

	return resp, nil
}

// validate normalizes defaults and enforces caller constraints.
func (o *Orchestrator) validate(query models.SearchQuery) (models.SearchQuery, error) {
	if cache.NormalizeText(query.Text) == "" {
		return query, invalidQuery("text must not be empty")
	}
	if len(query.Text) > o.maxQueryLength {
		return query, invalidQuery("text exceeds %d characters", o.maxQueryLength)
	}
	if query.MaxResults < 1 || query.MaxResults > maxResultsCap {
		return query, invalidQuery("max_results must be between 1 and %d", maxResultsCap)
	}
	if query.Type == "" {
		query.Type = models.SearchTypeAll
	}
	switch query.Type {
	case models.SearchTypeWeb, models.SearchTypeNews, models.SearchTypeAll:
	default:
		return query, invalidQuery("unknown search type %q", query.Type)
	}
	if query.Freshness == "" {
		query.Freshness = models.FreshnessWeek
	}
	switch query.Freshness {
	case models.FreshnessDay, models.FreshnessWeek, models.FreshnessMonth, models.FreshnessYear:
	default:
		return query, invalidQuery("unknown freshness %q", query.Freshness)
	}
	return query, nil
}

// eligible returns providers that support the query type and are not circuit
// open, in priority order.
func (o *Orchestrator) eligible(query models.SearchQuery) []ProviderEntry {
	out := make([]ProviderEntry, 0, len(o.entries))
	for _, entry := range o.entries {
		if !entry.Provider.Supports(query.Type) {
			continue
		}
		if entry.Guard != nil && entry.Guard.Open() {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// dispatch runs a single provider call, honoring guard admission, the
// per-call timeout and centralized retry policy. It always returns a settled
// outcome; errors never escape to siblings.
func (o *Orchestrator) dispatch(ctx context.Context, entry ProviderEntry, query models.SearchQuery) *models.FetchOutcome {
	name := entry.Provider.Name()
	out := models.NewFetchOutcome(name)
	start := time.Now()

	if entry.Guard != nil {
		wait, err := entry.Guard.Admit()
		if err != nil {
			out.Err = err
			return out
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				out.Err = &providers.ProviderError{Provider: name, Kind: providers.KindTimeout, Err: ctx.Err()}
				return out
			case <-timer.C:
			}
		}
	}

	var results []*models.SearchResult
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, entry.CallTimeout)
		defer cancel()

		res, err := entry.Provider.Search(callCtx, query)
		if err != nil {
			var pe *providers.ProviderError
			if errors.As(err, &pe) && pe.Retryable() {
				return err
			}
			return backoff.Permanent(err)
		}
		results = res
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(entry.MaxRetries)), ctx)
	err := backoff.Retry(attempt, policy)
	out.Duration = time.Since(start)

	if err != nil {
		out.Err = err
		if kind, ok := providers.KindOf(err); ok && kind == providers.KindTimeout {
			out.TimedOut = true
		}
		if entry.Guard != nil {
			entry.Guard.RecordFailure(err)
		}
		o.log.Warn("provider call failed",
			zap.String("provider", name),
			zap.Duration("duration", out.Duration),
			zap.Error(err))
	} else {
		out.Results = results
		if entry.Guard != nil {
			entry.Guard.RecordSuccess()
		}
	}
	o.metrics.RecordCall(name, out.Duration, out.Err)
	return out
}

// assemble merges, scores, ranks and truncates the settled outcomes.
func (o *Orchestrator) assemble(query models.SearchQuery, eligible []ProviderEntry, outcomes []*models.FetchOutcome, start time.Time) *models.SearchResponse {
	weights := make(map[string]float64, len(eligible))
	for _, entry := range eligible {
		weights[entry.Provider.Name()] = entry.Weight
	}

	resp := &models.SearchResponse{
		Query:     query,
		Timestamp: start,
	}
	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		switch {
		case outcome.Err == nil:
			resp.ProvidersUsed = append(resp.ProvidersUsed, outcome.Provider)
		case outcome.TimedOut:
			resp.ProvidersTimedOut = append(resp.ProvidersTimedOut, outcome.Provider)
			resp.ProvidersFailed = append(resp.ProvidersFailed, outcome.Provider)
		default:
			resp.ProvidersFailed = append(resp.ProvidersFailed, outcome.Provider)
		}
	}

	merged := mergeOutcomes(outcomes)
	now := o.now()
	for _, r := range merged {
		weight, ok := weights[r.Provider]
		if !ok {
			weight = 1.0
		}
		r.CompositeScore = r.ProviderScore * weight * freshnessBoost(r.PublishedAt, now)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CompositeScore > merged[j].CompositeScore
	})

	resp.TotalResults = len(merged)
	if len(merged) > query.MaxResults {
		merged = merged[:query.MaxResults]
	}
	resp.Results = merged
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp
}

// ProviderStatus is the operational view of one provider.
type ProviderStatus struct {
	Name         string         `json:"name"`
	Priority     int            `json:"priority"`
	CircuitOpen  bool           `json:"circuit_open"`
	ErrorRate    float64        `json:"error_rate"`
	AvgLatencyMs float64        `json:"avg_latency_ms"`
	Health       metrics.Health `json:"health"`
}

// Status is the payload behind the status endpoint.
type Status struct {
	Providers     []ProviderStatus     `json:"providers"`
	Cache         cache.Stats          `json:"cache"`
	TotalSearches int64                `json:"total_searches"`
	TopQueries    []metrics.QueryCount `json:"top_queries"`
}

// Status reports per-provider health and cache effectiveness.
func (o *Orchestrator) Status() Status {
	status := Status{
		Cache:         o.cache.Stats(),
		TotalSearches: o.metrics.TotalSearches(),
		TopQueries:    o.metrics.TopQueries(10),
	}
	for _, entry := range o.entries {
		name := entry.Provider.Name()
		stats := o.metrics.ProviderSnapshot(name)
		ps := ProviderStatus{
			Name:         name,
			Priority:     entry.Priority,
			ErrorRate:    stats.ErrorRate,
			AvgLatencyMs: stats.AvgLatencyMs,
			Health:       stats.Health,
		}
		if entry.Guard != nil {
			ps.CircuitOpen = entry.Guard.Open()
		}
		status.Providers = append(status.Providers, ps)
	}
	return status
}

// ClearCache drops all cached responses and returns the evicted count.
func (o *Orchestrator) ClearCache() int {
	return o.cache.Clear()
}
