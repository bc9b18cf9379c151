package search

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexray/metasearch/internal/cache"
	"github.com/codexray/metasearch/internal/metrics"
	"github.com/codexray/metasearch/internal/models"
	"github.com/codexray/metasearch/internal/providers"
	"github.com/codexray/metasearch/internal/reliability"
)

type stubProvider struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, q models.SearchQuery) ([]*models.SearchResult, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Supports(models.SearchType) bool { return true }

func (s *stubProvider) Search(ctx context.Context, q models.SearchQuery) ([]*models.SearchResult, error) {
	s.calls.Add(1)
	return s.fn(ctx, q)
}

func fixedResults(provider string, items ...scoredURL) func(context.Context, models.SearchQuery) ([]*models.SearchResult, error) {
	return func(context.Context, models.SearchQuery) ([]*models.SearchResult, error) {
		out := make([]*models.SearchResult, 0, len(items))
		for _, item := range items {
			r := models.NewSearchResult(provider, item.url, "", item.url)
			r.ProviderScore = item.score
			out = append(out, r)
		}
		return out, nil
	}
}

type scoredURL struct {
	url   string
	score float64
}

func failWith(kind providers.ErrorKind) func(context.Context, models.SearchQuery) ([]*models.SearchResult, error) {
	return func(context.Context, models.SearchQuery) ([]*models.SearchResult, error) {
		return nil, &providers.ProviderError{Provider: "stub", Kind: kind}
	}
}

func newTestOrchestrator(t *testing.T, stubs ...*stubProvider) *Orchestrator {
	t.Helper()
	entries := make([]ProviderEntry, 0, len(stubs))
	for i, stub := range stubs {
		entries = append(entries, ProviderEntry{
			Provider:    stub,
			Guard:       reliability.New(stub.name, reliability.DefaultConfig()),
			Priority:    i + 1,
			Weight:      1.0,
			CallTimeout: time.Second,
			MaxRetries:  0,
		})
	}
	return NewOrchestrator(entries, cache.New(cache.Config{Capacity: 16}), metrics.NewCollector(), nil, Options{})
}

func query(text string, maxResults int) models.SearchQuery {
	return models.SearchQuery{Text: text, MaxResults: maxResults, Type: models.SearchTypeWeb, Freshness: models.FreshnessWeek}
}

func TestSearch_InvalidQuery(t *testing.T) {
	orch := newTestOrchestrator(t, &stubProvider{name: "a", fn: fixedResults("a", scoredURL{"https://x.com/1", 0.5})})

	cases := []struct {
		name string
		q    models.SearchQuery
	}{
		{"empty text", query("", 10)},
		{"whitespace text", query("   ", 10)},
		{"zero max results", query("x", 0)},
		{"too many results", query("x", 51)},
		{"unknown type", models.SearchQuery{Text: "x", MaxResults: 10, Type: "images"}},
		{"unknown freshness", models.SearchQuery{Text: "x", MaxResults: 10, Freshness: "decade"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := orch.Search(context.Background(), tc.q)
			var invalid *InvalidQueryError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestSearch_MaxResultsUpperBoundAccepted(t *testing.T) {
	orch := newTestOrchestrator(t, &stubProvider{name: "a", fn: fixedResults("a", scoredURL{"https://x.com/1", 0.5})})

	resp, err := orch.Search(context.Background(), query("x", 50))
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestSearch_PartialFailureTolerated(t *testing.T) {
	good := &stubProvider{name: "good", fn: fixedResults("good", scoredURL{"https://x.com/1", 0.5})}
	bad := &stubProvider{name: "bad", fn: failWith(providers.KindNetworkError)}
	worse := &stubProvider{name: "worse", fn: failWith(providers.KindNetworkError)}
	orch := newTestOrchestrator(t, bad, good, worse)

	resp, err := orch.Search(context.Background(), query("partial", 10))
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, []string{"good"}, resp.ProvidersUsed)
	assert.ElementsMatch(t, []string{"bad", "worse"}, resp.ProvidersFailed)
}

func TestSearch_TotalFailure(t *testing.T) {
	a := &stubProvider{name: "a", fn: failWith(providers.KindNetworkError)}
	b := &stubProvider{name: "b", fn: failWith(providers.KindTimeout)}
	orch := newTestOrchestrator(t, a, b)

	_, err := orch.Search(context.Background(), query("doomed", 10))
	assert.ErrorIs(t, err, ErrNoProvidersAvailable)
}

func TestSearch_NoEligibleProviders(t *testing.T) {
	orch := newTestOrchestrator(t)

	_, err := orch.Search(context.Background(), query("nobody home", 10))
	assert.ErrorIs(t, err, ErrNoProvidersAvailable)
}

func TestSearch_EmptyResultsIsSuccess(t *testing.T) {
	empty := &stubProvider{name: "empty", fn: fixedResults("empty")}
	orch := newTestOrchestrator(t, empty)

	resp, err := orch.Search(context.Background(), query("obscure", 10))
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, []string{"empty"}, resp.ProvidersUsed)
}

func TestSearch_EmptyResultsNotCached(t *testing.T) {
	empty := &stubProvider{name: "empty", fn: fixedResults("empty")}
	orch := newTestOrchestrator(t, empty)

	_, err := orch.Search(context.Background(), query("obscure", 10))
	require.NoError(t, err)
	_, err = orch.Search(context.Background(), query("obscure", 10))
	require.NoError(t, err)

	assert.Equal(t, int32(2), empty.calls.Load(), "empty responses must not be cached")
}

func TestSearch_CacheHitSkipsProviders(t *testing.T) {
	a := &stubProvider{name: "a", fn: fixedResults("a", scoredURL{"https://x.com/1", 0.9})}
	orch := newTestOrchestrator(t, a)

	first, err := orch.Search(context.Background(), query("Bitcoin Price", 10))
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// Same query modulo text normalization.
	second, err := orch.Search(context.Background(), query("  bitcoin   price ", 10))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, first.Results[0].URL, second.Results[0].URL)
}

func TestSearch_DeduplicationKeepsHigherScore(t *testing.T) {
	a := &stubProvider{name: "a", fn: fixedResults("a", scoredURL{"https://news.com/story", 0.6})}
	b := &stubProvider{name: "b", fn: fixedResults("b", scoredURL{"https://www.news.com/story/", 0.8})}
	orch := newTestOrchestrator(t, a, b)

	resp, err := orch.Search(context.Background(), query("dupes", 10))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1, "www prefix and trailing slash must not defeat dedupe")
	assert.Equal(t, "b", resp.Results[0].Provider)
	assert.InDelta(t, 0.8, resp.Results[0].ProviderScore, 1e-9)
}

func TestSearch_TieBreakPrefersEarlierProvider(t *testing.T) {
	a := &stubProvider{name: "a", fn: fixedResults("a", scoredURL{"https://x.com/a", 0.5})}
	b := &stubProvider{name: "b", fn: fixedResults("b", scoredURL{"https://x.com/b", 0.5})}
	orch := newTestOrchestrator(t, a, b)

	resp, err := orch.Search(context.Background(), query("ties", 10))
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a", resp.Results[0].Provider, "equal scores keep discovery order")
}

func TestSearch_Deterministic(t *testing.T) {
	build := func() *Orchestrator {
		a := &stubProvider{name: "a", fn: fixedResults("a",
			scoredURL{"https://x.com/1", 0.7},
			scoredURL{"https://x.com/2", 0.4})}
		b := &stubProvider{name: "b", fn: func(ctx context.Context, q models.SearchQuery) ([]*models.SearchResult, error) {
			// Simulate variable provider latency; ordering must not change.
			time.Sleep(5 * time.Millisecond)
			return fixedResults("b",
				scoredURL{"https://y.com/1", 0.9},
				scoredURL{"https://y.com/2", 0.4})(ctx, q)
		}}
		return newTestOrchestrator(t, a, b)
	}

	first, err := build().Search(context.Background(), query("deterministic", 10))
	require.NoError(t, err)
	second, err := build().Search(context.Background(), query("deterministic", 10))
	require.NoError(t, err)

	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].URL, second.Results[i].URL)
	}
}

func TestSearch_RateLimitedProviderExcludedNextCall(t *testing.T) {
	limited := &stubProvider{name: "limited", fn: failWith(providers.KindRateLimited)}
	steady := &stubProvider{name: "steady", fn: fixedResults("steady", scoredURL{"https://x.com/1", 0.5})}
	orch := newTestOrchestrator(t, limited, steady)

	resp, err := orch.Search(context.Background(), query("first", 10))
	require.NoError(t, err)
	assert.Contains(t, resp.ProvidersFailed, "limited")

	resp, err = orch.Search(context.Background(), query("second", 10))
	require.NoError(t, err)
	assert.NotContains(t, resp.ProvidersFailed, "limited")
	assert.Equal(t, int32(1), limited.calls.Load(), "open circuit excludes the provider from dispatch")
	assert.Equal(t, int32(2), steady.calls.Load())
}

func TestSearch_TimeoutCountedSeparately(t *testing.T) {
	slow := &stubProvider{name: "slow", fn: func(ctx context.Context, _ models.SearchQuery) ([]*models.SearchResult, error) {
		<-ctx.Done()
		return nil, &providers.ProviderError{Provider: "slow", Kind: providers.KindTimeout, Err: ctx.Err()}
	}}
	fast := &stubProvider{name: "fast", fn: fixedResults("fast", scoredURL{"https://x.com/1", 0.5})}

	entries := []ProviderEntry{
		{Provider: slow, Guard: reliability.New("slow", reliability.DefaultConfig()), Priority: 1, Weight: 1.0, CallTimeout: 20 * time.Millisecond},
		{Provider: fast, Guard: reliability.New("fast", reliability.DefaultConfig()), Priority: 2, Weight: 1.0, CallTimeout: time.Second},
	}
	orch := NewOrchestrator(entries, cache.New(cache.Config{Capacity: 16}), metrics.NewCollector(), nil, Options{})

	resp, err := orch.Search(context.Background(), query("slowpoke", 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"slow"}, resp.ProvidersTimedOut)
	assert.Equal(t, []string{"fast"}, resp.ProvidersUsed)
}

func TestSearch_BitcoinScenario(t *testing.T) {
	providerA := &stubProvider{name: "a", fn: fixedResults("a",
		scoredURL{"https://coindesk.com/price", 0.9},
		scoredURL{"https://a.com/1", 0.8},
		scoredURL{"https://a.com/2", 0.7},
		scoredURL{"https://a.com/3", 0.6})}
	providerB := &stubProvider{name: "b", fn: fixedResults("b",
		scoredURL{"https://coindesk.com/price", 0.6},
		scoredURL{"https://b.com/1", 0.5},
		scoredURL{"https://b.com/2", 0.4})}
	orch := newTestOrchestrator(t, providerA, providerB)

	resp, err := orch.Search(context.Background(), query("bitcoin price", 5))
	require.NoError(t, err)

	assert.Equal(t, 6, resp.TotalResults, "seven raw results collapse to six unique URLs")
	assert.Len(t, resp.Results, 5, "capped at max results")

	overlap := resp.Results[0]
	assert.Equal(t, "https://coindesk.com/price", overlap.URL)
	assert.InDelta(t, 0.9, overlap.ProviderScore, 1e-9, "duplicate keeps the higher provider score")

	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].CompositeScore, resp.Results[i].CompositeScore)
	}
}

func TestSearch_FreshnessBoostRanksRecentHigher(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Hour)
	stale := now.Add(-90 * 24 * time.Hour)

	p := &stubProvider{name: "p", fn: func(context.Context, models.SearchQuery) ([]*models.SearchResult, error) {
		older := models.NewSearchResult("p", "old", "", "https://x.com/old")
		older.ProviderScore = 0.8
		older.PublishedAt = &stale
		newer := models.NewSearchResult("p", "new", "", "https://x.com/new")
		newer.ProviderScore = 0.75
		newer.PublishedAt = &fresh
		return []*models.SearchResult{older, newer}, nil
	}}
	orch := newTestOrchestrator(t, p)

	resp, err := orch.Search(context.Background(), query("fresh", 10))
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "https://x.com/new", resp.Results[0].URL,
		"recency boost should outweigh a small raw score gap")
}

func TestSearch_ResultsNeverExceedMaxResults(t *testing.T) {
	items := make([]scoredURL, 20)
	for i := range items {
		items[i] = scoredURL{url: "https://x.com/" + string(rune('a'+i)), score: 1.0 - float64(i)*0.01}
	}
	p := &stubProvider{name: "p", fn: fixedResults("p", items...)}
	orch := newTestOrchestrator(t, p)

	resp, err := orch.Search(context.Background(), query("many", 3))
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, 20, resp.TotalResults)
}

func TestStatusAndClearCache(t *testing.T) {
	a := &stubProvider{name: "a", fn: fixedResults("a", scoredURL{"https://x.com/1", 0.5})}
	orch := newTestOrchestrator(t, a)

	_, err := orch.Search(context.Background(), query("status", 10))
	require.NoError(t, err)

	status := orch.Status()
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "a", status.Providers[0].Name)
	assert.False(t, status.Providers[0].CircuitOpen)
	assert.Equal(t, int64(1), status.TotalSearches)
	assert.Equal(t, 1, status.Cache.Size)

	assert.Equal(t, 1, orch.ClearCache())
	assert.Equal(t, 0, orch.Status().Cache.Size)
}
