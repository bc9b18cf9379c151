package models

import (
	"net/url"
	"strings"
	"time"
)

// SearchResult is the unified result shape produced by provider adapters.
// Adapters fill everything except CompositeScore, which the orchestrator
// attaches during ranking.
type SearchResult struct {
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Snippet        string     `json:"snippet"`
	ProviderScore  float64    `json:"provider_score"`
	CompositeScore float64    `json:"composite_score"`
	Provider       string     `json:"provider"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	Domain         string     `json:"domain"`
}

// NewSearchResult builds a result and derives its domain from the URL.
func NewSearchResult(provider, title, snippet, rawURL string) *SearchResult {
	return &SearchResult{
		Provider: provider,
		Title:    title,
		Snippet:  snippet,
		URL:      rawURL,
		Domain:   DomainOf(rawURL),
	}
}

// DomainOf extracts the bare host from a URL, without any www prefix.
// Returns "" for unparseable input.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// FetchOutcome carries the settled state of one provider call back to the
// orchestrator, whether it succeeded or not.
type FetchOutcome struct {
	Provider string
	Results  []*SearchResult
	Err      error
	Duration time.Duration
	TimedOut bool
}

func NewFetchOutcome(provider string) *FetchOutcome {
	return &FetchOutcome{
		Provider: provider,
		Results:  make([]*SearchResult, 0),
	}
}
