package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/codexray/metasearch/internal/models"
)

// Tavily talks to the Tavily search API. Unlike the SERP-style providers it
// reports a native float relevance score per result and understands domain
// filters directly.
type Tavily struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewTavily(apiKey, baseURL string, timeout time.Duration) *Tavily {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &Tavily{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *Tavily) Name() string {
	return "tavily"
}

func (t *Tavily) Supports(st models.SearchType) bool {
	return st == models.SearchTypeWeb || st == models.SearchTypeAll
}

var tavilyTimeRange = map[models.Freshness]string{
	models.FreshnessDay:   "day",
	models.FreshnessWeek:  "week",
	models.FreshnessMonth: "month",
	models.FreshnessYear:  "year",
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	Topic          string   `json:"topic,omitempty"`
	TimeRange      string   `json:"time_range,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query models.SearchQuery) ([]*models.SearchResult, error) {
	body := tavilyRequest{
		Query:          query.Text,
		SearchDepth:    "basic",
		Topic:          "general",
		TimeRange:      tavilyTimeRange[query.Freshness],
		MaxResults:     query.MaxResults,
		IncludeDomains: query.Filters.Domains,
		ExcludeDomains: query.Filters.ExcludeDomains,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, transportError(t.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, transportError(t.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, transportError(t.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(t.Name(), resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, malformedError(t.Name(), err)
	}

	results := make([]*models.SearchResult, 0, len(parsed.Results))
	for i, item := range parsed.Results {
		if item.URL == "" {
			continue
		}
		r := models.NewSearchResult(t.Name(), item.Title, item.Content, item.URL)
		r.ProviderScore = item.Score
		if r.ProviderScore == 0 {
			r.ProviderScore = rankScore(i)
		}
		if item.PublishedDate != "" {
			for _, layout := range []string{time.RFC3339, "2006-01-02", "Mon, 02 Jan 2006 15:04:05 MST"} {
				if ts, err := time.Parse(layout, item.PublishedDate); err == nil {
					r.PublishedAt = &ts
					break
				}
			}
		}
		results = append(results, r)
	}
	return results, nil
}
