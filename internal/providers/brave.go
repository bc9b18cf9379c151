package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codexray/metasearch/internal/models"
)

// Brave talks to the Brave Search API (web and news verticals).
type Brave struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewBrave creates a Brave adapter. baseURL defaults to the public endpoint
// when empty; tests point it at a local server.
func NewBrave(apiKey, baseURL string, timeout time.Duration) *Brave {
	if baseURL == "" {
		baseURL = "https://api.search.brave.com/res/v1"
	}
	return &Brave{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (b *Brave) Name() string {
	return "brave"
}

func (b *Brave) Supports(t models.SearchType) bool {
	return t == models.SearchTypeWeb || t == models.SearchTypeNews || t == models.SearchTypeAll
}

// braveFreshness maps generic freshness windows to Brave freshness codes.
var braveFreshness = map[models.Freshness]string{
	models.FreshnessDay:   "pd",
	models.FreshnessWeek:  "pw",
	models.FreshnessMonth: "pm",
	models.FreshnessYear:  "py",
}

func (b *Brave) Search(ctx context.Context, query models.SearchQuery) ([]*models.SearchResult, error) {
	vertical := "web"
	if query.Type == models.SearchTypeNews {
		vertical = "news"
	}

	params := url.Values{}
	params.Set("q", withSiteTerms(query.Text, query.Filters))
	params.Set("count", fmt.Sprintf("%d", query.MaxResults))
	if code, ok := braveFreshness[query.Freshness]; ok {
		params.Set("freshness", code)
	}
	if query.Filters.Country != "" {
		params.Set("country", strings.ToUpper(query.Filters.Country))
	}
	if query.Filters.Language != "" {
		params.Set("search_lang", strings.ToLower(query.Filters.Language))
	}

	searchURL := fmt.Sprintf("%s/%s/search?%s", b.baseURL, vertical, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, transportError(b.Name(), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, transportError(b.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(b.Name(), resp.StatusCode)
	}

	var payload braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, malformedError(b.Name(), err)
	}

	items := payload.Web.Results
	if vertical == "news" {
		items = payload.Results
	}

	results := make([]*models.SearchResult, 0, len(items))
	for i, item := range items {
		if item.URL == "" {
			continue
		}
		r := models.NewSearchResult(b.Name(), item.Title, item.Description, item.URL)
		r.ProviderScore = rankScore(i)
		if ts := parseBraveTime(item.PageAge); ts != nil {
			r.PublishedAt = ts
		}
		results = append(results, r)
	}
	return results, nil
}

// braveResponse covers both verticals: web results are nested under "web",
// news results sit at the top level.
type braveResponse struct {
	Web struct {
		Results []braveItem `json:"results"`
	} `json:"web"`
	Results []braveItem `json:"results"`
}

type braveItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	PageAge     string `json:"page_age"`
}

func parseBraveTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}
