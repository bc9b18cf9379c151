package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codexray/metasearch/internal/models"
)

// DuckDuckGo uses the keyless instant-answer API. It only serves web queries,
// ignores freshness, and carries the lowest trust weight; it mainly exists as
// a fallback when no keyed provider is configured.
type DuckDuckGo struct {
	baseURL string
	client  *http.Client
}

func NewDuckDuckGo(baseURL string, timeout time.Duration) *DuckDuckGo {
	if baseURL == "" {
		baseURL = "https://api.duckduckgo.com"
	}
	return &DuckDuckGo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *DuckDuckGo) Name() string {
	return "duckduckgo"
}

func (d *DuckDuckGo) Supports(t models.SearchType) bool {
	return t == models.SearchTypeWeb || t == models.SearchTypeAll
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Heading       string     `json:"Heading"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
	Results       []ddgTopic `json:"Results"`
}

func (d *DuckDuckGo) Search(ctx context.Context, query models.SearchQuery) ([]*models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query.Text)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, transportError(d.Name(), err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, transportError(d.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(d.Name(), resp.StatusCode)
	}

	var parsed ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, malformedError(d.Name(), err)
	}

	var results []*models.SearchResult
	add := func(title, snippet, rawURL string) {
		if rawURL == "" || len(results) >= query.MaxResults {
			return
		}
		r := models.NewSearchResult(d.Name(), title, snippet, rawURL)
		r.ProviderScore = rankScore(len(results))
		results = append(results, r)
	}

	if parsed.AbstractURL != "" {
		add(parsed.Heading, parsed.AbstractText, parsed.AbstractURL)
	}
	var walk func(topics []ddgTopic)
	walk = func(topics []ddgTopic) {
		for _, topic := range topics {
			if topic.Text != "" {
				title, snippet := splitTopicText(topic.Text)
				add(title, snippet, topic.FirstURL)
			}
			walk(topic.Topics)
		}
	}
	walk(parsed.Results)
	walk(parsed.RelatedTopics)

	return results, nil
}

// splitTopicText splits the "Title - description" shape the instant-answer
// API uses for related topics.
func splitTopicText(text string) (string, string) {
	parts := strings.SplitN(text, " - ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(text), ""
}
