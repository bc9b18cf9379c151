package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codexray/metasearch/internal/models"
)

// Serper talks to serper.dev, a Google SERP API with web and news endpoints.
type Serper struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewSerper(apiKey, baseURL string, timeout time.Duration) *Serper {
	if baseURL == "" {
		baseURL = "https://google.serper.dev"
	}
	return &Serper{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *Serper) Name() string {
	return "serper"
}

func (s *Serper) Supports(t models.SearchType) bool {
	return t == models.SearchTypeWeb || t == models.SearchTypeNews || t == models.SearchTypeAll
}

// serperFreshness maps generic freshness windows to Google tbs codes.
var serperFreshness = map[models.Freshness]string{
	models.FreshnessDay:   "qdr:d",
	models.FreshnessWeek:  "qdr:w",
	models.FreshnessMonth: "qdr:m",
	models.FreshnessYear:  "qdr:y",
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	GL  string `json:"gl,omitempty"`
	HL  string `json:"hl,omitempty"`
	TBS string `json:"tbs,omitempty"`
}

type serperItem struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date"`
	Position int    `json:"position"`
}

type serperResponse struct {
	Organic []serperItem `json:"organic"`
	News    []serperItem `json:"news"`
}

func (s *Serper) Search(ctx context.Context, query models.SearchQuery) ([]*models.SearchResult, error) {
	endpoint := s.baseURL + "/search"
	if query.Type == models.SearchTypeNews {
		endpoint = s.baseURL + "/news"
	}

	body := serperRequest{
		Q:   withSiteTerms(query.Text, query.Filters),
		Num: query.MaxResults,
		GL:  strings.ToLower(query.Filters.Country),
		HL:  strings.ToLower(query.Filters.Language),
		TBS: serperFreshness[query.Freshness],
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, transportError(s.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, transportError(s.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(s.Name(), resp.StatusCode)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, malformedError(s.Name(), err)
	}

	items := parsed.Organic
	if query.Type == models.SearchTypeNews {
		items = parsed.News
	}

	results := make([]*models.SearchResult, 0, len(items))
	for i, item := range items {
		if item.Link == "" {
			continue
		}
		r := models.NewSearchResult(s.Name(), item.Title, item.Snippet, item.Link)
		position := item.Position
		if position <= 0 {
			position = i + 1
		}
		r.ProviderScore = rankScore(position - 1)
		if ts := parseRelativeAge(item.Date, time.Now()); ts != nil {
			r.PublishedAt = ts
		}
		results = append(results, r)
	}
	return results, nil
}

// parseRelativeAge handles the "3 hours ago" style dates Serper reports,
// falling back to RFC 3339 and plain dates.
func parseRelativeAge(s string, now time.Time) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "Jan 2, 2006"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 3 || fields[2] != "ago" {
		return nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil
	}
	var unit time.Duration
	switch strings.TrimSuffix(fields[1], "s") {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	case "year":
		unit = 365 * 24 * time.Hour
	default:
		return nil
	}
	ts := now.Add(-time.Duration(n) * unit)
	return &ts
}
