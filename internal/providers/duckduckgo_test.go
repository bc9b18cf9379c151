package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexray/metasearch/internal/models"
)

func TestDuckDuckGo_FlattensNestedTopics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Heading":      "Go",
			"AbstractText": "Go is a programming language.",
			"AbstractURL":  "https://go.dev",
			"RelatedTopics": []map[string]any{
				{"Text": "Goroutines - lightweight threads", "FirstURL": "https://go.dev/tour/concurrency"},
				{
					"Topics": []map[string]any{
						{"Text": "Channels - typed conduits", "FirstURL": "https://go.dev/tour/channels"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	d := NewDuckDuckGo(srv.URL, 5*time.Second)
	q := models.SearchQuery{Text: "go", MaxResults: 10, Type: models.SearchTypeWeb, Freshness: models.FreshnessWeek}
	results, err := d.Search(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "Go", results[0].Title)
	assert.Equal(t, "Goroutines", results[1].Title)
	assert.Equal(t, "lightweight threads", results[1].Snippet)
	assert.Equal(t, "Channels", results[2].Title, "nested topics are flattened")
}

func TestDuckDuckGo_RespectsMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		topics := make([]map[string]any, 10)
		for i := range topics {
			topics[i] = map[string]any{
				"Text":     "Topic - description",
				"FirstURL": "https://example.com/" + string(rune('a'+i)),
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"RelatedTopics": topics})
	}))
	defer srv.Close()

	d := NewDuckDuckGo(srv.URL, 5*time.Second)
	q := models.SearchQuery{Text: "go", MaxResults: 4, Type: models.SearchTypeWeb, Freshness: models.FreshnessWeek}
	results, err := d.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestDuckDuckGo_WebOnly(t *testing.T) {
	d := NewDuckDuckGo("", 5*time.Second)
	assert.True(t, d.Supports(models.SearchTypeWeb))
	assert.True(t, d.Supports(models.SearchTypeAll))
	assert.False(t, d.Supports(models.SearchTypeNews))
}

func TestSplitTopicText(t *testing.T) {
	title, snippet := splitTopicText("Goroutines - lightweight threads")
	assert.Equal(t, "Goroutines", title)
	assert.Equal(t, "lightweight threads", snippet)

	title, snippet = splitTopicText("Just a title")
	assert.Equal(t, "Just a title", title)
	assert.Empty(t, snippet)
}

func TestRankScore(t *testing.T) {
	assert.InDelta(t, 1.0, rankScore(0), 1e-9)
	assert.InDelta(t, 0.95, rankScore(1), 1e-9)
	assert.InDelta(t, 0.1, rankScore(50), 1e-9, "score floors instead of going negative")
}
