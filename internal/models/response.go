package models

import "time"

// SearchResponse is the aggregate returned to callers. Results are unique by
// normalized URL and sorted by descending composite score.
type SearchResponse struct {
	Results           []*SearchResult `json:"results"`
	TotalResults      int             `json:"total_results"`
	ProvidersUsed     []string        `json:"providers_used"`
	ProvidersFailed   []string        `json:"providers_failed,omitempty"`
	ProvidersTimedOut []string        `json:"providers_timed_out,omitempty"`
	Query             SearchQuery     `json:"query"`
	Timestamp         time.Time       `json:"timestamp"`
	ProcessingTimeMs  int64           `json:"processing_time_ms"`
	CacheHit          bool            `json:"cache_hit"`
}
