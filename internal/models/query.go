package models

// SearchType selects which kind of provider index a query runs against.
type SearchType string

const (
	SearchTypeWeb  SearchType = "web"
	SearchTypeNews SearchType = "news"
	SearchTypeAll  SearchType = "all"
)

// Freshness restricts results to a recency window.
type Freshness string

const (
	FreshnessDay   Freshness = "day"
	FreshnessWeek  Freshness = "week"
	FreshnessMonth Freshness = "month"
	FreshnessYear  Freshness = "year"
)

// Filters holds optional query constraints. Providers translate these into
// their own parameter dialects; unsupported fields are ignored per provider.
type Filters struct {
	Language       string   `json:"language,omitempty"`
	Country        string   `json:"country,omitempty"`
	Domains        []string `json:"domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

// SearchQuery is the generic query handed to the orchestrator. It is treated
// as immutable once constructed; the cache key is derived from it.
type SearchQuery struct {
	Text       string     `json:"text"`
	MaxResults int        `json:"max_results"`
	Type       SearchType `json:"search_type"`
	Freshness  Freshness  `json:"freshness"`
	Filters    Filters    `json:"filters"`
}

// WantsType reports whether results of type t satisfy the query.
func (q SearchQuery) WantsType(t SearchType) bool {
	return q.Type == SearchTypeAll || q.Type == t
}
