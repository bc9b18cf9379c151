package search

import (
	"net/url"
	"strings"
	"time"

	"github.com/codexray/metasearch/internal/models"
)

// Freshness boost tiers. Only the ordering matters: newer results outrank
// equally relevant stale ones.
const (
	boostDay   = 1.2
	boostWeek  = 1.1
	boostMonth = 1.05
)

func freshnessBoost(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return 1.0
	}
	age := now.Sub(*publishedAt)
	switch {
	case age < 24*time.Hour:
		return boostDay
	case age < 7*24*time.Hour:
		return boostWeek
	case age < 30*24*time.Hour:
		return boostMonth
	default:
		return 1.0
	}
}

// normalizeURL reduces a URL to its dedupe identity: lowercase scheme and
// host (www stripped), path without a trailing slash, query and fragment
// dropped. Unparseable input falls back to the trimmed raw string.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")
	return strings.ToLower(u.Scheme) + "://" + host + path
}

// mergeOutcomes flattens settled outcomes in dispatch (priority) order and
// deduplicates by normalized URL, keeping the instance with the higher raw
// provider score while preserving first-discovery position.
func mergeOutcomes(outcomes []*models.FetchOutcome) []*models.SearchResult {
	merged := make([]*models.SearchResult, 0)
	seen := make(map[string]int)
	for _, outcome := range outcomes {
		if outcome == nil || outcome.Err != nil {
			continue
		}
		for _, r := range outcome.Results {
			key := normalizeURL(r.URL)
			if idx, ok := seen[key]; ok {
				if r.ProviderScore > merged[idx].ProviderScore {
					merged[idx] = r
				}
				continue
			}
			seen[key] = len(merged)
			merged = append(merged, r)
		}
	}
	return merged
}
