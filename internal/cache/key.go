package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codexray/metasearch/internal/models"
)

// Key derives a deterministic cache key from a query. Text is normalized
// (trimmed, lowercased, inner whitespace collapsed) and filter slices are
// sorted, so two semantically identical queries map to the same key no
// matter how their fields were ordered.
func Key(q models.SearchQuery) string {
	var b strings.Builder
	b.WriteString(NormalizeText(q.Text))
	fmt.Fprintf(&b, "|n=%d|type=%s|fresh=%s", q.MaxResults, q.Type, q.Freshness)
	fmt.Fprintf(&b, "|lang=%s|country=%s", strings.ToLower(q.Filters.Language), strings.ToLower(q.Filters.Country))
	fmt.Fprintf(&b, "|domains=%s", joinSorted(q.Filters.Domains))
	fmt.Fprintf(&b, "|exclude=%s", joinSorted(q.Filters.ExcludeDomains))
	return b.String()
}

// NormalizeText trims, lowercases and collapses internal whitespace.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func joinSorted(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	for i, v := range values {
		sorted[i] = strings.ToLower(strings.TrimSpace(v))
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
