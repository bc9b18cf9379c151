package providers

import (
	"fmt"
	"strings"

	"github.com/codexray/metasearch/internal/models"
)

// rankScore synthesizes a relevance score from a result's position for
// providers that report ranked lists without numeric scores.
func rankScore(position int) float64 {
	score := 1.0 - float64(position)*0.05
	if score < 0.1 {
		score = 0.1
	}
	return score
}

// withSiteTerms folds domain filters into the query text for providers that
// only understand site: operators.
func withSiteTerms(text string, filters models.Filters) string {
	parts := []string{text}
	for _, d := range filters.Domains {
		parts = append(parts, fmt.Sprintf("site:%s", d))
	}
	for _, d := range filters.ExcludeDomains {
		parts = append(parts, fmt.Sprintf("-site:%s", d))
	}
	return strings.Join(parts, " ")
}
