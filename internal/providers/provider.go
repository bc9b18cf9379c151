package providers

import (
	"context"

	"github.com/codexray/metasearch/internal/models"
)

// Provider is the interface every external search backend implements.
// Implementations are stateless, safe for concurrent use, and must not retry
// internally; retry and backoff policy lives in the orchestrator.
type Provider interface {
	// Search translates the generic query into provider parameters, performs
	// the outbound call, and maps the raw payload into unified results.
	// Errors are always *ProviderError so the caller can react per kind.
	Search(ctx context.Context, query models.SearchQuery) ([]*models.SearchResult, error)

	// Name returns the provider identifier used in config, metrics and logs.
	Name() string

	// Supports reports whether the provider serves the given search type.
	Supports(t models.SearchType) bool
}
