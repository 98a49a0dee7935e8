package search

import (
	"context"

	"github.com/young1lin/searchbridge/internal/models"
)

// Provider defines the interface for search providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Search performs a search query. An empty slice means the backend had
	// nothing for the query; errors are transport or decoding failures.
	Search(ctx context.Context, query string) ([]models.SearchResult, error)

	// IsAvailable returns true if the provider is properly configured
	IsAvailable() bool
}
