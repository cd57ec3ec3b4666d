package search

import (
	"context"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
)

// Provider defines the interface for search providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Type returns the provider type, e.g. "duckduckgo"
	Type() string

	// Search returns at most maxResults results in provider order
	Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error)

	// IsAvailable returns true if the provider is properly configured
	IsAvailable() bool
}

// Info describes a configured provider
type Info struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Available bool   `json:"available"`
	Default   bool   `json:"default"`
}
