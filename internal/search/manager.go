package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/config"
	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

// Manager manages search providers
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	maxResults      int
}

// NewManager creates a new search manager from configuration
func NewManager(cfg *config.SearchConfig) *Manager {
	m := &Manager{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.Default,
		maxResults:      cfg.MaxResults,
	}

	// Dynamically create providers based on type
	for name, providerCfg := range cfg.Providers {
		var provider Provider
		switch providerCfg.Type {
		case "duckduckgo":
			provider = NewDuckDuckGoProvider(name, &providerCfg)
		case "mcp":
			provider = NewMCPProvider(name, &providerCfg)
		case "firecrawl":
			provider = NewFirecrawlProvider(name, &providerCfg)
		default:
			logger.Warn("unknown provider type, skipping",
				zap.String("provider", name),
				zap.String("type", providerCfg.Type))
			continue
		}

		m.providers[name] = provider
		logger.Info("provider initialized",
			zap.String("name", name),
			zap.String("type", providerCfg.Type),
			zap.Bool("available", provider.IsAvailable()),
		)
	}

	logger.Info("search manager initialized",
		zap.String("default_provider", cfg.Default),
		zap.Int("provider_count", len(m.providers)),
	)

	return m
}

// NewManagerWithProviders builds a manager around already constructed providers
func NewManagerWithProviders(defaultProvider string, maxResults int, providers ...Provider) *Manager {
	m := &Manager{
		providers:       make(map[string]Provider, len(providers)),
		defaultProvider: defaultProvider,
		maxResults:      maxResults,
	}
	for _, p := range providers {
		m.providers[p.Name()] = p
	}
	return m
}

// HasAvailableProvider returns true if there's at least one available provider
func (m *Manager) HasAvailableProvider() bool {
	for _, p := range m.providers {
		if p.IsAvailable() {
			return true
		}
	}
	return false
}

// Search performs a search using the default provider, falling back to any
// other available provider when the default is missing or unavailable.
// maxResults <= 0 uses the configured limit.
func (m *Manager) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = m.maxResults
	}

	// Try default provider first
	if m.defaultProvider != "" {
		if p, ok := m.providers[m.defaultProvider]; ok && p.IsAvailable() {
			return p.Search(ctx, query, maxResults)
		}
	}

	// Fall back to any available provider, in name order so the choice is stable
	for _, name := range m.names() {
		p := m.providers[name]
		if p.IsAvailable() {
			logger.Debug("using fallback provider",
				zap.String("provider", name),
				zap.String("query", query),
			)
			return p.Search(ctx, query, maxResults)
		}
	}

	return nil, fmt.Errorf("no available search provider")
}

// SearchWithProvider performs a search using a specific provider
func (m *Manager) SearchWithProvider(ctx context.Context, providerName, query string, maxResults int) ([]models.SearchResult, error) {
	p, ok := m.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerName)
	}

	if !p.IsAvailable() {
		return nil, fmt.Errorf("provider not available: %s", providerName)
	}

	if maxResults <= 0 {
		maxResults = m.maxResults
	}
	return p.Search(ctx, query, maxResults)
}

// Providers lists the configured providers sorted by name
func (m *Manager) Providers() []Info {
	infos := make([]Info, 0, len(m.providers))
	for _, name := range m.names() {
		p := m.providers[name]
		infos = append(infos, Info{
			Name:      name,
			Type:      p.Type(),
			Available: p.IsAvailable(),
			Default:   name == m.defaultProvider,
		})
	}
	return infos
}

// Close releases provider resources such as MCP sessions
func (m *Manager) Close() {
	for _, p := range m.providers {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close provider", zap.String("provider", p.Name()), zap.Error(err))
			}
		}
	}
}

func (m *Manager) names() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
