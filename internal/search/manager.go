package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/pkg/logger"
)

// Manager manages search providers
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	enabled         bool
}

// NewManager creates a new search manager
func NewManager(cfg *config.WebSearchConfig) *Manager {
	m := &Manager{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.Default,
		enabled:         cfg.Enabled,
	}

	if !cfg.Enabled {
		logger.Info("web search is disabled")
		return m
	}

	for name, providerCfg := range cfg.Providers {
		providerCfg := providerCfg

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

		if !provider.IsAvailable() {
			logger.Debug("skipping unavailable provider", zap.String("provider", name))
			continue
		}

		m.providers[name] = provider
		logger.Info("provider initialized",
			zap.String("name", name),
			zap.String("type", providerCfg.Type),
		)
	}

	logger.Info("search manager initialized",
		zap.String("default_provider", cfg.Default),
		zap.Int("provider_count", len(m.providers)),
	)

	return m
}

// NewManagerWithProviders builds an enabled manager around ready providers.
func NewManagerWithProviders(defaultProvider string, providers ...Provider) *Manager {
	m := &Manager{
		providers:       make(map[string]Provider, len(providers)),
		defaultProvider: defaultProvider,
		enabled:         true,
	}
	for _, p := range providers {
		m.providers[p.Name()] = p
	}
	return m
}

// HasAvailableProvider returns true if there's at least one available provider
func (m *Manager) HasAvailableProvider() bool {
	if !m.enabled {
		return false
	}
	for _, p := range m.providers {
		if p.IsAvailable() {
			return true
		}
	}
	return false
}

// DefaultProvider returns the configured default provider name
func (m *Manager) DefaultProvider() string {
	return m.defaultProvider
}

// ProviderNames lists registered providers in sorted order
func (m *Manager) ProviderNames() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search runs query against the default provider, then the others in name
// order. It never fails: when every provider errors the failure is logged
// and an empty slice is returned.
func (m *Manager) Search(ctx context.Context, query string) []models.SearchResult {
	log := logger.FromContext(ctx)

	if !m.enabled {
		log.Warn("search requested while web search is disabled", zap.String("query", query))
		return []models.SearchResult{}
	}

	for _, name := range m.searchOrder() {
		p := m.providers[name]
		if !p.IsAvailable() {
			continue
		}
		results, err := p.Search(ctx, query)
		if err != nil {
			log.Warn("search provider failed",
				zap.String("provider", name),
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}
		if results == nil {
			results = []models.SearchResult{}
		}
		return results
	}

	log.Error("search error: no provider returned results", zap.String("query", query))
	return []models.SearchResult{}
}

// searchOrder puts the default provider first, then the rest by name
func (m *Manager) searchOrder() []string {
	order := make([]string, 0, len(m.providers))
	if _, ok := m.providers[m.defaultProvider]; ok {
		order = append(order, m.defaultProvider)
	}
	for _, name := range m.ProviderNames() {
		if name != m.defaultProvider {
			order = append(order, name)
		}
	}
	return order
}

// SearchWithProvider performs a search using a specific provider
func (m *Manager) SearchWithProvider(ctx context.Context, providerName, query string) ([]models.SearchResult, error) {
	if !m.enabled {
		return nil, fmt.Errorf("web search is disabled")
	}

	p, ok := m.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerName)
	}

	if !p.IsAvailable() {
		return nil, fmt.Errorf("provider not available: %s", providerName)
	}

	return p.Search(ctx, query)
}

// Close releases provider resources such as MCP sessions.
func (m *Manager) Close() {
	for name, p := range m.providers {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				logger.Warn("provider close failed", zap.String("provider", name), zap.Error(err))
			}
		}
	}
}
