package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/pkg/logger"
)

// FirecrawlProvider searches through the Firecrawl API and, unlike the
// instant-answer backend, returns several ranked hits.
type FirecrawlProvider struct {
	name       string
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

// NewFirecrawlProvider creates a new Firecrawl provider
func NewFirecrawlProvider(name string, cfg *config.ProviderConfig) *FirecrawlProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev/v2"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30
	}
	maxResults := cfg.MaxResults
	if maxResults == 0 {
		maxResults = 5
	}

	return &FirecrawlProvider{
		name:       name,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		client: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// Name returns the provider name
func (p *FirecrawlProvider) Name() string {
	return p.name
}

// IsAvailable returns true if the provider has an API key
func (p *FirecrawlProvider) IsAvailable() bool {
	return p.apiKey != ""
}

type firecrawlSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type firecrawlSearchResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Web []firecrawlHit `json:"web,omitempty"`
	} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type firecrawlHit struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markdown    string `json:"markdown,omitempty"`
}

// Search performs a search query using Firecrawl
func (p *FirecrawlProvider) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if !p.IsAvailable() {
		return nil, fmt.Errorf("%s provider not configured: missing API key", p.name)
	}

	bodyBytes, err := json.Marshal(firecrawlSearchRequest{Query: query, Limit: p.maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	logger.L().Debug("firecrawl response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	var searchResp firecrawlSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if !searchResp.Success {
		errMsg := searchResp.Error
		if errMsg == "" {
			errMsg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("firecrawl search failed: %s", errMsg)
	}

	results := make([]models.SearchResult, 0, p.maxResults)
	if searchResp.Data != nil {
		for _, hit := range searchResp.Data.Web {
			desc := hit.Description
			if desc == "" {
				desc = truncate(hit.Markdown, 500)
			}
			results = append(results, models.SearchResult{
				Title:       hit.Title,
				URL:         hit.URL,
				Description: desc,
			})
		}
	}

	logger.L().Info("firecrawl search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(results)),
	)

	return results, nil
}
