package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/pkg/logger"
)

const defaultDuckDuckGoURL = "https://api.duckduckgo.com"

// DuckDuckGoProvider queries the DuckDuckGo Instant Answer API. It yields at
// most one result per query: the abstract, when the API has one.
type DuckDuckGoProvider struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewDuckDuckGoProvider creates a new DuckDuckGo provider
func NewDuckDuckGoProvider(name string, cfg *config.ProviderConfig) *DuckDuckGoProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultDuckDuckGoURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10
	}

	p := &DuckDuckGoProvider{
		name:    name,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
	if cfg.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return p
}

// Name returns the provider name
func (p *DuckDuckGoProvider) Name() string {
	return p.name
}

// IsAvailable is always true; the Instant Answer API needs no key.
func (p *DuckDuckGoProvider) IsAvailable() bool {
	return true
}

// instantAnswerQuery is one lookup with the fixed formatting options the
// provider relies on.
type instantAnswerQuery struct {
	Q            string
	Format       string
	NoHTML       int
	SkipDisambig int
}

func newInstantAnswerQuery(q string) instantAnswerQuery {
	return instantAnswerQuery{
		Q:            q,
		Format:       "json",
		NoHTML:       1,
		SkipDisambig: 1,
	}
}

// Values encodes the query as URL parameters
func (q instantAnswerQuery) Values() url.Values {
	v := url.Values{}
	v.Set("q", q.Q)
	v.Set("format", q.Format)
	v.Set("no_html", strconv.Itoa(q.NoHTML))
	v.Set("skip_disambig", strconv.Itoa(q.SkipDisambig))
	return v
}

// instantAnswerResponse holds the fields of the API payload we consume
type instantAnswerResponse struct {
	Heading     string `json:"Heading"`
	AbstractURL string `json:"AbstractURL"`
	Abstract    string `json:"Abstract"`
}

// Search performs a search query using the Instant Answer API
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	log := logger.L()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	endpoint := p.baseURL + "/?" + newInstantAnswerQuery(query).Values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	var answer instantAnswerResponse
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]models.SearchResult, 0, 1)
	if answer.Abstract != "" {
		results = append(results, models.SearchResult{
			Title:       answer.Heading,
			URL:         answer.AbstractURL,
			Description: answer.Abstract,
		})
	}

	log.Info("duckduckgo search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(results)),
	)

	return results, nil
}
