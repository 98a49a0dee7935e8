package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/pkg/logger"
)

// mcpSession is the part of the mcp-go client the provider uses.
type mcpSession interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPProvider calls a search tool exposed by a remote MCP server over the
// streamable HTTP transport.
type MCPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	toolName   string // The MCP tool name to call, e.g., "webSearchPrime", "search"
	queryParam string // The query parameter name, e.g., "search_query", "query"
	timeout    time.Duration

	dial func(ctx context.Context) (mcpSession, error)

	mu      sync.Mutex
	session mcpSession
}

// NewMCPProvider creates a new generic MCP provider
func NewMCPProvider(name string, cfg *config.ProviderConfig) *MCPProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30
	}
	toolName := cfg.ToolName
	if toolName == "" {
		toolName = "search"
	}
	queryParam := cfg.QueryParam
	if queryParam == "" {
		queryParam = "query"
	}

	p := &MCPProvider{
		name:       name,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		toolName:   toolName,
		queryParam: queryParam,
		timeout:    time.Duration(timeout) * time.Second,
	}
	p.dial = p.connect
	return p
}

// Name returns the provider name
func (p *MCPProvider) Name() string {
	return p.name
}

// IsAvailable returns true if the provider is properly configured
func (p *MCPProvider) IsAvailable() bool {
	return p.apiKey != "" && p.baseURL != ""
}

func (p *MCPProvider) connect(ctx context.Context) (mcpSession, error) {
	t, err := transport.NewStreamableHTTP(p.baseURL,
		transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + p.apiKey,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create http transport: %w", err)
	}

	c := mcpclient.NewClient(t)
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "searchbridge",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	logger.L().Debug("MCP session initialized", zap.String("provider", p.name))
	return c, nil
}

// ensureSession returns the cached session, dialing a new one if needed
func (p *MCPProvider) ensureSession(ctx context.Context) (mcpSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		return p.session, nil
	}
	s, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.session = s
	return s, nil
}

// clearSession drops the cached session so the next call reconnects
func (p *MCPProvider) clearSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		_ = p.session.Close()
		p.session = nil
	}
}

// Close releases the MCP session, if one is open.
func (p *MCPProvider) Close() error {
	p.clearSession()
	return nil
}

// Search performs a search query using MCP
func (p *MCPProvider) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if !p.IsAvailable() {
		return nil, fmt.Errorf("%s provider not configured: missing API key", p.name)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// A stale session fails the first call; reconnect once.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		session, err := p.ensureSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to establish MCP session: %w", err)
		}

		req := mcp.CallToolRequest{}
		req.Params.Name = p.toolName
		req.Params.Arguments = map[string]any{p.queryParam: query}

		result, err := session.CallTool(ctx, req)
		if err != nil {
			lastErr = err
			p.clearSession()
			continue
		}

		text := contentText(result)
		if result.IsError {
			if text == "" {
				text = "unknown error"
			}
			return nil, fmt.Errorf("MCP error: %s", text)
		}
		if text == "" {
			return nil, fmt.Errorf("no content in response")
		}

		return p.parseResults(query, text)
	}

	return nil, fmt.Errorf("failed to call search tool: %w", lastErr)
}

// contentText joins the text parts of a tool result
func contentText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type mcpSearchHit struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Snippet     string `json:"snippet,omitempty"`
	Description string `json:"description,omitempty"`
}

// parseResults decodes the hit list, which some servers double-encode as a
// JSON string inside the text content.
func (p *MCPProvider) parseResults(query, text string) ([]models.SearchResult, error) {
	var first any
	if err := json.Unmarshal([]byte(text), &first); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	var hits []mcpSearchHit
	switch v := first.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &hits); err != nil {
			return nil, fmt.Errorf("failed to parse nested results: %w", err)
		}
	case []any:
		if err := json.Unmarshal([]byte(text), &hits); err != nil {
			return nil, fmt.Errorf("failed to convert results: %w", err)
		}
	default:
		return nil, fmt.Errorf("unexpected result type: %T", first)
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		url := h.Link
		if url == "" {
			url = h.URL
		}
		desc := h.Description
		if desc == "" {
			desc = h.Snippet
		}
		if desc == "" {
			desc = truncate(h.Content, 500)
		}
		results = append(results, models.SearchResult{
			Title:       h.Title,
			URL:         url,
			Description: desc,
		})
	}

	logger.L().Info("MCP search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(results)),
	)

	return results, nil
}
