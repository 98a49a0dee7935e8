// Package tool dispatches fetch_web_content calls, either over HTTP to the
// tool service or in-process against the search manager.
package tool

import (
	"context"
	"strings"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
)

// Error reasons surfaced in ToolResponse payloads.
const (
	ReasonUnknownTool = "Unknown tool name"
	ReasonNoQuery     = "No query provided"
)

// Invoker runs a tool call. Failures come back as error-shaped responses;
// Invoke itself never fails.
type Invoker interface {
	Invoke(ctx context.Context, call models.ToolCall) models.ToolResponse
}

// Searcher is the lookup the local invoker delegates to.
type Searcher interface {
	Search(ctx context.Context, query string) []models.SearchResult
}

// New picks the invoker configured by cfg.Mode. The local mode needs a searcher.
func New(cfg *config.ToolConfig, searcher Searcher, opts ...Option) Invoker {
	if strings.EqualFold(cfg.Mode, "local") && searcher != nil {
		return NewLocal(searcher)
	}
	return NewClient(cfg, opts...)
}

// Local invokes the search directly, without a network hop.
type Local struct {
	searcher Searcher
}

func NewLocal(searcher Searcher) *Local {
	return &Local{searcher: searcher}
}

func (l *Local) Invoke(ctx context.Context, call models.ToolCall) models.ToolResponse {
	if call.Name != models.ToolFetchWebContent {
		return models.ToolError(ReasonUnknownTool)
	}
	query := call.Query()
	if query == "" {
		return models.ToolError(ReasonNoQuery)
	}
	return models.ToolOK(l.searcher.Search(ctx, query))
}
