package search

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/searchbridge/internal/config"
)

type fakeMCPSession struct {
	calls  []mcp.CallToolRequest
	result *mcp.CallToolResult
	err    error
	closed bool
}

func (f *fakeMCPSession) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeMCPSession) Close() error {
	f.closed = true
	return nil
}

func newTestMCPProvider(sessions ...*fakeMCPSession) (*MCPProvider, *int) {
	p := NewMCPProvider("zhipu", &config.ProviderConfig{
		BaseURL:    "http://mcp.invalid/mcp",
		APIKey:     "k",
		ToolName:   "webSearchPrime",
		QueryParam: "search_query",
	})
	dials := 0
	p.dial = func(context.Context) (mcpSession, error) {
		s := sessions[dials]
		dials++
		return s, nil
	}
	return p, &dials
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}}}
}

func TestMCPProviderSearch(t *testing.T) {
	session := &fakeMCPSession{result: textResult(`[{"title":"Go","link":"https://go.dev","content":"Go is a language"}]`)}
	p, dials := newTestMCPProvider(session)

	results, err := p.Search(context.Background(), "golang")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev", results[0].URL)
	assert.Equal(t, "Go is a language", results[0].Description)

	require.Len(t, session.calls, 1)
	assert.Equal(t, "webSearchPrime", session.calls[0].Params.Name)
	assert.Equal(t, map[string]any{"search_query": "golang"}, session.calls[0].Params.Arguments)

	_, err = p.Search(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, 1, *dials, "session is reused")
}

func TestMCPProviderDoubleEncodedResults(t *testing.T) {
	session := &fakeMCPSession{result: textResult(`"[{\"title\":\"A\",\"url\":\"https://a\",\"snippet\":\"aa\"}]"`)}
	p, _ := newTestMCPProvider(session)

	results, err := p.Search(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://a", results[0].URL)
	assert.Equal(t, "aa", results[0].Description)
}

func TestMCPProviderReconnectsOnce(t *testing.T) {
	stale := &fakeMCPSession{err: errors.New("session expired")}
	fresh := &fakeMCPSession{result: textResult(`[]`)}
	p, dials := newTestMCPProvider(stale, fresh)

	results, err := p.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 2, *dials)
	assert.True(t, stale.closed)
}

func TestMCPProviderToolError(t *testing.T) {
	res := textResult("quota exceeded")
	res.IsError = true
	p, _ := newTestMCPProvider(&fakeMCPSession{result: res})

	_, err := p.Search(context.Background(), "q")
	assert.ErrorContains(t, err, "quota exceeded")
}
