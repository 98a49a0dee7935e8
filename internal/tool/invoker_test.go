package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
)

type searcherFunc func(ctx context.Context, query string) []models.SearchResult

func (f searcherFunc) Search(ctx context.Context, query string) []models.SearchResult {
	return f(ctx, query)
}

func TestLocalInvoke(t *testing.T) {
	var queries []string
	l := NewLocal(searcherFunc(func(_ context.Context, q string) []models.SearchResult {
		queries = append(queries, q)
		if q == "nothing" {
			return nil
		}
		return []models.SearchResult{{Title: q}}
	}))

	resp := l.Invoke(context.Background(), models.NewSearchCall("  go  "))
	require.False(t, resp.Failed())
	first, _ := resp.First()
	assert.Equal(t, "go", first.Title)

	resp = l.Invoke(context.Background(), models.NewSearchCall("nothing"))
	assert.True(t, resp.Empty())

	resp = l.Invoke(context.Background(), models.NewSearchCall(""))
	assert.Equal(t, "No query provided", resp.Error())

	resp = l.Invoke(context.Background(), models.ToolCall{Name: "other", Parameters: map[string]any{"query": "x"}})
	assert.Equal(t, "Unknown tool name", resp.Error())

	assert.Equal(t, []string{"go", "nothing"}, queries)
}

func TestNewSelectsMode(t *testing.T) {
	s := searcherFunc(func(context.Context, string) []models.SearchResult { return nil })

	assert.IsType(t, &Local{}, New(&config.ToolConfig{Mode: "local"}, s))
	assert.IsType(t, &Client{}, New(&config.ToolConfig{Mode: "remote"}, s))
	assert.IsType(t, &Client{}, New(&config.ToolConfig{Mode: "local"}, nil))
}
