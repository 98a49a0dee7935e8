package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/llm"
	"github.com/young1lin/searchbridge/internal/models"
)

// scriptedModel replays responses in order and then keeps repeating the last one.
type scriptedModel struct {
	responses []*llm.Response
	err       error
	prompts   []string
	tools     [][]llm.ToolDefinition
}

func (m *scriptedModel) Name() string { return "Fake" }

func (m *scriptedModel) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.prompts = append(m.prompts, req.Prompt)
	m.tools = append(m.tools, req.Tools)
	if m.err != nil {
		return nil, m.err
	}
	i := len(m.prompts) - 1
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

type fakeInvoker struct {
	resp  models.ToolResponse
	calls []models.ToolCall
}

func (f *fakeInvoker) Invoke(_ context.Context, call models.ToolCall) models.ToolResponse {
	f.calls = append(f.calls, call)
	return f.resp
}

func text(s string) *llm.Response { return &llm.Response{Text: s} }

func TestDetectText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		ok    bool
	}{
		{"trigger and query", "Please call fetch_web_content. Query: capital of France", "capital of France", true},
		{"case insensitive", "FETCH_WEB_CONTENT\nQUERY:   weather in Oslo  \nthanks", "weather in Oslo", true},
		{"no trigger", "The capital of France is Paris.", "", false},
		{"query without trigger", "query: something", "", false},
		{"trigger without query", "I would use fetch_web_content here.", "", false},
		{"empty query", "fetch_web_content query:   \nmore text", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := DetectText(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, models.ToolFetchWebContent, call.Name)
				assert.Equal(t, tt.query, call.Query())
			}
		})
	}
}

func TestAnalyzerDetect(t *testing.T) {
	a := NewAnalyzer()

	t.Run("native call", func(t *testing.T) {
		call, ok := a.Detect(&llm.Response{ToolCalls: []models.ToolCall{models.NewSearchCall(" go modules ")}})
		require.True(t, ok)
		assert.Equal(t, "go modules", call.Query())
	})

	t.Run("native call to unknown tool is ignored", func(t *testing.T) {
		_, ok := a.Detect(&llm.Response{ToolCalls: []models.ToolCall{{Name: "rm_rf", Parameters: map[string]any{"query": "x"}}}})
		assert.False(t, ok)
	})

	t.Run("invalid native params fall through to text", func(t *testing.T) {
		call, ok := a.Detect(&llm.Response{
			Text:      "fetch_web_content query: from text",
			ToolCalls: []models.ToolCall{{Name: models.ToolFetchWebContent, Parameters: map[string]any{"query": "   "}}},
		})
		require.True(t, ok)
		assert.Equal(t, "from text", call.Query())
	})

	t.Run("non-string query rejected", func(t *testing.T) {
		_, ok := a.Detect(&llm.Response{ToolCalls: []models.ToolCall{{Name: models.ToolFetchWebContent, Parameters: map[string]any{"query": 42}}}})
		assert.False(t, ok)
	})

	t.Run("fenced json", func(t *testing.T) {
		resp := text("Sure.\n```json\n{\"tool\": \"fetch_web_content\", \"parameters\": {\"query\": \"rust vs go\"}}\n```")
		call, ok := a.Detect(resp)
		require.True(t, ok)
		assert.Equal(t, "rust vs go", call.Query())
	})

	t.Run("bare json with name and arguments", func(t *testing.T) {
		call, ok := a.Detect(text(`{"name":"fetch_web_content","arguments":{"query":"zap logger"}}`))
		require.True(t, ok)
		assert.Equal(t, "zap logger", call.Query())
	})

	t.Run("json for another tool", func(t *testing.T) {
		_, ok := a.Detect(text(`{"tool":"calculator","parameters":{"query":"1+1"}}`))
		assert.False(t, ok)
	})

	t.Run("plain answer", func(t *testing.T) {
		_, ok := a.Detect(text("Paris."))
		assert.False(t, ok)
	})

	t.Run("nil response", func(t *testing.T) {
		_, ok := a.Detect(nil)
		assert.False(t, ok)
	})
}

func TestAnswerWithoutTool(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{text("  The capital of France is Paris.  ")}}
	inv := &fakeInvoker{}
	o := NewOrchestrator(&config.AgentConfig{}, model, inv)

	got := o.Answer(context.Background(), "What is the capital of France?", nil)
	assert.Equal(t, "The capital of France is Paris.", got)
	assert.Empty(t, inv.calls)
	require.Len(t, model.prompts, 1)
	assert.Equal(t, "What is the capital of France?", model.prompts[0])
	require.Len(t, model.tools[0], 1)
	assert.Equal(t, models.ToolFetchWebContent, model.tools[0][0].Name)
}

func TestAnswerWithToolRound(t *testing.T) {
	first := "I need to use fetch_web_content. Query: capital of France"
	model := &scriptedModel{responses: []*llm.Response{
		text(first),
		text("Paris is the capital of France."),
	}}
	inv := &fakeInvoker{resp: models.ToolOK([]models.SearchResult{{
		Title:       "Paris",
		URL:         "https://en.wikipedia.org/wiki/Paris",
		Description: "Paris is the capital and largest city of France.",
	}})}
	o := NewOrchestrator(&config.AgentConfig{MaxToolRounds: 3}, model, inv)

	got := o.Answer(context.Background(), "What is the capital of France?", nil)
	assert.Equal(t, "Paris is the capital of France.", got)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, "capital of France", inv.calls[0].Query())

	require.Len(t, model.prompts, 2)
	want := "What is the capital of France?\n" + first + "\n" +
		SummaryPrompt("What is the capital of France?", inv.resp)
	assert.Equal(t, want, model.prompts[1])
	assert.Contains(t, model.prompts[1], `Given the user query: "What is the capital of France?"`)
	assert.Contains(t, model.prompts[1], "Paris is the capital and largest city of France.")
}

func TestAnswerSummarizesMissingData(t *testing.T) {
	for name, resp := range map[string]models.ToolResponse{
		"empty":  models.ToolOK(nil),
		"failed": models.ToolError("MCP server not available"),
	} {
		t.Run(name, func(t *testing.T) {
			model := &scriptedModel{responses: []*llm.Response{
				text("fetch_web_content query: unknown thing"),
				text("I could not find anything."),
			}}
			o := NewOrchestrator(nil, model, &fakeInvoker{resp: resp})

			got := o.Answer(context.Background(), "what is the unknown thing?", nil)
			assert.Equal(t, "I could not find anything.", got)
			require.Len(t, model.prompts, 2)
			assert.Contains(t, model.prompts[1], "\n\nNo data returned\n\n")
		})
	}
}

func TestAnswerModelError(t *testing.T) {
	model := &scriptedModel{err: errors.New("API error 401: bad key")}
	got := NewOrchestrator(nil, model, &fakeInvoker{}).Answer(context.Background(), "hi", nil)
	assert.Equal(t, "Error during Fake API call: API error 401: bad key", got)
}

func TestAnswerToolLoopCapped(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{text("fetch_web_content query: again")}}
	inv := &fakeInvoker{resp: models.ToolOK(nil)}
	o := NewOrchestrator(&config.AgentConfig{MaxToolRounds: 2}, model, inv)

	got := o.Answer(context.Background(), "loop forever", nil)
	assert.Equal(t, "Error: tool loop exceeded after 2 rounds", got)
	assert.Len(t, inv.calls, 2)
	assert.Len(t, model.prompts, 3)
}

func TestAnswerKeepsCallerHistory(t *testing.T) {
	history := make([]string, 1, 8)
	history[0] = "earlier turn"
	model := &scriptedModel{responses: []*llm.Response{
		text("fetch_web_content query: x"),
		text("done"),
	}}
	o := NewOrchestrator(nil, model, &fakeInvoker{resp: models.ToolOK(nil)})

	assert.Equal(t, "done", o.Answer(context.Background(), "question", history))
	assert.Equal(t, "earlier turn\nquestion", model.prompts[0])
	assert.Equal(t, []string{"earlier turn"}, history)
	assert.Equal(t, "", history[:2][1], "caller's backing array untouched")
}

func TestExtractQueries(t *testing.T) {
	tests := []struct {
		name string
		resp *llm.Response
		err  error
		want []string
	}{
		{"bare", text(`{"queries": ["go 1.25 release", " "]}`), nil, []string{"go 1.25 release"}},
		{"fenced", text("```json\n{\"queries\": [\"a\", \"b\"]}\n```"), nil, []string{"a", "b"}},
		{"not json", text("sorry, I can't"), nil, nil},
		{"model error", nil, errors.New("boom"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedModel{responses: []*llm.Response{tt.resp}, err: tt.err}
			got := ExtractQueries(context.Background(), model, "news about go and rust")
			assert.Equal(t, tt.want, got)
			require.Len(t, model.prompts, 1)
			assert.Contains(t, model.prompts[0], "User: news about go and rust")
			assert.Empty(t, model.tools[0])
		})
	}
}
