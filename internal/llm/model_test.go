package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
)

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		assert.Equal(t, "hello", body.Contents[0].Parts[0].Text)
		require.Len(t, body.Tools, 1)
		assert.Equal(t, models.ToolFetchWebContent, body.Tools[0].FunctionDeclarations[0].Name)

		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[
			{"text":"Let me look. "},
			{"functionCall":{"name":"fetch_web_content","args":{"query":"capital of France"}}}
		]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(config.ModelConfig{Model: "gemini-test", APIKey: "g-key", BaseURL: srv.URL})
	resp, err := g.Generate(context.Background(), Request{Prompt: "hello", Tools: []ToolDefinition{FetchWebContentTool()}})
	require.NoError(t, err)

	assert.Equal(t, "Let me look. ", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "capital of France", resp.ToolCalls[0].Query())
	assert.Equal(t, "Gemini", g.Name())
}

func TestGeminiAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	g := NewGemini(config.ModelConfig{Model: "m", APIKey: "bad", BaseURL: srv.URL})
	_, err := g.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 403")
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "c-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body.Model)
		assert.Equal(t, 1024, body.MaxTokens)
		require.Len(t, body.Tools, 1)
		assert.JSONEq(t, string(FetchWebContentSchema), string(body.Tools[0].InputSchema))

		w.Write([]byte(`{"content":[
			{"type":"text","text":"Searching."},
			{"type":"tool_use","id":"toolu_1","name":"fetch_web_content","input":{"query":"go generics"}}
		],"stop_reason":"tool_use"}`))
	}))
	defer srv.Close()

	a := NewAnthropic(config.ModelConfig{Model: "claude-test", APIKey: "c-key", BaseURL: srv.URL})
	resp, err := a.Generate(context.Background(), Request{Prompt: "hi", Tools: []ToolDefinition{FetchWebContentTool()}})
	require.NoError(t, err)

	assert.Equal(t, "Searching.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, models.ToolFetchWebContent, resp.ToolCalls[0].Name)
	assert.Equal(t, "go generics", resp.ToolCalls[0].Query())
	assert.Equal(t, "Claude", a.Name())
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer o-key", r.Header.Get("Authorization"))

		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), `"tool_choice":"auto"`)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-test","choices":[{"index":0,
			"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function",
			"function":{"name":"fetch_web_content","arguments":"{\"query\":\"weather in Oslo\"}"}}]},
			"finish_reason":"tool_calls"}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	o := NewOpenAI(config.ModelConfig{Model: "gpt-test", APIKey: "o-key", BaseURL: srv.URL})
	resp, err := o.Generate(context.Background(), Request{Prompt: "hi", Tools: []ToolDefinition{FetchWebContentTool()}})
	require.NoError(t, err)

	assert.Empty(t, resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "weather in Oslo", resp.ToolCalls[0].Query())
}

func TestOpenAIPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.NotContains(t, string(raw), "tool_choice")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Paris."}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(config.ModelConfig{Model: "gpt-test", APIKey: "o-key", BaseURL: srv.URL})
	resp, err := o.Generate(context.Background(), Request{Prompt: "capital of France?"})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", resp.Text)
	assert.Empty(t, resp.ToolCalls)
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		Provider: "claude",
		Providers: map[string]config.ModelConfig{
			"claude": {Type: "anthropic", APIKey: "k"},
			"gemini": {Type: "gemini"},
			"local":  {Type: "llamafile", APIKey: "k"},
		},
	}}

	m, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, m)

	cfg.LLM.Provider = "gemini"
	_, err = New(cfg)
	assert.True(t, errors.Is(err, config.ErrMissingAPIKey))

	cfg.LLM.Provider = "local"
	_, err = New(cfg)
	assert.True(t, errors.Is(err, config.ErrUnknownProvider))
}

func TestDecodeArgs(t *testing.T) {
	assert.Nil(t, decodeArgs(nil))
	assert.Nil(t, decodeArgs([]byte(`not json`)))
	assert.Equal(t, map[string]any{"query": "x"}, decodeArgs([]byte(`{"query":"x"}`)))
}
