// Package llm holds the chat model backends the orchestrator talks to.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
)

const defaultTimeout = 60 * time.Second

// ToolDefinition declares a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema of the arguments object
}

// Request is a single-turn prompt plus the tools the model may call.
type Request struct {
	Prompt string
	Tools  []ToolDefinition
}

// Response is the model's text and any native tool calls it made.
type Response struct {
	Text      string
	ToolCalls []models.ToolCall
}

// Model is a chat backend.
type Model interface {
	// Name is the display name used in error messages, e.g. "Gemini".
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// FetchWebContentSchema describes the arguments of fetch_web_content.
var FetchWebContentSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "What to look up on the web"
    }
  },
  "required": ["query"]
}`)

// FetchWebContentTool is the tool declaration sent with every prompt.
func FetchWebContentTool() ToolDefinition {
	return ToolDefinition{
		Name:        models.ToolFetchWebContent,
		Description: "Search the web and return a short description of the best match for the query.",
		Parameters:  FetchWebContentSchema,
	}
}

// New builds the model selected by cfg.LLM.Provider. A missing API key
// is reported as config.ErrMissingAPIKey.
func New(cfg *config.Config) (Model, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	name, mc, err := cfg.ActiveModel()
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(mc.Type) {
	case "gemini":
		return NewGemini(mc), nil
	case "anthropic", "claude":
		return NewAnthropic(mc), nil
	case "openai":
		return NewOpenAI(mc), nil
	default:
		return nil, fmt.Errorf("%w: %q has unsupported type %q", config.ErrUnknownProvider, name, mc.Type)
	}
}

func newHTTPClient(mc config.ModelConfig) *http.Client {
	timeout := defaultTimeout
	if mc.Timeout > 0 {
		timeout = time.Duration(mc.Timeout) * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// decodeArgs turns raw JSON arguments into a parameter map. Unparseable
// arguments yield a nil map, which later fails schema validation.
func decodeArgs(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil
	}
	return params
}
