package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/pkg/logger"
)

const anthropicVersion = "2023-06-01"

// Anthropic talks to the Claude Messages API.
type Anthropic struct {
	model     string
	apiKey    string
	baseURL   string
	maxTokens int
	client    *http.Client
}

func NewAnthropic(mc config.ModelConfig) *Anthropic {
	baseURL := strings.TrimRight(mc.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	maxTokens := mc.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{
		model:     mc.Model,
		apiKey:    mc.APIKey,
		baseURL:   baseURL,
		maxTokens: maxTokens,
		client:    newHTTPClient(mc),
	}
}

func (a *Anthropic) Name() string { return "Claude" }

func (a *Anthropic) Generate(ctx context.Context, req Request) (*Response, error) {
	ar := anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	for _, t := range req.Tools {
		ar.Tools = append(ar.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}

	body, err := json.Marshal(ar)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := doJSONRequest(ctx, a.client, a.baseURL+"/v1/messages", body, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	})
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	out := &Response{}
	var text []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				Name:       block.Name,
				Parameters: decodeArgs(block.Input),
			})
		}
	}
	out.Text = strings.Join(text, "")

	logger.FromContext(ctx).Debug("anthropic generate completed",
		zap.String("model", a.model),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("tool_calls", len(out.ToolCalls)),
	)
	return out, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}
