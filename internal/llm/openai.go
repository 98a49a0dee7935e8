package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/pkg/logger"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(mc config.ModelConfig) *OpenAI {
	cc := openai.DefaultConfig(mc.APIKey)
	if mc.BaseURL != "" {
		cc.BaseURL = mc.BaseURL
	}
	cc.HTTPClient = newHTTPClient(mc)

	return &OpenAI{
		client: openai.NewClientWithConfig(cc),
		model:  mc.Model,
	}
}

func (o *OpenAI) Name() string { return "OpenAI" }

func (o *OpenAI) Generate(ctx context.Context, req Request) (*Response, error) {
	ccr := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	for _, t := range req.Tools {
		ccr.Tools = append(ccr.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if len(ccr.Tools) > 0 {
		ccr.ToolChoice = "auto"
	}

	resp, err := o.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	out := &Response{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			Name:       tc.Function.Name,
			Parameters: decodeArgs([]byte(tc.Function.Arguments)),
		})
	}

	logger.FromContext(ctx).Debug("openai generate completed",
		zap.String("model", o.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Int("tool_calls", len(out.ToolCalls)),
	)
	return out, nil
}
