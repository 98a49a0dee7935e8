package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/pkg/logger"
)

// Gemini talks to the Google Generative Language REST API.
type Gemini struct {
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGemini(mc config.ModelConfig) *Gemini {
	baseURL := strings.TrimRight(mc.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	model := mc.Model
	if model == "" {
		model = "gemini-1.5-pro"
	}
	return &Gemini{
		model:   model,
		apiKey:  mc.APIKey,
		baseURL: baseURL,
		client:  newHTTPClient(mc),
	}
}

func (g *Gemini) Name() string { return "Gemini" }

func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(toGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))

	respBody, err := doJSONRequest(ctx, g.client, endpoint, body, nil)
	if err != nil {
		return nil, err
	}

	var gr geminiResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	out := &Response{}
	var text []string
	for _, part := range gr.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				Name:       part.FunctionCall.Name,
				Parameters: decodeArgs(part.FunctionCall.Args),
			})
		case part.Text != "":
			text = append(text, part.Text)
		}
	}
	out.Text = strings.Join(text, "")

	logger.FromContext(ctx).Debug("gemini generate completed",
		zap.String("model", g.model),
		zap.Int("tool_calls", len(out.ToolCalls)),
	)
	return out, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Tools    []geminiTool    `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func toGeminiRequest(req Request) geminiRequest {
	gr := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	if len(req.Tools) > 0 {
		decls := make([]geminiFuncDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiFuncDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		gr.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	return gr
}
