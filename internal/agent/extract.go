package agent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/llm"
	"github.com/young1lin/searchbridge/pkg/logger"
)

const extractPrompt = "Extract search queries from this user request. " +
	"Respond with a JSON like: {\"queries\": [\"query1\", \"query2\"]}\n\nUser: "

// ExtractQueries asks the model to split message into search queries.
// Any model or parse failure yields nil.
func ExtractQueries(ctx context.Context, model llm.Model, message string) []string {
	log := logger.FromContext(ctx)

	resp, err := model.Generate(ctx, llm.Request{Prompt: extractPrompt + message})
	if err != nil {
		log.Warn("query extraction failed", zap.String("model", model.Name()), zap.Error(err))
		return nil
	}

	raw := strings.TrimSpace(resp.Text)
	if m := fencedPattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warn("query extraction returned invalid JSON", zap.Error(err), zap.String("text", resp.Text))
		return nil
	}

	var queries []string
	for _, q := range parsed.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries
}
