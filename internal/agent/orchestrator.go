package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/llm"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/internal/tool"
	"github.com/young1lin/searchbridge/pkg/logger"
)

const (
	defaultMaxToolRounds = 3
	noDataReturned       = "No data returned"
)

// Orchestrator sends a message to the model, runs any tool the model asks
// for and feeds the result back until the model answers in plain text.
type Orchestrator struct {
	model     llm.Model
	invoker   tool.Invoker
	analyzer  *Analyzer
	maxRounds int
}

func NewOrchestrator(cfg *config.AgentConfig, model llm.Model, invoker tool.Invoker) *Orchestrator {
	maxRounds := defaultMaxToolRounds
	if cfg != nil && cfg.MaxToolRounds > 0 {
		maxRounds = cfg.MaxToolRounds
	}
	return &Orchestrator{
		model:     model,
		invoker:   invoker,
		analyzer:  NewAnalyzer(),
		maxRounds: maxRounds,
	}
}

// Answer returns the model's final text. Failures are reported in the
// returned string, never as an error.
func (o *Orchestrator) Answer(ctx context.Context, message string, history []string) string {
	log := logger.FromContext(ctx).With(
		zap.String("run_id", uuid.NewString()),
		zap.String("model", o.model.Name()),
	)

	history = append([]string(nil), history...)
	tools := []llm.ToolDefinition{llm.FetchWebContentTool()}

	for round := 0; ; round++ {
		prompt := strings.Join(append(append([]string(nil), history...), message), "\n")

		log.Debug("sending prompt", zap.Int("round", round), zap.Int("prompt_len", len(prompt)))
		resp, err := o.model.Generate(ctx, llm.Request{Prompt: prompt, Tools: tools})
		if err != nil {
			log.Warn("model call failed", zap.Int("round", round), zap.Error(err))
			return fmt.Sprintf("Error during %s API call: %v", o.model.Name(), err)
		}
		text := strings.TrimSpace(resp.Text)

		call, ok := o.analyzer.Detect(resp)
		if !ok {
			log.Info("answer ready", zap.Int("rounds", round))
			return text
		}

		if round >= o.maxRounds {
			log.Warn("tool loop exceeded", zap.Int("max_rounds", o.maxRounds))
			return fmt.Sprintf("Error: tool loop exceeded after %d rounds", o.maxRounds)
		}

		log.Info("tool call detected", zap.Int("round", round), zap.String("query", call.Query()))
		result := o.invoker.Invoke(ctx, call)
		if result.Failed() {
			log.Warn("tool call failed", zap.String("reason", result.Error()))
		} else {
			log.Debug("tool call succeeded", zap.Int("results", len(result.Results())))
		}

		history = append(history, message, text)
		message = SummaryPrompt(message, result)
	}
}

// SummaryPrompt asks the model to summarize what the tool returned for message.
func SummaryPrompt(message string, result models.ToolResponse) string {
	info := noDataReturned
	if first, ok := result.First(); ok {
		info = first.Description
	}
	return fmt.Sprintf("\nGiven the user query: \"%s\" and the following information from the tool:\n\n%s\n\nPlease summarize the response and stop calling tools.\n",
		message, info)
}
