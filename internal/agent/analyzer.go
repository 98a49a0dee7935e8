// Package agent runs the model/tool conversation loop.
package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/llm"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/pkg/logger"
)

// paramsSchema is stricter than the declaration sent to models: the query
// must contain a non-space character.
const paramsSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1, "pattern": "\\S"}
  },
  "required": ["query"]
}`

var (
	triggerPattern = regexp.MustCompile(`(?i)fetch_web_content`)
	queryPattern   = regexp.MustCompile(`(?i)query:([^\r\n]*)`)
	fencedPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
)

// Analyzer decides whether a model response asks for fetch_web_content.
type Analyzer struct {
	schema *jsonschema.Schema
}

func NewAnalyzer() *Analyzer {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("fetch_web_content.json", strings.NewReader(paramsSchema)); err != nil {
		panic(err)
	}
	return &Analyzer{schema: c.MustCompile("fetch_web_content.json")}
}

// Detect returns the requested tool call, trying native function calls,
// then a JSON object in the text, then the trigger-phrase heuristic.
func (a *Analyzer) Detect(resp *llm.Response) (models.ToolCall, bool) {
	if resp == nil {
		return models.ToolCall{}, false
	}

	for _, call := range resp.ToolCalls {
		if call.Name != models.ToolFetchWebContent {
			logger.Debug("ignoring native call to unknown tool", zap.String("tool", call.Name))
			continue
		}
		if a.valid(call.Parameters) {
			return normalize(call), true
		}
	}

	if call, ok := a.detectJSON(resp.Text); ok {
		return call, true
	}

	return DetectText(resp.Text)
}

// structuredCall is the JSON shape a model may emit instead of a native call.
type structuredCall struct {
	Tool       string         `json:"tool"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
	Arguments  map[string]any `json:"arguments"`
}

func (a *Analyzer) detectJSON(text string) (models.ToolCall, bool) {
	for _, candidate := range jsonCandidates(text) {
		var sc structuredCall
		if err := json.Unmarshal([]byte(candidate), &sc); err != nil {
			continue
		}
		name := sc.Tool
		if name == "" {
			name = sc.Name
		}
		params := sc.Parameters
		if params == nil {
			params = sc.Arguments
		}
		if name != models.ToolFetchWebContent || !a.valid(params) {
			continue
		}
		return normalize(models.ToolCall{Name: name, Parameters: params}), true
	}
	return models.ToolCall{}, false
}

// jsonCandidates yields fenced blocks first, then the outermost braces.
func jsonCandidates(text string) []string {
	var out []string
	for _, m := range fencedPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		out = append(out, text[start:end+1])
	}
	return out
}

func (a *Analyzer) valid(params map[string]any) bool {
	if params == nil {
		return false
	}
	// The validator wants the generic JSON shapes, so round-trip.
	raw, err := json.Marshal(params)
	if err != nil {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	if err := a.schema.Validate(v); err != nil {
		logger.Debug("tool parameters rejected", zap.Error(err))
		return false
	}
	return true
}

func normalize(call models.ToolCall) models.ToolCall {
	return models.NewSearchCall(call.Query())
}

// DetectText is the plain-text fallback: the response must mention
// fetch_web_content and carry "query:" followed by a non-empty line.
func DetectText(text string) (models.ToolCall, bool) {
	if !triggerPattern.MatchString(text) {
		return models.ToolCall{}, false
	}
	m := queryPattern.FindStringSubmatch(text)
	if m == nil {
		logger.Debug("tool trigger without query", zap.String("text", text))
		return models.ToolCall{}, false
	}
	query := strings.TrimSpace(m[1])
	if query == "" {
		logger.Debug("tool trigger with empty query", zap.String("text", text))
		return models.ToolCall{}, false
	}
	return models.NewSearchCall(query), true
}
