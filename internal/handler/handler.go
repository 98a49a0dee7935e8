package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/internal/tool"
	"github.com/young1lin/searchbridge/pkg/logger"
)

const maxRequestBody = 1 << 20

// SearchService is what the tool service needs from the search layer.
type SearchService interface {
	tool.Searcher
	ProviderNames() []string
	DefaultProvider() string
}

// ToolHandler serves the fetch_web_content tool over HTTP.
type ToolHandler struct {
	search      SearchService
	local       *tool.Local
	llmProvider string
	version     string
}

// NewToolHandler creates the tool service handler.
func NewToolHandler(cfg *config.Config, search SearchService, version string) *ToolHandler {
	return &ToolHandler{
		search:      search,
		local:       tool.NewLocal(search),
		llmProvider: cfg.LLM.Provider,
		version:     version,
	}
}

// ServeHTTP handles all HTTP requests
func (h *ToolHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	traceID := extractTraceID(r)
	if traceID == "" {
		traceID = generateTraceID()
	}
	r = r.WithContext(logger.ContextWithTraceID(r.Context(), traceID))

	log := logger.WithTraceID(traceID)
	log.Info("request received",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("X-Trace-ID", traceID)

	switch r.URL.Path {
	case "/health":
		h.handleHealth(w, r)
	case "/":
		h.handleIndex(w, r)
	case "/providers":
		h.handleProviders(w, r)
	case "/tool_call":
		h.handleToolCall(w, r, log)
	default:
		h.handleError(w, http.StatusNotFound, "Endpoint not found", log)
	}

	log.Info("request completed",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

func (h *ToolHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ToolHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":         "searchbridge",
		"llm_provider": h.llmProvider,
		"status":       "running",
		"version":      h.version,
	})
}

func (h *ToolHandler) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": h.search.ProviderNames(),
		"default":   h.search.DefaultProvider(),
	})
}

// handleToolCall runs POST /tool_call. Request problems are 400s; a missing
// query is a 200 carrying an error payload.
func (h *ToolHandler) handleToolCall(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.handleError(w, http.StatusMethodNotAllowed, "Method not allowed", log)
		return
	}

	req, ok := decodeToolCall(r)
	if !ok {
		h.handleError(w, http.StatusBadRequest, "Invalid request", log)
		return
	}
	if req.Name != models.ToolFetchWebContent {
		log.Warn("unknown tool requested", zap.String("tool", req.Name))
		h.handleError(w, http.StatusBadRequest, tool.ReasonUnknownTool, log)
		return
	}

	call := models.ToolCall{Name: req.Name, Parameters: req.Parameters}
	log.Info("tool call", zap.String("tool", call.Name), zap.String("query", call.Query()))

	resp := h.local.Invoke(r.Context(), call)
	if !resp.Failed() {
		log.Info("tool call completed", zap.Int("results", len(resp.Results())))
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeToolCall accepts only a non-empty JSON object whose fields have the
// expected types.
func decodeToolCall(r *http.Request) (models.ToolCallRequest, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return models.ToolCallRequest{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		return models.ToolCallRequest{}, false
	}

	var req models.ToolCallRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return models.ToolCallRequest{}, false
	}
	return req, true
}

func (h *ToolHandler) handleError(w http.ResponseWriter, status int, message string, log *zap.Logger) {
	log.Warn("request error",
		zap.String("message", message),
		zap.Int("status", status),
	)
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// extractTraceID extracts trace ID from various possible headers
func extractTraceID(r *http.Request) string {
	headers := []string{
		"X-Trace-ID",
		"X-Request-ID",
		"X-Correlation-ID",
		"Trace-ID",
		"Request-ID",
	}

	for _, header := range headers {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}

	return ""
}

// generateTraceID generates a new trace ID
func generateTraceID() string {
	return uuid.New().String()[:16]
}
