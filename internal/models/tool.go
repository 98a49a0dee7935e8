package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ToolFetchWebContent is the only tool the bridge knows how to dispatch.
const ToolFetchWebContent = "fetch_web_content"

// ToolCall is a request, parsed from model output, to run a tool.
type ToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// NewSearchCall builds a fetch_web_content call for query.
func NewSearchCall(query string) ToolCall {
	return ToolCall{
		Name:       ToolFetchWebContent,
		Parameters: map[string]any{"query": query},
	}
}

// Query returns the trimmed "query" parameter, or "" when absent or not a string.
func (c ToolCall) Query() string {
	q, _ := c.Parameters["query"].(string)
	return strings.TrimSpace(q)
}

// ToolCallRequest is the POST /tool_call body.
type ToolCallRequest struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// ToolResponse is either a list of results or an error, never both.
// An empty result list is a successful lookup that found nothing.
type ToolResponse struct {
	results []SearchResult
	err     string
}

// ToolOK wraps results in a successful response. A nil slice is kept as empty.
func ToolOK(results []SearchResult) ToolResponse {
	if results == nil {
		results = []SearchResult{}
	}
	return ToolResponse{results: results}
}

// ToolError builds a failed response.
func ToolError(reason string) ToolResponse {
	if reason == "" {
		reason = "unknown error"
	}
	return ToolResponse{err: reason}
}

// Failed reports whether the tool call errored.
func (r ToolResponse) Failed() bool { return r.err != "" }

// Error returns the failure reason, or "" on success.
func (r ToolResponse) Error() string { return r.err }

// Results returns the results of a successful call; nil when failed.
func (r ToolResponse) Results() []SearchResult {
	if r.Failed() {
		return nil
	}
	return r.results
}

// Empty reports a successful call that returned no results.
func (r ToolResponse) Empty() bool { return !r.Failed() && len(r.results) == 0 }

// First returns the first result, if any.
func (r ToolResponse) First() (SearchResult, bool) {
	if r.Failed() || len(r.results) == 0 {
		return SearchResult{}, false
	}
	return r.results[0], true
}

type toolResponseWire struct {
	Results *[]SearchResult `json:"results,omitempty"`
	Error   *string         `json:"error,omitempty"`
}

func (r ToolResponse) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(toolResponseWire{Error: &r.err})
	}
	results := r.results
	if results == nil {
		results = []SearchResult{}
	}
	return json.Marshal(toolResponseWire{Results: &results})
}

func (r *ToolResponse) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errors.New("tool response: null body")
	}
	var w toolResponseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Error != nil && w.Results != nil:
		return errors.New("tool response: both results and error set")
	case w.Error != nil:
		*r = ToolError(*w.Error)
	case w.Results != nil:
		*r = ToolOK(*w.Results)
	default:
		return errors.New("tool response: neither results nor error set")
	}
	return nil
}
