// Package mcpserver exposes fetch_web_content as an MCP tool over stdio.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/internal/tool"
	"github.com/young1lin/searchbridge/pkg/logger"
)

type Server struct {
	invoker tool.Invoker
	mcp     *server.MCPServer
}

// New registers fetch_web_content backed by invoker.
func New(invoker tool.Invoker, version string) *Server {
	s := &Server{
		invoker: invoker,
		mcp:     server.NewMCPServer("searchbridge", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool(models.ToolFetchWebContent,
		mcp.WithDescription("Search the web and return matching results as JSON."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look up on the web"),
		),
	), s.handleFetch)

	return s
}

// ServeStdio blocks serving MCP on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	traceID := uuid.NewString()
	ctx = logger.ContextWithTraceID(ctx, traceID)
	log := logger.WithTraceID(traceID)

	call := models.NewSearchCall(req.GetString("query", ""))
	log.Info("mcp tool call", zap.String("query", call.Query()))

	resp := s.invoker.Invoke(ctx, call)
	body, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if resp.Failed() {
		log.Warn("mcp tool call failed", zap.String("reason", resp.Error()))
		return mcp.NewToolResultError(string(body)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
