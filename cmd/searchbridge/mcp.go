package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/mcpserver"
	"github.com/young1lin/searchbridge/internal/search"
	"github.com/young1lin/searchbridge/internal/tool"
	"github.com/young1lin/searchbridge/pkg/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve fetch_web_content as an MCP tool over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := search.NewManager(&cfg.WebSearch)
		defer manager.Close()

		logger.Info("serving MCP over stdio",
			zap.String("version", Version),
			zap.Strings("providers", manager.ProviderNames()),
		)
		return mcpserver.New(tool.NewLocal(manager), Version).ServeStdio()
	},
}
