package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/handler"
	"github.com/young1lin/searchbridge/internal/search"
	"github.com/young1lin/searchbridge/pkg/logger"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fetch_web_content tool service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port > 0 {
			cfg.Server.Port = port
		}

		logger.Info("starting tool service",
			zap.String("version", Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)

		manager := search.NewManager(&cfg.WebSearch)
		defer manager.Close()
		if !manager.HasAvailableProvider() {
			logger.Warn("no search provider available, every lookup will return no results")
		}

		return startServer(handler.NewToolHandler(cfg, manager, Version), manager.DefaultProvider())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
}

func startServer(h http.Handler, defaultProvider string) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf(`
searchbridge %s
  Tool service: http://%s:%d/tool_call
  Health:       http://%s:%d/health
  Search:       %s

`, Version, cfg.Server.Host, cfg.Server.Port, cfg.Server.Host, cfg.Server.Port, defaultProvider)

	ctx, stop := signalContext()
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
