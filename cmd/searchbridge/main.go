package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile  string
	provider string
	logLevel string
	showVer  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "searchbridge",
	Short: "Connect chat models to live web search",
	Long: `searchbridge lets a chat model answer questions with fresh web data.
The model asks for fetch_web_content, searchbridge runs the search through
the tool service and hands the findings back for a final answer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if showVer {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if provider != "" {
			cfg.LLM.Provider = provider
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVer {
			fmt.Printf("searchbridge %s (built %s)\n", Version, BuildDate)
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "model provider (overrides llm.provider)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVarP(&showVer, "version", "v", false, "show version")

	rootCmd.AddCommand(askCmd, serveCmd, searchCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
