package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/agent"
	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/llm"
	"github.com/young1lin/searchbridge/internal/search"
	"github.com/young1lin/searchbridge/internal/tool"
	"github.com/young1lin/searchbridge/pkg/logger"
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask the model a question, searching the web when it needs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			var err error
			if question, err = prompt("Enter your question: "); err != nil {
				return err
			}
		}
		if question == "" {
			return errors.New("no question given")
		}

		model := mustModel()

		invoker, closeInvoker := newInvoker()
		defer closeInvoker()

		ctx, stop := signalContext()
		defer stop()

		logger.Info("asking", zap.String("model", model.Name()), zap.String("tool_mode", cfg.Tool.Mode))
		answer := agent.NewOrchestrator(&cfg.Agent, model, invoker).Answer(ctx, question, nil)
		fmt.Println(answer)
		return nil
	},
}

// mustModel exits with status 1 when the active provider cannot be built,
// most commonly because its API key is missing.
func mustModel() llm.Model {
	model, err := llm.New(cfg)
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
	return model
}

// newInvoker builds the configured invoker. Local mode owns a search
// manager that the returned func closes.
func newInvoker() (tool.Invoker, func()) {
	if strings.EqualFold(cfg.Tool.Mode, "local") {
		manager := search.NewManager(&cfg.WebSearch)
		return tool.New(&cfg.Tool, manager), manager.Close
	}
	return tool.New(&cfg.Tool, nil), func() {}
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
