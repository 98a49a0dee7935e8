package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/young1lin/searchbridge/internal/agent"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/internal/search"
)

var extract bool

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Run fetch_web_content directly and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := strings.TrimSpace(strings.Join(args, " "))
		if input == "" {
			var err error
			if input, err = prompt("Search for: "); err != nil {
				return err
			}
		}
		if input == "" {
			return errors.New("no query given")
		}

		ctx, stop := signalContext()
		defer stop()

		queries := []string{input}
		if extract {
			if found := agent.ExtractQueries(ctx, mustModel(), input); len(found) > 0 {
				queries = found
			}
		}

		invoker, closeInvoker := newInvoker()
		defer closeInvoker()

		for i, q := range queries {
			if i > 0 {
				fmt.Println()
			}
			resp := invoker.Invoke(ctx, models.NewSearchCall(q))
			if resp.Failed() {
				fmt.Printf("Search for %q failed: %s\n", q, resp.Error())
				continue
			}
			fmt.Println(search.FormatResults(q, resp.Results()))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVar(&extract, "extract", false, "ask the model to split the input into search queries first")
}
