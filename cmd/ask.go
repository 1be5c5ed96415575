package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/api"
)

// NewAskCmd creates the ask command: one question, one answer, no
// session state.
func NewAskCmd(a *app) *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the knowledge base a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, a, strings.Join(args, " "), showSources)
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "print cited sources under the answer")
	return cmd
}

func runAsk(cmd *cobra.Command, a *app, question string, showSources bool) error {
	resp, err := a.client.Chat(cmd.Context(), api.ChatRequest{Message: question})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Response)

	if showSources && len(resp.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for i, src := range resp.Sources {
			fmt.Fprintf(out, "  [%d] %s (%.2f)\n", i+1, src.Title, src.Similarity)
		}
	}

	a.logger.Debug("ask completed",
		"model", resp.Model,
		"provider", resp.Provider,
		"duration_seconds", resp.DurationSeconds)
	return nil
}
