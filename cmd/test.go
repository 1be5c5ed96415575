package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/bench"
)

// NewTestCmd creates the test command: the retrieval harness from the
// command line. With a query argument it runs one ad-hoc retrieval;
// without, it runs the full scenario list sequentially.
func NewTestCmd(a *app) *cobra.Command {
	var (
		exportPath string
		extra      []string
	)

	cmd := &cobra.Command{
		Use:   "test [query]",
		Short: "Run retrieval test scenarios against the backend",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, a, strings.Join(args, " "), exportPath, extra)
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "write results to a JSON file after the run")
	cmd.Flags().StringArrayVar(&extra, "add", nil, "extra query scenario for this run (repeatable)")
	return cmd
}

func runTest(cmd *cobra.Command, a *app, query, exportPath string, extra []string) error {
	runner, err := bench.NewRunner(a.client, a.cfg.BenchInterval, a.logger)
	if err != nil {
		return err
	}
	for _, q := range extra {
		if _, err := runner.AddScenario(q, q); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if strings.TrimSpace(query) != "" {
		res, err := runner.RunOne(ctx, query)
		if err != nil {
			return err
		}
		printResult(out, query, res)
		return nil
	}

	scenarios := runner.Scenarios()
	err = runner.RunAll(ctx, func(completed, total int) {
		fmt.Fprintf(out, "[%d/%d] done\n", completed, total)
	})
	if err != nil {
		return err
	}

	results := runner.Results()
	fmt.Fprintln(out)
	for _, sc := range scenarios {
		printResult(out, sc.Name, results[sc.ID])
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, runner.Aggregates().String())

	if exportPath != "" {
		f, err := os.Create(exportPath)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		defer f.Close() //nolint:errcheck
		if err := runner.Export(f); err != nil {
			return err
		}
		fmt.Fprintf(out, "exported to %s\n", exportPath)
	}
	return nil
}

func printResult(out io.Writer, label string, res bench.Result) {
	if res.Status == bench.StatusOK {
		fmt.Fprintf(out, "ok    %-30s %d hits, top %.2f, %.2fs\n",
			label, res.ResultCount, res.TopScore, res.DurationSeconds)
		return
	}
	fmt.Fprintf(out, "FAIL  %-30s %s\n", label, res.Error)
}
