package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// NewVersionCmd creates the version command (factory pattern).
func NewVersionCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and configuration information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ragctl %s\n", AppVersion)
			fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Configuration:")
			// Config.String masks the API token.
			fmt.Fprintf(out, "  %s\n", cfg.String())
			return nil
		},
	}
}
