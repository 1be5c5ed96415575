package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/api"
)

// NewSystemCmd creates the system command group: read-only views of the
// backend's configuration and health documents.
func NewSystemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Inspect backend configuration and health",
	}
	cmd.AddCommand(
		newSystemConfigCmd(a),
		newSystemHealthCmd(a),
	)
	return cmd
}

func newSystemConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the backend's configuration snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.client.ConfigSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			return printSnapshot(cmd, snap)
		},
	}
}

func newSystemHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the backend's detailed health document",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.client.HealthDetailed(cmd.Context())
			if err != nil {
				return err
			}
			return printSnapshot(cmd, snap)
		},
	}
}

func printSnapshot(cmd *cobra.Command, snap api.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
