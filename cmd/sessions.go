package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/transcript"
)

// NewSessionsCmd creates the sessions command group for local chat
// transcripts.
func NewSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage local chat sessions",
	}
	cmd.AddCommand(
		newSessionsListCmd(a),
		newSessionsNewCmd(a),
		newSessionsClearCmd(a),
	)
	return cmd
}

func newSessionsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := transcript.NewFileStore(a.cfg.SessionsDir())
			if err != nil {
				return err
			}

			ids, err := store.List()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}

			current, err := transcript.LoadCurrentSessionID(a.cfg.StateDir)
			if err != nil {
				current = nil
			}

			out := cmd.OutOrStdout()
			for _, id := range ids {
				marker := " "
				if current != nil && *current == id {
					marker = "*"
				}
				messages, err := store.Load(id)
				if err != nil {
					fmt.Fprintf(out, "%s %s (unreadable: %v)\n", marker, id, err)
					continue
				}
				fmt.Fprintf(out, "%s %s (%d messages)\n", marker, id, len(messages))
			}
			return nil
		},
	}
}

func newSessionsNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a fresh session and make it current",
		RunE: func(cmd *cobra.Command, args []string) error {
			id := uuid.New()
			if err := transcript.SaveCurrentSessionID(a.cfg.StateDir, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current session is now %s\n", id)
			return nil
		},
	}
}

func newSessionsClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the current session's transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := transcript.LoadCurrentSessionID(a.cfg.StateDir)
			if err != nil {
				return err
			}
			if current == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No current session.")
				return nil
			}

			store, err := transcript.NewFileStore(a.cfg.SessionsDir())
			if err != nil {
				return err
			}
			if err := store.Delete(*current); err != nil {
				return err
			}
			if err := transcript.ClearCurrentSessionID(a.cfg.StateDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", *current)
			return nil
		},
	}
}
