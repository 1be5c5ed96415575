package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewConfessionsCmd creates the confessions moderation command group.
func NewConfessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confessions",
		Short: "Moderate anonymous confessions",
	}
	cmd.AddCommand(
		newConfessionsListCmd(a),
		newConfessionsShowCmd(a),
		newConfessionsReplyCmd(a),
		newConfessionsDeleteCmd(a),
		newConfessionsStatsCmd(a),
	)
	return cmd
}

func newConfessionsListCmd(a *app) *cobra.Command {
	var pending, replied bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List confessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *bool
			switch {
			case pending && replied:
				return fmt.Errorf("--pending and --replied are mutually exclusive")
			case pending:
				f := false
				filter = &f
			case replied:
				f := true
				filter = &f
			}

			confessions, err := a.client.ListConfessions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(confessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No confessions.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tMESSAGE")
			for _, c := range confessions {
				status := "pending"
				if c.Replied {
					status = "replied"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					c.ID, status, c.CreatedAt.Format("2006-01-02 15:04"), firstLine(c.Message, 60))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "only confessions awaiting a reply")
	cmd.Flags().BoolVar(&replied, "replied", false, "only replied confessions")
	return cmd
}

func newConfessionsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one confession with its reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client.GetConfession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:      %s\n", c.ID)
			fmt.Fprintf(out, "Created: %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Message: %s\n", c.Message)
			if c.Replied {
				fmt.Fprintf(out, "Reply:   %s\n", c.Reply)
				if c.RepliedAt != nil {
					fmt.Fprintf(out, "Replied: %s\n", c.RepliedAt.Format("2006-01-02 15:04:05"))
				}
			} else {
				fmt.Fprintln(out, "Reply:   (pending)")
			}
			return nil
		},
	}
}

func newConfessionsReplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reply <id> <text>",
		Short: "Reply to a confession",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply := strings.Join(args[1:], " ")
			replied, err := a.client.ReplyConfession(cmd.Context(), args[0], reply)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replied to %s\n", replied.ID)
			return nil
		},
	}
}

func newConfessionsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a confession",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteConfession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newConfessionsStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show moderation counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.client.ConfessionStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total %d, replied %d, pending %d\n",
				stats.Total, stats.Replied, stats.Pending)
			return nil
		},
	}
}

// firstLine truncates a message to one short display line.
func firstLine(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n-1]) + "…"
	}
	return s
}
