package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/api"
)

// NewKnowledgeCmd creates the knowledge command group.
func NewKnowledgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage knowledge base entries",
	}
	cmd.AddCommand(
		newKnowledgeListCmd(a),
		newKnowledgeCreateCmd(a),
		newKnowledgeUpdateCmd(a),
		newKnowledgeDeleteCmd(a),
	)
	return cmd
}

func newKnowledgeListCmd(a *app) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.client.ListKnowledge(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entries.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tUPDATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.ID, e.Title, e.Category, e.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "filter entries by search query")
	return cmd
}

func newKnowledgeCreateCmd(a *app) *cobra.Command {
	var title, content, category string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a knowledge entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := a.client.CreateKnowledge(cmd.Context(), api.KnowledgeEntry{
				Title:    title,
				Content:  content,
				Category: category,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "entry title (required)")
	cmd.Flags().StringVar(&content, "content", "", "entry content (required)")
	cmd.Flags().StringVar(&category, "category", "", "entry category")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func newKnowledgeUpdateCmd(a *app) *cobra.Command {
	var title, content, category string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updated, err := a.client.UpdateKnowledge(cmd.Context(), api.KnowledgeEntry{
				ID:       args[0],
				Title:    title,
				Content:  content,
				Category: category,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", updated.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&content, "content", "", "new content")
	cmd.Flags().StringVar(&category, "category", "", "new category")
	return cmd
}

func newKnowledgeDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteKnowledge(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
