package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/api"
)

// NewPromptsCmd creates the prompts command group.
func NewPromptsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage system prompts",
	}
	cmd.AddCommand(
		newPromptsListCmd(a),
		newPromptsCreateCmd(a),
		newPromptsUpdateCmd(a),
		newPromptsActivateCmd(a),
		newPromptsDeleteCmd(a),
	)
	return cmd
}

func newPromptsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts, err := a.client.ListPrompts(cmd.Context())
			if err != nil {
				return err
			}
			if len(prompts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No prompts.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE\tUPDATED")
			for _, p := range prompts {
				active := ""
				if p.Active {
					active = "●"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					p.ID, p.Name, active, p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

// promptContent resolves prompt text from --content or --file.
func promptContent(content, file string) (string, error) {
	if content != "" {
		return content, nil
	}
	if file == "" {
		return "", fmt.Errorf("either --content or --file is required")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}
	return string(data), nil
}

func newPromptsCreateCmd(a *app) *cobra.Command {
	var name, content, file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a new system prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptContent(content, file)
			if err != nil {
				return err
			}
			created, err := a.client.CreatePrompt(cmd.Context(), name, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "prompt name (required)")
	cmd.Flags().StringVar(&content, "content", "", "prompt text")
	cmd.Flags().StringVar(&file, "file", "", "read prompt text from a file")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newPromptsUpdateCmd(a *app) *cobra.Command {
	var name, content, file string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a stored prompt's name or text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptContent(content, file)
			if err != nil {
				return err
			}
			updated, err := a.client.UpdatePrompt(cmd.Context(), api.SystemPrompt{
				ID:      args[0],
				Name:    name,
				Content: text,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", updated.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new prompt name")
	cmd.Flags().StringVar(&content, "content", "", "new prompt text")
	cmd.Flags().StringVar(&file, "file", "", "read new prompt text from a file")
	return cmd
}

func newPromptsActivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Make a prompt the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.ActivatePrompt(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activated %s\n", args[0])
			return nil
		},
	}
}

func newPromptsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeletePrompt(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
