package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewFilesCmd creates the files command group.
func NewFilesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage uploaded documents",
	}
	cmd.AddCommand(
		newFilesListCmd(a),
		newFilesUploadCmd(a),
		newFilesDeleteCmd(a),
	)
	return cmd
}

func newFilesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded files",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.client.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSIZE\tCHUNKS\tSTATUS")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					f.ID, f.Name, f.Size, f.ChunkCount, f.Status)
			}
			return w.Flush()
		},
	}
}

func newFilesUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a document for chunking and embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close() //nolint:errcheck

			uploaded, err := a.client.UploadFile(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s, status %s)\n",
				uploaded.ID, uploaded.Name, uploaded.Status)
			return nil
		},
	}
}

func newFilesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an uploaded file and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
