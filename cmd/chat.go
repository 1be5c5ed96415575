package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/chat"
)

// NewChatCmd creates the chat command: a plain line-based conversation
// loop for terminals where the full dashboard is unwanted (CI, scripts,
// dumb terminals).
func NewChatCmd(a *app) *cobra.Command {
	var startNew bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the knowledge base in a plain terminal loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatLoop(cmd, a, startNew)
		},
	}
	cmd.Flags().BoolVar(&startNew, "new", false, "start a fresh session instead of resuming")
	return cmd
}

func runChatLoop(cmd *cobra.Command, a *app, startNew bool) error {
	session, err := resumeSession(a, startNew)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s (%d messages). /quit to exit.\n\n",
		session.ID(), len(session.Messages()))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\nBye.")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := session.Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "clear failed: %v\n", err)
			} else {
				fmt.Fprintln(out, "(cleared)")
			}
			continue
		}

		reply, err := session.Send(cmd.Context(), input)
		if err != nil {
			if errors.Is(err, chat.ErrEmptyMessage) {
				continue
			}
			// The session keeps the user message; retry is just re-asking.
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Fprintln(out, reply.Content)
		for i, src := range reply.Sources {
			fmt.Fprintf(out, "  [%d] %s (%.2f)\n", i+1, src.Title, src.Similarity)
		}
		fmt.Fprintln(out)
	}
}
