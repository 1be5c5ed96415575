// Package cmd contains the ragctl command tree.
//
// Design: following the pattern used by kubectl, hugo, and other standard
// Go CLI tools, all application logic is contained in the cmd package,
// leaving main.go as a minimal entry point. Each command is built by a
// factory (NewXxxCmd) receiving its dependencies explicitly.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/api"
	"github.com/koopa0/ragctl/internal/bench"
	"github.com/koopa0/ragctl/internal/chat"
	"github.com/koopa0/ragctl/internal/config"
	"github.com/koopa0/ragctl/internal/log"
	"github.com/koopa0/ragctl/internal/transcript"
	"github.com/koopa0/ragctl/internal/tui"
)

// app bundles the dependencies every command needs.
type app struct {
	cfg    *config.Config
	client *api.Client
	logger log.Logger
}

// Execute is the main entry point for ragctl. It initializes logging and
// configuration, builds the backend client, and routes to the requested
// command. Running with no arguments opens the dashboard.
func Execute() error {
	logger := initLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client, err := api.New(cfg.BaseURL, cfg.APIToken, cfg.RequestTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	a := &app{cfg: cfg, client: client, logger: logger}
	return NewRootCmd(a).Execute()
}

// initLogger initializes the structured logger.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
//
// Logs go to stderr; stdout is reserved for command output.
func initLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{Level: level})
}

// NewRootCmd creates the root command (factory pattern).
func NewRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragctl",
		Short: "Admin console for the RAG knowledge backend",
		Long: `ragctl administers a RAG knowledge backend: knowledge entries,
uploaded files, users, system prompts and confession moderation, plus a
chat tester and a retrieval test harness.

Running ragctl with no arguments opens the interactive dashboard.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, a)
		},
	}

	rootCmd.AddCommand(
		NewAskCmd(a),
		NewChatCmd(a),
		NewTestCmd(a),
		NewKnowledgeCmd(a),
		NewFilesCmd(a),
		NewUsersCmd(a),
		NewPromptsCmd(a),
		NewConfessionsCmd(a),
		NewSystemCmd(a),
		NewSessionsCmd(a),
		NewVersionCmd(a.cfg),
	)
	return rootCmd
}

// runDashboard starts the full-screen TUI.
func runDashboard(cmd *cobra.Command, a *app) error {
	session, err := resumeSession(a, false)
	if err != nil {
		return err
	}

	runner, err := bench.NewRunner(a.client, a.cfg.BenchInterval, a.logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	model, err := tui.New(ctx, a.client, session, runner, a.logger)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// resumeSession opens the current chat session, creating one when none
// exists or forceNew is set. The current-session pointer survives across
// invocations so `ragctl chat` picks up where the dashboard left off.
func resumeSession(a *app, forceNew bool) (*chat.Session, error) {
	store, err := transcript.NewFileStore(a.cfg.SessionsDir())
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	var id uuid.UUID
	if !forceNew {
		current, err := transcript.LoadCurrentSessionID(a.cfg.StateDir)
		if err != nil {
			a.logger.Warn("unreadable session pointer, starting fresh", "error", err)
		} else if current != nil {
			id = *current
		}
	}
	if id == uuid.Nil {
		id = uuid.New()
		if err := transcript.SaveCurrentSessionID(a.cfg.StateDir, id); err != nil {
			return nil, fmt.Errorf("save session pointer: %w", err)
		}
	}

	return chat.NewSession(id, a.client, store, a.cfg.MaxHistoryTurns, a.logger)
}
