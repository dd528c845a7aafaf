// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/morganforge/muse/internal/config"
	"github.com/morganforge/muse/internal/storage"
	"github.com/morganforge/muse/internal/ui/console"
	"github.com/morganforge/muse/internal/ui/tui"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Streams are the standard streams a command uses.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// globals are the persistent flags plus the wiring shared by every
// command.
type globals struct {
	streams Streams

	configPath string
	dataDir    string
	storage    string
	ephemeral  bool
	logLevel   string

	// openOverride replaces openApp options, for tests.
	openOverride func(*openOptions)
	// lineReader replaces the terminal line editor, for tests.
	lineReader func(historyFile string) lineReader
}

// apply lays the flags over the loaded configuration.
func (g *globals) apply(cfg *config.Config) {
	if g.dataDir != "" {
		cfg.DataDir = g.dataDir
	}
	if g.storage != "" {
		cfg.Storage.Backend = g.storage
	}
	if g.ephemeral {
		cfg.Storage.Backend = storage.BackendMemory
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
}

func (g *globals) open(opts openOptions) (*App, error) {
	if g.openOverride != nil {
		g.openOverride(&opts)
	}
	return openApp(g, opts)
}

// NewRootCommand builds the command tree.
func NewRootCommand(streams Streams) *cobra.Command {
	g := &globals{streams: streams}
	return newRootCommand(g)
}

func newRootCommand(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:   "muse",
		Short: "Chat with historical writers in your terminal",
		Long: `muse lets you pick a persona from a roster of historical writers and
talk with them through any OpenAI-compatible chat completions API.
Replies stream in as they are written, and every conversation is kept
between sessions.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(g.streams.Out) {
				return cmd.Help()
			}
			return runTUI(cmd.Context(), g)
		},
	}
	root.SetIn(g.streams.In)
	root.SetOut(g.streams.Out)
	root.SetErr(g.streams.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "config file (default ~/.muse/config.toml)")
	flags.StringVar(&g.dataDir, "data-dir", "", "directory for conversations, settings and logs")
	flags.StringVar(&g.storage, "storage", "", "storage backend: file, sqlite or memory")
	flags.BoolVar(&g.ephemeral, "ephemeral", false, "keep everything in memory for this run")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		newChatCommand(g),
		newCharactersCommand(g),
		newSettingsCommand(g),
		newExportCommand(g),
		newResetCommand(g),
	)
	return root
}

// Execute runs the command tree with the process streams and returns the
// exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	streams := StdStreams()
	if err := NewRootCommand(streams).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(streams.Err, "Error: %v\n", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(ctx context.Context, g *globals) error {
	app, err := g.open(openOptions{})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		app.Close()
	}()

	renderer := tui.NewRenderer()
	coord := app.StartSession(renderer)
	if err := app.WatchRoster(renderer.CatalogReloaded); err != nil {
		app.Log.Warn().Err(err).Msg("roster hot reload disabled")
	}

	deps := tui.Deps{
		Catalog:       app.Catalog,
		Conversations: app.Conversations,
		Session:       coord,
		Settings:      app.Settings,
		State:         app.State,
		Logger:        app.Log.With().Str("component", "tui").Logger(),
	}
	return tui.Run(ctx, deps, tui.Options{
		Markdown: app.Config.UI.Markdown,
		WordWrap: app.Config.UI.WordWrap,
		Output:   g.streams.Out,
	}, renderer)
}

// =============================================================================
// HELPERS
// =============================================================================

func isTerminal(w io.Writer) bool {
	return console.IsTerminal(w)
}

func isTerminalInput(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
