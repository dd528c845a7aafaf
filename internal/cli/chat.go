// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morganforge/muse/internal/exchange"
	"github.com/morganforge/muse/internal/export"
	"github.com/morganforge/muse/internal/session"
	"github.com/morganforge/muse/internal/settings"
	"github.com/morganforge/muse/internal/ui/console"
	"github.com/morganforge/muse/internal/ui/styles"
)

// lineReader reads one line of input per prompt.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// scanReader reads piped input. Prompts are not shown.
type scanReader struct {
	scanner *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	return &scanReader{scanner: bufio.NewScanner(r)}
}

func (r *scanReader) ReadLine(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }

var slashCommands = []string{
	"/help", "/switch", "/bio", "/new", "/history", "/theme",
	"/settings", "/status", "/export", "/quit",
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [character]",
		Short: "Chat in line mode",
		Long: `Start a line-mode conversation. Without an argument the last active
character is resumed. Type /help for commands; Ctrl+C cancels a reply
in progress and Ctrl+D exits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), g, args)
		},
	}
}

// chatSession is one REPL run.
type chatSession struct {
	app        *App
	coord      *session.Coordinator
	render     *console.Renderer
	reader     lineReader
	out        io.Writer
	interrupts <-chan os.Signal
}

func runChat(ctx context.Context, g *globals, args []string) error {
	app, err := g.open(openOptions{consoleLog: true})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		app.Close()
	}()

	out := g.streams.Out
	theme := styles.NewTheme(app.State.Snapshot().Theme, out)
	render := console.NewRenderer(out, theme, app.Catalog, console.Options{
		Markdown: app.Config.UI.Markdown,
		WordWrap: app.Config.UI.WordWrap,
	})
	coord := app.StartSession(render)
	if err := app.WatchRoster(nil); err != nil {
		app.Log.Warn().Err(err).Msg("roster hot reload disabled")
	}

	var reader lineReader
	interrupts := make(chan os.Signal, 1)
	switch {
	case g.lineReader != nil:
		reader = g.lineReader(app.HistoryFile())
	case isTerminalInput(g.streams.In):
		lr := console.NewLineReader(app.HistoryFile())
		lr.SetCompleter(slashCommands)
		reader = lr
		signal.Notify(interrupts, os.Interrupt)
		defer signal.Stop(interrupts)
	default:
		reader = newScanReader(g.streams.In)
	}
	defer reader.Close()

	s := &chatSession{
		app:        app,
		coord:      coord,
		render:     render,
		reader:     reader,
		out:        out,
		interrupts: interrupts,
	}

	if len(args) == 1 {
		if err := s.switchTo(args[0]); err != nil {
			return err
		}
	} else {
		s.welcome()
	}
	return s.loop(ctx)
}

func (s *chatSession) loop(ctx context.Context) error {
	for {
		input, err := s.reader.ReadLine(s.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, console.ErrInterrupted) {
				s.exitSummary()
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			keepGoing, err := s.command(input)
			if err != nil {
				s.render.Notice(err)
			}
			if !keepGoing {
				s.exitSummary()
				return nil
			}
			continue
		}
		s.send(ctx, input)
	}
}

func (s *chatSession) prompt() string {
	if id, ok := s.coord.Active(); ok {
		return id + "> "
	}
	return "muse> "
}

// send starts an exchange and blocks until it ends. An interrupt cancels
// it.
func (s *chatSession) send(ctx context.Context, input string) {
	id, ok := s.coord.Active()
	if !ok {
		s.render.Notice(errors.New("no character selected; use /switch <id>"))
		return
	}

	h, err := s.coord.TrySend(ctx, id, input)
	switch {
	case errors.Is(err, settings.ErrMissingCredential), errors.Is(err, settings.ErrMissingEndpoint):
		// Already reported by the coordinator.
		return
	case err != nil:
		s.render.Notice(err)
		return
	}

	select {
	case <-h.Done():
	case <-s.interrupts:
		h.Cancel()
		<-h.Done()
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command. It returns false when the session should
// end.
func (s *chatSession) command(input string) (bool, error) {
	parts := strings.Fields(input)
	name := strings.ToLower(parts[0])
	args := parts[1:]

	switch name {
	case "/help", "/h", "/?", "/":
		s.help()
	case "/switch", "/s":
		if len(args) != 1 {
			return true, usageError("usage: /switch <character>")
		}
		return true, s.switchTo(args[0])
	case "/bio":
		id, ok := s.coord.Active()
		if len(args) == 1 {
			id, ok = args[0], true
		}
		ch, found := s.app.Catalog.Lookup(id)
		if !ok || !found {
			return true, usageError("usage: /bio <character>")
		}
		s.render.Bio(ch)
	case "/new":
		if err := s.coord.Reset(); err != nil {
			return true, err
		}
		s.welcome()
	case "/history":
		id, ok := s.coord.Active()
		if !ok {
			return true, usageError("no character selected; use /switch <id>")
		}
		s.render.Conversation(id, s.app.Conversations.Conversation(id))
	case "/theme":
		theme, err := s.app.State.ToggleTheme()
		if err != nil {
			return true, err
		}
		s.render.SetTheme(styles.NewTheme(theme, s.out))
		s.render.Info("Theme: " + theme)
	case "/settings":
		return true, s.settings(args)
	case "/status":
		s.status()
	case "/export":
		return true, s.export(args)
	case "/quit", "/q", "/exit":
		return false, nil
	default:
		return true, usageError(fmt.Sprintf("unknown command: %s (type /help for commands)", name))
	}
	return true, nil
}

func (s *chatSession) switchTo(id string) error {
	if err := s.coord.SwitchCharacter(id); err != nil {
		return err
	}
	ch, _ := s.app.Catalog.Lookup(id)
	s.render.Info(fmt.Sprintf("Talking with %s, %s", ch.Name, ch.Title))
	s.render.Conversation(id, s.app.Conversations.Conversation(id))
	return nil
}

func (s *chatSession) settings(args []string) error {
	if len(args) == 0 {
		writeSettings(s.out, s.app.Settings)
		return nil
	}
	if len(args) != 2 {
		return usageError("usage: /settings [provider|url|key|model <value>]")
	}
	var p settings.Partial
	value := args[1]
	switch strings.ToLower(args[0]) {
	case "provider":
		provider, err := settings.ParseProvider(value)
		if err != nil {
			return err
		}
		p.Provider = &provider
	case "url":
		p.CustomURL = &value
	case "key":
		p.APIKey = &value
	case "model":
		p.Model = &value
	default:
		return usageError("unknown setting: " + args[0])
	}
	if err := s.app.Settings.Update(p); err != nil {
		return err
	}
	s.render.Info("Settings saved")
	return nil
}

func (s *chatSession) export(args []string) error {
	id, ok := s.coord.Active()
	if !ok {
		return usageError("no character selected; use /switch <id>")
	}
	format := "md"
	if len(args) > 0 {
		format = args[0]
	}
	path := ""
	if len(args) > 1 {
		path = args[1]
	}
	written, err := exportConversation(s.app, id, format, path, s.app.State.Snapshot().Theme)
	if err != nil {
		return err
	}
	s.render.Info("Exported to " + written)
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (s *chatSession) welcome() {
	active, _ := s.coord.Active()
	s.render.Roster(s.app.Catalog.List(), active)
	if active != "" {
		s.render.Info(fmt.Sprintf("Resuming %s. Type a message, or /switch <id> to change character.", active))
		return
	}
	s.render.Info("Choose a character with /switch <id>. Type /help for commands.")
}

func (s *chatSession) help() {
	lines := []struct{ cmd, desc string }{
		{"/switch <id>", "Talk with another character"},
		{"/bio [id]", "Show a character card"},
		{"/history", "Show the conversation"},
		{"/new", "Back to the character list"},
		{"/theme", "Toggle dark and light theme"},
		{"/settings [field value]", "Show or change API settings"},
		{"/export [md|json|html] [file]", "Export the conversation"},
		{"/status", "Show session statistics"},
		{"/quit", "Exit"},
	}
	fmt.Fprintln(s.out)
	for _, l := range lines {
		fmt.Fprintf(s.out, "  %-30s %s\n", l.cmd, l.desc)
	}
	fmt.Fprintln(s.out)
	s.render.Info("Ctrl+C cancels a reply in progress, Ctrl+D exits")
}

func (s *chatSession) status() {
	st := s.coord.Status()
	fmt.Fprintf(s.out, "  %-12s %s\n", "Session:", st.SessionID)
	fmt.Fprintf(s.out, "  %-12s %s\n", "Duration:", session.FormatDuration(st.Duration))
	fmt.Fprintf(s.out, "  %-12s %d\n", "Exchanges:", st.Exchanges)
	if st.Exchanges > 0 {
		fmt.Fprintf(s.out, "  %-12s %s\n", "Last reply:", st.LastStatus)
	}
}

func (s *chatSession) exitSummary() {
	st := s.coord.Status()
	s.render.Info(fmt.Sprintf("Session ended after %s, %d replies", session.FormatDuration(st.Duration), st.Exchanges))
}

// exportConversation writes id's conversation and returns the path.
func exportConversation(app *App, id, format, path, theme string) (string, error) {
	ch, ok := app.Catalog.Lookup(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", exchange.ErrUnknownCharacter, id)
	}
	opts := export.DefaultOptions()
	opts.Theme = theme
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return "", err
	}
	doc := export.NewDocument(ch, app.Conversations.Conversation(id))
	return export.ToFile(doc, exporter, path)
}
