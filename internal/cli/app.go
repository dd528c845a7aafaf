// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/morganforge/muse/internal/catalog"
	"github.com/morganforge/muse/internal/config"
	"github.com/morganforge/muse/internal/conversation"
	"github.com/morganforge/muse/internal/exchange"
	"github.com/morganforge/muse/internal/logging"
	"github.com/morganforge/muse/internal/provider"
	"github.com/morganforge/muse/internal/secret"
	"github.com/morganforge/muse/internal/session"
	"github.com/morganforge/muse/internal/settings"
	"github.com/morganforge/muse/internal/state"
	"github.com/morganforge/muse/internal/storage"
)

// historyFileName is the REPL history under the data directory.
const historyFileName = "chat_history"

// secrets holds values read once from the environment and then removed
// from it.
type secrets struct {
	Passphrase string `env:"MUSE_SECRET,unset"`
}

// =============================================================================
// APPLICATION
// =============================================================================

// App holds the services shared by every command.
type App struct {
	Config        *config.Config
	Log           *logging.Logger
	Store         storage.Store
	State         *state.Manager
	Catalog       *catalog.Catalog
	Settings      *settings.Registry
	Conversations *conversation.Store
	Transport     provider.Transport

	// Set by StartSession.
	Orchestrator *exchange.Orchestrator
	Session      *session.Coordinator

	watcher *catalog.Watcher
}

// openOptions tune openApp per command.
type openOptions struct {
	// consoleLog echoes debug logging to stderr; never set for the TUI.
	consoleLog bool
	// transport replaces the HTTP transport, for tests.
	transport provider.Transport
}

// openApp loads configuration and opens every service except the
// session. Close must be called when done.
func openApp(g *globals, opts openOptions) (a *App, err error) {
	cfg, err := config.LoadWith(g.configPath, g.apply)
	if err != nil {
		return nil, err
	}

	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logPath := cfg.LogPath()
	if cfg.Storage.Backend == storage.BackendMemory {
		logPath = ""
	}
	a.Log, err = logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Path:    logPath,
		Console: opts.consoleLog && cfg.Log.Level == zerolog.LevelDebugValue,
		Stderr:  g.streams.Err,
	})
	if err != nil {
		return nil, err
	}
	logger := a.Log.Logger

	if a.Store, err = openStore(cfg); err != nil {
		return nil, err
	}

	a.State, err = state.NewManager(a.Store, state.WithLogger(logging.Component(logger, "state")))
	if err != nil {
		return nil, err
	}

	a.Catalog = catalog.New()
	if cfg.Roster.Path != "" {
		if err := a.Catalog.LoadFile(cfg.Roster.Path); err != nil {
			return nil, fmt.Errorf("load roster: %w", err)
		}
	}

	settingsOpts := []settings.Option{settings.WithLogger(logging.Component(logger, "settings"))}
	var sec secrets
	if err := env.Parse(&sec); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if sec.Passphrase != "" {
		sealer, err := secret.New(sec.Passphrase)
		if err != nil {
			return nil, err
		}
		settingsOpts = append(settingsOpts, settings.WithSealer(sealer))
	}
	if a.Settings, err = settings.NewRegistry(a.Store, settingsOpts...); err != nil {
		return nil, err
	}

	a.Conversations, err = conversation.New(a.Store, a.Catalog, a.State, logging.Component(logger, "conversations"))
	if err != nil {
		return nil, err
	}

	a.Transport = opts.transport
	if a.Transport == nil {
		a.Transport = provider.NewHTTPTransport(provider.Config{
			ConnectTimeout:    cfg.Network.ConnectTimeout.Duration,
			IdleTimeout:       cfg.Network.IdleTimeout.Duration,
			MaxRetries:        cfg.Network.MaxRetries,
			RequestsPerMinute: cfg.Network.RequestsPerMinute,
		}, logging.Component(logger, "transport"))
	}

	logger.Debug().
		Str("storage", cfg.Storage.Backend).
		Int("characters", a.Catalog.Len()).
		Str("key", settings.KeyFingerprint(a.Settings.Get().APIKey)).
		Msg("application opened")
	return a, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Backend == storage.BackendSQLite {
		return storage.NewSQLiteStore(cfg.SQLitePath())
	}
	return storage.Open(cfg.Storage.Backend, cfg.DataDir)
}

// StartSession creates the orchestrator and coordinator that report to r.
func (a *App) StartSession(r exchange.Renderer) *session.Coordinator {
	logger := a.Log.Logger
	a.Orchestrator = exchange.New(a.Conversations, a.Settings, a.Catalog, a.Transport, r,
		logging.Component(logger, "exchange"))
	a.Orchestrator.SetObserver(exchange.ObserverFunc(func(from, to exchange.Status) {
		logger.Trace().Stringer("from", from).Stringer("to", to).Msg("exchange transition")
	}))
	a.Session = session.New(a.Conversations, a.Settings, a.Orchestrator, r,
		logging.Component(logger, "session"))
	return a.Session
}

// WatchRoster reloads the roster file on change when enabled in the
// config. onReload runs after each successful reload.
func (a *App) WatchRoster(onReload func()) error {
	if !a.Config.Roster.Watch || a.Config.Roster.Path == "" {
		return nil
	}
	w, err := catalog.NewWatcher(a.Catalog, a.Config.Roster.Path, a.Log.Logger)
	if err != nil {
		return fmt.Errorf("watch roster: %w", err)
	}
	w.OnReload = func(err error) {
		if err == nil && onReload != nil {
			onReload()
		}
	}
	w.Start()
	a.watcher = w
	return nil
}

// HistoryFile returns the REPL history path, or "" for ephemeral runs.
func (a *App) HistoryFile() string {
	if a.Config.Storage.Backend == storage.BackendMemory {
		return ""
	}
	return filepath.Join(a.Config.DataDir, historyFileName)
}

// Close waits for a running exchange and releases every resource. Callers
// cancel the exchange context first.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Session != nil {
		a.Session.Wait()
	}
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Log != nil {
		errs = append(errs, a.Log.Close())
	}
	return errors.Join(errs...)
}
