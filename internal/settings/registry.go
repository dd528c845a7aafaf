// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/morganforge/muse/internal/secret"
	"github.com/morganforge/muse/internal/storage"
)

// envOverrides are applied on top of the persisted settings. Empty values
// leave the persisted field in effect.
type envOverrides struct {
	Provider  string `env:"MUSE_PROVIDER"`
	CustomURL string `env:"MUSE_CUSTOM_URL"`
	APIKey    string `env:"MUSE_API_KEY"`
	Model     string `env:"MUSE_MODEL"`
}

func (o envOverrides) partial() Partial {
	var p Partial
	if o.Provider != "" {
		p.Provider = String(o.Provider)
	}
	if o.CustomURL != "" {
		p.CustomURL = String(o.CustomURL)
	}
	if o.APIKey != "" {
		p.APIKey = String(o.APIKey)
	}
	if o.Model != "" {
		p.Model = String(o.Model)
	}
	return p
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry owns the current settings. Reads return copies; updates are
// persisted before they become visible.
type Registry struct {
	mu        sync.RWMutex
	store     storage.Store
	sealer    *secret.Sealer
	logger    zerolog.Logger
	environ   map[string]string
	overrides Partial

	saved     Settings // what the store holds (unsealed)
	effective Settings // saved + environment overrides

	// unopened keeps a sealed key that could not be opened so that
	// unrelated updates do not erase it.
	unopened string
}

// Option configures a Registry.
type Option func(*Registry)

// WithSealer seals the API key at rest.
func WithSealer(s *secret.Sealer) Option {
	return func(r *Registry) { r.sealer = s }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithEnvironment replaces the process environment as the source of
// MUSE_* overrides.
func WithEnvironment(environ map[string]string) Option {
	return func(r *Registry) { r.environ = environ }
}

// NewRegistry loads settings from store. A corrupt record is logged and
// replaced by the defaults.
func NewRegistry(store storage.Store, opts ...Option) (*Registry, error) {
	r := &Registry{
		store:  store,
		logger: zerolog.Nop(),
		saved:  Defaults(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.loadOverrides(); err != nil {
		return nil, err
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	r.effective = r.overrides.Apply(r.saved)
	return r, nil
}

func (r *Registry) loadOverrides() error {
	var o envOverrides
	var err error
	if r.environ != nil {
		err = env.ParseWithOptions(&o, env.Options{Environment: r.environ})
	} else {
		err = env.Parse(&o)
	}
	if err != nil {
		return fmt.Errorf("parse settings env: %w", err)
	}
	r.overrides = o.partial()
	return nil
}

func (r *Registry) load() error {
	stored := Defaults()
	found, err := r.store.Get(storage.KeySettings, &stored)
	if errors.Is(err, storage.ErrCorrupt) {
		r.logger.Warn().Err(err).Msg("settings record is corrupt, using defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !found {
		return nil
	}

	stored.Provider = normalizeProvider(stored.Provider)
	if secret.IsSealed(stored.APIKey) {
		raw := stored.APIKey
		stored.APIKey = ""
		if r.sealer == nil {
			r.unopened = raw
			r.logger.Warn().Msg("API key is sealed but no passphrase is configured")
		} else if key, err := r.sealer.Open(raw); err != nil {
			r.unopened = raw
			r.logger.Warn().Err(err).Msg("could not open sealed API key")
		} else {
			stored.APIKey = key
		}
	}
	r.saved = stored
	return nil
}

// Get returns a copy of the effective settings.
func (r *Registry) Get() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.effective
}

// Saved returns a copy of the persisted settings without environment
// overrides.
func (r *Registry) Saved() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saved
}

// Update applies p and persists the result. On a persistence error the
// previous settings stay in effect.
func (r *Registry) Update(p Partial) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := p.Apply(r.saved)
	unopened := r.unopened
	if p.APIKey != nil {
		unopened = ""
	}

	record := next
	switch {
	case record.APIKey == "" && unopened != "":
		record.APIKey = unopened
	case record.APIKey != "" && r.sealer != nil:
		sealed, err := r.sealer.Seal(record.APIKey)
		if err != nil {
			return fmt.Errorf("seal API key: %w", err)
		}
		record.APIKey = sealed
	}

	if err := r.store.Set(storage.KeySettings, record); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	r.saved = next
	r.unopened = unopened
	r.effective = r.overrides.Apply(next)

	masked := next.Masked()
	r.logger.Info().
		Str("provider", masked.Provider).
		Str("model", masked.ModelOrDefault()).
		Str("key", masked.APIKey).
		Msg("settings updated")
	return nil
}

// ValidateForExchange checks the effective settings.
func (r *Registry) ValidateForExchange() error {
	return r.Get().Validate()
}

// Endpoint resolves the effective endpoint.
func (r *Registry) Endpoint() (string, error) {
	return r.Get().Endpoint()
}
