// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings holds the API settings used for chat exchanges.
package settings

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Providers.
const (
	ProviderChatGPT = "chatgpt"
	ProviderCustom  = "custom"
)

// OpenAIEndpoint is the chat-completions endpoint used by ProviderChatGPT.
const OpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// DefaultModel is sent when no model is configured.
const DefaultModel = "gpt-3.5-turbo"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMissingCredential is returned when no API key is configured.
	ErrMissingCredential = errors.New("API key is not set; add it in the settings")

	// ErrMissingEndpoint is returned when the endpoint cannot be resolved.
	ErrMissingEndpoint = errors.New("API endpoint is not configured; set a custom URL in the settings")

	// ErrUnknownProvider is returned by ParseProvider.
	ErrUnknownProvider = errors.New("unknown provider")
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings is the persisted API configuration.
type Settings struct {
	Provider  string `json:"provider"`
	CustomURL string `json:"customUrl"`
	APIKey    string `json:"apiKey"`
	Model     string `json:"model"`
}

// Defaults returns the settings used before the user saves anything.
func Defaults() Settings {
	return Settings{Provider: ProviderChatGPT}
}

// Endpoint resolves the chat-completions URL for the provider.
func (s Settings) Endpoint() (string, error) {
	switch normalizeProvider(s.Provider) {
	case ProviderChatGPT:
		return OpenAIEndpoint, nil
	case ProviderCustom:
		raw := strings.TrimSpace(s.CustomURL)
		if raw == "" {
			return "", ErrMissingEndpoint
		}
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return "", fmt.Errorf("%w: %q is not an http(s) URL", ErrMissingEndpoint, raw)
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("%w: unknown provider %q", ErrMissingEndpoint, s.Provider)
	}
}

// Validate reports whether an exchange can be attempted with s.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.APIKey) == "" {
		return ErrMissingCredential
	}
	_, err := s.Endpoint()
	return err
}

// ModelOrDefault returns the configured model or DefaultModel.
func (s Settings) ModelOrDefault() string {
	if m := strings.TrimSpace(s.Model); m != "" {
		return m
	}
	return DefaultModel
}

// Masked returns a copy safe for display and logging.
func (s Settings) Masked() Settings {
	s.APIKey = MaskKey(s.APIKey)
	return s
}

// MaskKey replaces a key with its length and fingerprint.
func MaskKey(key string) string {
	if key == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(key), KeyFingerprint(key))
}

// KeyFingerprint returns the first 8 hex characters of the key's SHA-256.
func KeyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

func normalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return ProviderChatGPT
	}
	return p
}

// ParseProvider normalizes a provider name typed by the user. Empty means
// ProviderChatGPT.
func ParseProvider(p string) (string, error) {
	p = normalizeProvider(p)
	if p != ProviderChatGPT && p != ProviderCustom {
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrUnknownProvider, p, ProviderChatGPT, ProviderCustom)
	}
	return p, nil
}

// =============================================================================
// PARTIAL UPDATES
// =============================================================================

// Partial carries the fields to change in Update. Nil fields are left as
// they are.
type Partial struct {
	Provider  *string
	CustomURL *string
	APIKey    *string
	Model     *string
}

// IsEmpty reports whether p changes nothing.
func (p Partial) IsEmpty() bool {
	return p.Provider == nil && p.CustomURL == nil && p.APIKey == nil && p.Model == nil
}

// Apply returns s with p's fields applied.
func (p Partial) Apply(s Settings) Settings {
	if p.Provider != nil {
		s.Provider = normalizeProvider(*p.Provider)
	}
	if p.CustomURL != nil {
		s.CustomURL = strings.TrimSpace(*p.CustomURL)
	}
	if p.APIKey != nil {
		s.APIKey = strings.TrimSpace(*p.APIKey)
	}
	if p.Model != nil {
		s.Model = strings.TrimSpace(*p.Model)
	}
	return s
}

// String is a helper for building a Partial.
func String(v string) *string {
	return &v
}
