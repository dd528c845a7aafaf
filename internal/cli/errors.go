// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"

	"github.com/morganforge/muse/internal/catalog"
	"github.com/morganforge/muse/internal/config"
	"github.com/morganforge/muse/internal/conversation"
	"github.com/morganforge/muse/internal/exchange"
	"github.com/morganforge/muse/internal/export"
	"github.com/morganforge/muse/internal/provider"
	"github.com/morganforge/muse/internal/settings"
	"github.com/morganforge/muse/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
)

// UsageError marks an invalid invocation.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

func usageError(msg string) error {
	return &UsageError{Message: msg}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	var usage *UsageError
	var verrs config.ValidateErrors
	var netErr *provider.NetworkError

	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage), errors.Is(err, export.ErrUnknownFormat), errors.Is(err, settings.ErrUnknownProvider):
		return ExitUsageError
	case errors.As(err, &verrs),
		errors.Is(err, settings.ErrMissingCredential),
		errors.Is(err, settings.ErrMissingEndpoint),
		errors.Is(err, storage.ErrUnknownBackend),
		errors.Is(err, catalog.ErrInvalidRoster):
		return ExitConfigError
	case errors.As(err, &netErr), errors.Is(err, provider.ErrNetworkFailure):
		return ExitNetworkError
	case errors.Is(err, exchange.ErrUnknownCharacter),
		errors.Is(err, conversation.ErrInvalidArgument),
		errors.Is(err, export.ErrEmptyConversation):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}
