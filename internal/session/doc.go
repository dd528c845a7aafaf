// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates user sends with the reply orchestrator.
//
// # Key Types
//
//   - Coordinator: admits one exchange at a time and tracks the active character
//   - Handle: an in-flight exchange that can be awaited or cancelled
//
// # Usage
//
//	coord := session.New(convs, registry, orchestrator, renderer, logger)
//	h, err := coord.TrySend(ctx, "dante", "Hello")
//	if errors.Is(err, session.ErrBusy) {
//	    // a reply is still streaming
//	}
//	res := h.Wait()
//
// Switching characters while a reply streams does not stop it; the reply is
// committed to the conversation it was started for.
package session
