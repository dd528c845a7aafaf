// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the program and blocks until the user quits or ctx ends. r
// receives exchange callbacks while the program runs.
func Run(ctx context.Context, deps Deps, opts Options, r *Renderer) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	p := tea.NewProgram(New(ctx, deps, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(opts.Output),
	)
	r.Attach(p)
	defer r.Attach(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
