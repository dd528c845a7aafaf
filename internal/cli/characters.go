// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morganforge/muse/internal/exchange"
	"github.com/morganforge/muse/internal/ui/console"
	"github.com/morganforge/muse/internal/ui/styles"
)

// characterInfo is the JSON form of a roster entry.
type characterInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Messages int    `json:"messages"`
	Active   bool   `json:"active"`
}

func newCharactersCommand(g *globals) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:     "characters",
		Aliases: []string{"roster", "ls"},
		Short:   "List the characters you can talk with",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.open(openOptions{consoleLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			active, _ := app.Conversations.Active()
			return outputJSON(out, jsonMode, "characters", func() (any, error) {
				chars := app.Catalog.List()
				if !jsonMode {
					theme := styles.NewTheme(app.State.Snapshot().Theme, out)
					console.NewRenderer(out, theme, app.Catalog, console.Options{}).Roster(chars, active)
					return nil, nil
				}
				infos := make([]characterInfo, 0, len(chars))
				for _, ch := range chars {
					infos = append(infos, characterInfo{
						ID:       ch.ID,
						Name:     ch.Name,
						Title:    ch.Title,
						Messages: app.Conversations.Len(ch.ID),
						Active:   ch.ID == active,
					})
				}
				return infos, nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	cmd.AddCommand(newBioCommand(g))
	return cmd
}

func newBioCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "bio <character>",
		Short: "Show a character card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.open(openOptions{consoleLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			ch, ok := app.Catalog.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%w: %q", exchange.ErrUnknownCharacter, args[0])
			}
			out := cmd.OutOrStdout()
			theme := styles.NewTheme(app.State.Snapshot().Theme, out)
			console.NewRenderer(out, theme, app.Catalog, console.Options{}).Bio(ch)
			return nil
		},
	}
}
