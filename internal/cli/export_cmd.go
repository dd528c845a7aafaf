// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morganforge/muse/internal/export"
)

func newExportCommand(g *globals) *cobra.Command {
	var format, out, theme string
	cmd := &cobra.Command{
		Use:   "export <character>",
		Short: "Export a conversation to a file",
		Long: fmt.Sprintf(`Write the conversation with a character to a file. Formats: %s.
Without --out the file is named <character>_<timestamp>.<ext> in the
current directory.`, strings.Join(export.Formats, ", ")),
		Example: `  muse export dante
  muse export hugo --format html --out hugo.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.open(openOptions{consoleLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			if theme == "" {
				theme = app.State.Snapshot().Theme
			}
			written, err := exportConversation(app, args[0], format, out, theme)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", written)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&format, "format", "f", "md", "output format: "+strings.Join(export.Formats, ", "))
	flags.StringVarP(&out, "out", "o", "", "output file")
	flags.StringVar(&theme, "theme", "", "HTML theme: dark or light (default: current theme)")
	return cmd
}

func newResetCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return to the character picker on next start",
		Long: `Clear the active character. Conversations are kept; the next session
starts at the character list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.open(openOptions{consoleLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Conversations.ResetActive(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Active character cleared.")
			return nil
		},
	}
}
