// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morganforge/muse/internal/settings"
)

// settingsView is the displayed form of the settings. The key is never
// shown.
type settingsView struct {
	Provider  string `json:"provider"`
	Endpoint  string `json:"endpoint"`
	CustomURL string `json:"customUrl,omitempty"`
	Model     string `json:"model"`
	Key       string `json:"key"`
	Ready     bool   `json:"ready"`
	Problem   string `json:"problem,omitempty"`
	// Overridden lists fields set by MUSE_* environment variables.
	Overridden []string `json:"overridden,omitempty"`
}

func viewSettings(reg *settings.Registry) settingsView {
	cur := reg.Get()
	saved := reg.Saved()

	v := settingsView{
		Provider:  cur.Provider,
		CustomURL: cur.CustomURL,
		Model:     cur.ModelOrDefault(),
		Key:       settings.KeyFingerprint(cur.APIKey),
		Ready:     true,
	}
	if endpoint, err := cur.Endpoint(); err == nil {
		v.Endpoint = endpoint
	}
	if err := cur.Validate(); err != nil {
		v.Ready = false
		v.Problem = err.Error()
	}

	for _, f := range []struct {
		name      string
		cur, prev string
	}{
		{"provider", cur.Provider, saved.Provider},
		{"url", cur.CustomURL, saved.CustomURL},
		{"key", cur.APIKey, saved.APIKey},
		{"model", cur.Model, saved.Model},
	} {
		if f.cur != f.prev {
			v.Overridden = append(v.Overridden, f.name)
		}
	}
	return v
}

func writeSettings(w io.Writer, reg *settings.Registry) {
	v := viewSettings(reg)
	row := func(label, value string) {
		fmt.Fprintf(w, "  %-10s %s\n", label+":", value)
	}
	row("Provider", v.Provider)
	if v.Endpoint != "" {
		row("Endpoint", v.Endpoint)
	}
	row("Model", v.Model)
	row("API key", v.Key)
	if len(v.Overridden) > 0 {
		row("From env", strings.Join(v.Overridden, ", "))
	}
	if !v.Ready {
		row("Status", v.Problem)
	}
}

// =============================================================================
// SETTINGS COMMAND
// =============================================================================

func newSettingsCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the API settings",
	}
	cmd.AddCommand(newSettingsShowCommand(g), newSettingsSetCommand(g))
	return cmd
}

func newSettingsShowCommand(g *globals) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the API settings with the key masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.open(openOptions{consoleLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			return outputJSON(out, jsonMode, "settings show", func() (any, error) {
				if !jsonMode {
					writeSettings(out, app.Settings)
				}
				return viewSettings(app.Settings), nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	return cmd
}

func newSettingsSetCommand(g *globals) *cobra.Command {
	var provider, url, key, modelName string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the API settings",
		Long: `Change one or more API settings. Flags that are not given keep their
current value. Pass --key - to read the key from standard input.`,
		Example: `  muse settings set --key sk-...
  muse settings set --provider custom --url http://localhost:8080/v1/chat/completions`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("provider") && !flags.Changed("url") && !flags.Changed("key") && !flags.Changed("model") {
				return usageError("nothing to change; pass --provider, --url, --key or --model")
			}

			var p settings.Partial
			if flags.Changed("provider") {
				normalized, err := settings.ParseProvider(provider)
				if err != nil {
					return err
				}
				p.Provider = &normalized
			}
			if flags.Changed("url") {
				p.CustomURL = &url
			}
			if flags.Changed("key") {
				if key == "-" {
					line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
					if err != nil && err != io.EOF {
						return fmt.Errorf("read key: %w", err)
					}
					key = strings.TrimSpace(line)
				}
				p.APIKey = &key
			}
			if flags.Changed("model") {
				p.Model = &modelName
			}

			app, err := g.open(openOptions{consoleLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Settings.Update(p); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Settings saved.")
			writeSettings(out, app.Settings)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&provider, "provider", "", "provider: chatgpt or custom")
	flags.StringVar(&url, "url", "", "chat completions URL for the custom provider")
	flags.StringVar(&key, "key", "", "API key, or - to read it from stdin")
	flags.StringVar(&modelName, "model", "", "model name (empty for the default)")
	return cmd
}
