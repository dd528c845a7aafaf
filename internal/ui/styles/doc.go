// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colour palette and lip gloss styles shared by the
console and TUI front ends.

# Color System (colors.go)

All colours are lip gloss AdaptiveColor values. Which half is used depends on
the renderer the Theme was built with, so the persisted theme ("dark" or
"light") wins over terminal detection.

  - Gold - primary accent, character names and selections
  - Ink - user highlights and prompts
  - Rose - errors and the failed-reply annotation
  - Amber - notices and warnings

# Theme System (theme.go)

	theme := styles.NewTheme(styles.ThemeDark, os.Stdout)
	fmt.Println(theme.AssistantLabel.Render("Dante Alighieri"))
	fmt.Println(theme.RenderError("API Error (500): Unknown error"))
*/
package styles
