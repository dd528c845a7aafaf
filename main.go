// muse - chat with historical writers in your terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/morganforge/muse/internal/cli"
)

// Version information (set at build time)
var Version = "dev"

func main() {
	cli.Version = Version
	os.Exit(cli.Execute())
}
