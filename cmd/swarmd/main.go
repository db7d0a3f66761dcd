// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "swarmd",
	Short: "Run the swarm LAN peer-to-peer file sync daemon",
	Long: `swarmd watches a local sync folder, discovers other swarm nodes on
the LAN, and keeps trusted peers' copies of that folder in sync (§4, §5).`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
