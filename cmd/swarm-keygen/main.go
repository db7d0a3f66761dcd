// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "swarm-keygen",
	Short: "Generate and manage a swarm node's long-lived Ed25519 identity key",
	Long: `swarm-keygen creates the Ed25519 identity key pair a swarm daemon
uses to authenticate itself during the handshake (§4.1, §4.3), and manages
the passphrase-encrypted keystore it lives in.`,
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
