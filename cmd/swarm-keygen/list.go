// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nordicnode/swarm/keystore"
)

var listDir string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the keys held in a keystore directory",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listDir, "dir", "d", ".swarm/keys", "Keystore directory")
}

func runList(cmd *cobra.Command, args []string) error {
	vault, err := keystore.NewFileVault(listDir)
	if err != nil {
		return fmt.Errorf("open keystore: %w", err)
	}
	names, err := vault.List()
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("(no keys)")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
