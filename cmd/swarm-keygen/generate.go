// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nordicnode/swarm/crypto/keys"
	"github.com/nordicnode/swarm/keystore"
)

var (
	genDir        string
	genName       string
	genPassphrase string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new Ed25519 identity key pair and store it",
	Example: `  # Generate this node's identity key under ./keys, named "identity"
  swarm-keygen generate --dir ./keys --name identity --passphrase correcthorse`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&genDir, "dir", "d", ".swarm/keys", "Keystore directory")
	generateCmd.Flags().StringVarP(&genName, "name", "n", "identity", "Name the key is stored under")
	generateCmd.Flags().StringVarP(&genPassphrase, "passphrase", "p", "", "Passphrase to encrypt the key at rest (required)")
	generateCmd.MarkFlagRequired("passphrase")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	vault, err := keystore.NewFileVault(genDir)
	if err != nil {
		return fmt.Errorf("open keystore: %w", err)
	}
	if vault.Exists(genName) {
		return fmt.Errorf("a key named %q already exists in %s", genName, genDir)
	}

	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return fmt.Errorf("unexpected private key type %T", kp.PrivateKey())
	}
	if err := vault.Store(genName, priv, genPassphrase); err != nil {
		return fmt.Errorf("store key: %w", err)
	}

	var pubHex string
	if pub, ok := kp.PublicKey().(ed25519.PublicKey); ok {
		pubHex = hex.EncodeToString(pub)
	}

	fmt.Printf("Identity key generated:\n")
	fmt.Printf("  Name:        %s\n", genName)
	fmt.Printf("  Fingerprint: %s\n", kp.ID())
	if pubHex != "" {
		fmt.Printf("  Public key:  %s\n", pubHex)
	}
	fmt.Printf("  Stored in:   %s\n", genDir)
	return nil
}
