// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"crypto/ed25519"
	"fmt"

	"github.com/spf13/cobra"

	swarmcrypto "github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/crypto/keys"
	"github.com/nordicnode/swarm/keystore"
)

var (
	fpDir        string
	fpName       string
	fpPassphrase string
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print the fingerprint of a stored identity key",
	Long: `Decrypts the named key and prints the same short fingerprint the
handshake uses to identify this node to peers (§4.1).`,
	RunE: runFingerprint,
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().StringVarP(&fpDir, "dir", "d", ".swarm/keys", "Keystore directory")
	fingerprintCmd.Flags().StringVarP(&fpName, "name", "n", "identity", "Name the key is stored under")
	fingerprintCmd.Flags().StringVarP(&fpPassphrase, "passphrase", "p", "", "Passphrase the key was encrypted with (required)")
	fingerprintCmd.MarkFlagRequired("passphrase")
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	vault, err := keystore.NewFileVault(fpDir)
	if err != nil {
		return fmt.Errorf("open keystore: %w", err)
	}
	raw, err := vault.Retrieve(fpName, fpPassphrase)
	if err != nil {
		return fmt.Errorf("retrieve key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return fmt.Errorf("stored key %q is not a valid Ed25519 private key", fpName)
	}
	kp, err := keys.LoadEd25519KeyPair(ed25519.PrivateKey(raw))
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	fmt.Printf("%s (%s)\n", kp.ID(), swarmcrypto.KeyTypeEd25519)
	return nil
}
