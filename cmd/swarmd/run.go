// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nordicnode/swarm/config"
	swarmcrypto "github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/crypto/keys"
	"github.com/nordicnode/swarm/internal/logger"
	"github.com/nordicnode/swarm/internal/metrics"
	"github.com/nordicnode/swarm/keystore"
	"github.com/nordicnode/swarm/supervisor"
)

var (
	runConfigDir   string
	runEnvironment string
	runPassphrase  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the daemon in the foreground",
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runConfigDir, "config-dir", "config", "Directory containing environment config files")
	runCmd.Flags().StringVar(&runEnvironment, "env", "", "Environment to load (defaults to SWARM_ENV or \"development\")")
	runCmd.Flags().StringVar(&runPassphrase, "passphrase", "", "Identity keystore passphrase (falls back to SWARM_KEY_PASSPHRASE)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: runConfigDir, Environment: runEnvironment})
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logLevel := logger.InfoLevel
	if cfg.Logging != nil && cfg.Logging.Level == "debug" {
		logLevel = logger.DebugLevel
	}
	logger.SetDefaultLogger(logger.NewLogger(os.Stdout, logLevel))

	identity, err := loadIdentity(cfg)
	if err != nil {
		return fmt.Errorf("load identity key: %w", err)
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		go func() {
			if err := metrics.StartServer(addr); err != nil {
				logger.Warn("swarmd: metrics server stopped", logger.Error(err))
			}
		}()
	}

	sup, err := supervisor.New(cfg, identity)
	if err != nil {
		return fmt.Errorf("build supervisor: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("swarmd: starting", logger.String("device", cfg.DeviceName), logger.String("sync_folder", cfg.SyncFolderPath))
	return sup.Run(ctx)
}

func loadIdentity(cfg *config.Config) (swarmcrypto.KeyPair, error) {
	dir := ".swarm/keys"
	if cfg.KeyStore != nil && cfg.KeyStore.Directory != "" {
		dir = cfg.KeyStore.Directory
	}
	passphrase := runPassphrase
	if passphrase == "" {
		passphrase = os.Getenv("SWARM_KEY_PASSPHRASE")
	}
	if passphrase == "" {
		return nil, fmt.Errorf("no identity keystore passphrase supplied (use --passphrase or SWARM_KEY_PASSPHRASE)")
	}

	vault, err := keystore.NewFileVault(dir)
	if err != nil {
		return nil, err
	}
	raw, err := vault.Retrieve("identity", passphrase)
	if err != nil {
		return nil, fmt.Errorf("retrieve identity key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("stored identity key is not a valid Ed25519 private key")
	}
	return keys.LoadEd25519KeyPair(ed25519.PrivateKey(raw))
}
