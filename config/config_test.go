package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yaml")
	require.NoError(t, SaveToFile(&Config{SyncFolderPath: "/tmp/sync"}, path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sync", cfg.SyncFolderPath)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 52100, cfg.Discovery.BeaconPort)
	assert.Equal(t, uint32(16*1024*1024), cfg.Transport.MaxFrameBytes)
	assert.Equal(t, ".swarm/state.db", cfg.State.DatabasePath)
	assert.Equal(t, 15, cfg.EncryptionAutoLockMinutes)
}

func TestSaveToFileJSONExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.json")
	require.NoError(t, SaveToFile(&Config{SyncFolderPath: "/tmp/sync"}, path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sync", cfg.SyncFolderPath)
}

func TestValidateConfigurationRequiresSyncFolder(t *testing.T) {
	cfg := &Config{Environment: "development"}
	errs := ValidateConfiguration(cfg)

	found := false
	for _, e := range errs {
		if e.Field == "SyncFolderPath" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateConfigurationRejectsUnknownEnvironment(t *testing.T) {
	cfg := &Config{Environment: "not-a-real-env", SyncFolderPath: "/tmp/sync"}
	errs := ValidateConfiguration(cfg)

	found := false
	for _, e := range errs {
		if e.Field == "Environment" {
			found = true
		}
	}
	assert.True(t, found)
}
