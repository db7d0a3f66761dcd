package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML (or JSON-fallback) file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parse %s (tried YAML and JSON): %w", path, err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing YAML or JSON by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// setDefaults fills in any zero-valued fields with the daemon's defaults,
// taken from the literal constants named throughout §4 of the spec.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.DeviceName == "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "swarm-node"
		}
		cfg.DeviceName = hostname
	}
	if cfg.EncryptionAutoLockMinutes == 0 {
		cfg.EncryptionAutoLockMinutes = 15
	}

	if cfg.Discovery == nil {
		cfg.Discovery = &DiscoveryConfig{}
	}
	if cfg.Discovery.BeaconPort == 0 {
		cfg.Discovery.BeaconPort = 52100
	}
	if cfg.Discovery.BeaconPeriod == 0 {
		cfg.Discovery.BeaconPeriod = 3 * time.Second
	}
	if cfg.Discovery.LivenessTTL == 0 {
		cfg.Discovery.LivenessTTL = 10 * time.Second
	}
	if cfg.Discovery.SweepInterval == 0 {
		cfg.Discovery.SweepInterval = 2 * time.Second
	}

	if cfg.Transport == nil {
		cfg.Transport = &TransportConfig{}
	}
	if cfg.Transport.PortRangeStart == 0 {
		cfg.Transport.PortRangeStart = 52000
	}
	if cfg.Transport.PortRangeEnd == 0 {
		cfg.Transport.PortRangeEnd = 52099
	}
	if cfg.Transport.MaxFrameBytes == 0 {
		cfg.Transport.MaxFrameBytes = 16 * 1024 * 1024
	}
	if cfg.Transport.IdleTimeout == 0 {
		cfg.Transport.IdleTimeout = 60 * time.Second
	}
	if cfg.Transport.InputQueueSize == 0 {
		cfg.Transport.InputQueueSize = 64
	}

	if cfg.State == nil {
		cfg.State = &StateConfig{}
	}
	if cfg.State.DatabasePath == "" {
		cfg.State.DatabasePath = ".swarm/state.db"
	}

	if cfg.KeyStore == nil {
		cfg.KeyStore = &KeyStoreConfig{}
	}
	if cfg.KeyStore.Type == "" {
		cfg.KeyStore.Type = "file"
	}
	if cfg.KeyStore.Directory == "" {
		cfg.KeyStore.Directory = ".swarm/keys"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{}
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = 9091
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
}
