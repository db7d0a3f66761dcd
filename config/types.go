// Package config provides configuration management for swarm.
package config

import "time"

// Config is the daemon's configuration object, matching the enumerated
// fields of the external-interfaces configuration record (§6).
type Config struct {
	Environment string `yaml:"environment" json:"environment"`

	DeviceName             string          `yaml:"device_name" json:"device_name"`
	LocalID                string          `yaml:"local_id" json:"local_id"`
	SyncFolderPath         string          `yaml:"sync_folder_path" json:"sync_folder_path"`
	DownloadPath           string          `yaml:"download_path" json:"download_path"`
	IsSyncEnabled          bool            `yaml:"is_sync_enabled" json:"is_sync_enabled"`
	StartMinimized         bool            `yaml:"start_minimized" json:"start_minimized"`
	AutoAcceptFromTrusted  bool            `yaml:"auto_accept_from_trusted" json:"auto_accept_from_trusted"`
	NotificationsEnabled   bool            `yaml:"notifications_enabled" json:"notifications_enabled"`
	ShowTransferComplete   bool            `yaml:"show_transfer_complete" json:"show_transfer_complete"`
	ExcludedFolders        []string        `yaml:"excluded_folders" json:"excluded_folders"`
	TrustedPeers           []TrustedPeer   `yaml:"trusted_peers" json:"trusted_peers"`
	Schedule               SyncSchedule    `yaml:"schedule" json:"schedule"`
	IsSyncCurrentlyPaused  bool            `yaml:"is_sync_currently_paused" json:"is_sync_currently_paused"`
	PauseUntil             *time.Time      `yaml:"pause_until,omitempty" json:"pause_until,omitempty"`
	EncryptionAutoLockMinutes int          `yaml:"encryption_auto_lock_minutes" json:"encryption_auto_lock_minutes"`
	EncryptedFolders       []string        `yaml:"encrypted_folders" json:"encrypted_folders"`

	Discovery *DiscoveryConfig `yaml:"discovery" json:"discovery"`
	Transport *TransportConfig `yaml:"transport" json:"transport"`
	State     *StateConfig     `yaml:"state" json:"state"`
	KeyStore  *KeyStoreConfig  `yaml:"keystore" json:"keystore"`
	Logging   *LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics   *MetricsConfig   `yaml:"metrics" json:"metrics"`
	Health    *HealthConfig    `yaml:"health" json:"health"`
}

// TrustedPeer is a persisted trust record (§3).
type TrustedPeer struct {
	PeerID                 string `yaml:"peer_id" json:"peer_id"`
	IdentityPubKeyFingerprint string `yaml:"identity_pubkey_fingerprint" json:"identity_pubkey_fingerprint"`
	DisplayName            string `yaml:"display_name" json:"display_name"`
	TrustedAt              time.Time `yaml:"trusted_at" json:"trusted_at"`
	// AutoResolve opts this peer's conflicts into LastWriterWins
	// auto-resolution (SPEC_FULL §D.3); default false (manual resolution).
	AutoResolve bool `yaml:"auto_resolve" json:"auto_resolve"`
}

// SyncSchedule gates when sync traffic is allowed (§3).
type SyncSchedule struct {
	Enabled bool         `yaml:"enabled" json:"enabled"`
	Mode    ScheduleMode `yaml:"mode" json:"mode"`
	Windows []TimeWindow `yaml:"windows" json:"windows"`
}

// ScheduleMode selects whether Windows allow or block sync.
type ScheduleMode string

const (
	AllowDuring ScheduleMode = "allow_during"
	BlockDuring ScheduleMode = "block_during"
)

// TimeWindow is a recurring (days-of-week, time-of-day) interval. An
// EndMinute <= StartMinute spans midnight.
type TimeWindow struct {
	Days         []time.Weekday `yaml:"days" json:"days"`
	StartMinute  int            `yaml:"start_minute" json:"start_minute"`
	EndMinute    int            `yaml:"end_minute" json:"end_minute"`
}

// DiscoveryConfig controls the UDP beacon component (§4.4).
type DiscoveryConfig struct {
	BeaconPort    int           `yaml:"beacon_port" json:"beacon_port"`
	BeaconPeriod  time.Duration `yaml:"beacon_period" json:"beacon_period"`
	LivenessTTL   time.Duration `yaml:"liveness_ttl" json:"liveness_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// TransportConfig controls the framed TCP transport (§4.3).
type TransportConfig struct {
	PortRangeStart int           `yaml:"port_range_start" json:"port_range_start"`
	PortRangeEnd   int           `yaml:"port_range_end" json:"port_range_end"`
	MaxFrameBytes  uint32        `yaml:"max_frame_bytes" json:"max_frame_bytes"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	InputQueueSize int           `yaml:"input_queue_size" json:"input_queue_size"`
}

// StateConfig controls the SQLite-backed repository (§4.2).
type StateConfig struct {
	DatabasePath string `yaml:"database_path" json:"database_path"`
}

// KeyStoreConfig controls the identity key storage backend (§6).
type KeyStoreConfig struct {
	Type      string `yaml:"type" json:"type"` // file, memory
	Directory string `yaml:"directory" json:"directory"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig configures the health-check endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}
