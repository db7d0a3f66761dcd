package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError is one finding from ValidateConfiguration.
type ValidationError struct {
	Field   string
	Message string
	Level   string // "error", "warning", "info"
}

// ValidateConfiguration validates the entire configuration.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateEnvironment(cfg.Environment)...)

	if cfg.SyncFolderPath == "" {
		errs = append(errs, ValidationError{
			Field:   "SyncFolderPath",
			Message: "sync folder path is required",
			Level:   "error",
		})
	}

	if cfg.EncryptionAutoLockMinutes < 0 {
		errs = append(errs, ValidationError{
			Field:   "EncryptionAutoLockMinutes",
			Message: "auto-lock minutes cannot be negative",
			Level:   "error",
		})
	}

	if cfg.Transport != nil && cfg.Transport.PortRangeEnd < cfg.Transport.PortRangeStart {
		errs = append(errs, ValidationError{
			Field:   "Transport.PortRangeEnd",
			Message: "port range end must not be before port range start",
			Level:   "error",
		})
	}

	for _, tp := range cfg.TrustedPeers {
		if tp.PeerID == "" {
			errs = append(errs, ValidationError{
				Field:   "TrustedPeers",
				Message: "trusted peer record missing peer ID",
				Level:   "error",
			})
		}
	}

	return errs
}

func validateEnvironment(env string) []ValidationError {
	var errs []ValidationError

	validEnvs := []string{"local", "development", "staging", "production"}
	env = strings.ToLower(env)

	valid := false
	for _, v := range validEnvs {
		if env == v {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, ValidationError{
			Field:   "Environment",
			Message: fmt.Sprintf("invalid environment: %s (valid: %v)", env, validEnvs),
			Level:   "error",
		})
	}
	return errs
}

// ValidateFile loads path and validates the resulting configuration.
func ValidateFile(path string) ([]ValidationError, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", path)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}
	return ValidateConfiguration(cfg), nil
}
