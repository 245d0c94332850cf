package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// parseEnv loads cfg.EnvFile into the process environment, when it exists,
// and then decodes the WAKEVAULT_* variables over cfg. Unset variables keep
// the current value; a value that does not parse is an error.
func parseEnv(cfg *Config) error {
	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", cfg.EnvFile, err)
		}
	}

	// StrictDecode reports ErrInvalidTarget when no variable is set.
	if err := envdecode.StrictDecode(cfg); err != nil && !errors.Is(err, envdecode.ErrInvalidTarget) {
		return fmt.Errorf("decode environment: %w", err)
	}
	return nil
}
