package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/dmitrijs2005/wakevault/internal/filex"
)

type Config struct {
	ServerEndpointAddr string        `env:"WAKECTL_ADDR"`
	KeyFile            string        `env:"WAKECTL_KEY_FILE"`
	BookPath           string        `env:"WAKECTL_BOOK"`
	Timeout            time.Duration `env:"WAKECTL_TIMEOUT"`
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.KeyFile = "~/.wakevault/key.json"
	c.BookPath = "~/.wakevault/book.db"
	c.Timeout = 15 * time.Second
}

// Load builds a Config from args (without the program name) and returns the
// arguments left after the global flags: the command and its own flags.
func Load(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	scratch := *cfg
	_, path, err := parseFlags(&scratch, args, true)
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, nil, err
		}
	}

	// StrictDecode reports ErrInvalidTarget when no variable is set.
	if err := envdecode.StrictDecode(cfg); err != nil && !errors.Is(err, envdecode.ErrInvalidTarget) {
		return nil, nil, fmt.Errorf("decode environment: %w", err)
	}

	rest, _, err := parseFlags(cfg, args, false)
	if err != nil {
		return nil, nil, err
	}

	if cfg.KeyFile, err = filex.ExpandHome(cfg.KeyFile); err != nil {
		return nil, nil, err
	}
	if cfg.BookPath, err = filex.ExpandHome(cfg.BookPath); err != nil {
		return nil, nil, err
	}
	if cfg.Timeout <= 0 {
		return nil, nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, rest, nil
}
