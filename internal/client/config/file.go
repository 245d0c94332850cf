package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/wakevault/internal/timex"
)

// FileConfig is the on-disk form of Config. Empty fields are ignored.
type FileConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	KeyFile            string         `json:"key_file" yaml:"key_file"`
	BookPath           string         `json:"book_path" yaml:"book_path"`
	Timeout            timex.Duration `json:"timeout" yaml:"timeout"`
}

func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = fc.ServerEndpointAddr
	}
	if fc.KeyFile != "" {
		cfg.KeyFile = fc.KeyFile
	}
	if fc.BookPath != "" {
		cfg.BookPath = fc.BookPath
	}
	if fc.Timeout.Duration != 0 {
		cfg.Timeout = fc.Timeout.Duration
	}
	return nil
}
