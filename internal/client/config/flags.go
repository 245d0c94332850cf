package config

import (
	"flag"
	"io"
)

// parseFlags parses the global flags into cfg and stops at the first
// non-flag argument. quiet suppresses usage output.
func parseFlags(cfg *Config, args []string, quiet bool) (rest []string, configPath string, err error) {
	fs := flag.NewFlagSet("wakectl", flag.ContinueOnError)
	if quiet {
		fs.SetOutput(io.Discard)
	}

	fs.StringVar(&configPath, "config", "", "path to config file")
	fs.StringVar(&configPath, "c", "", "path to config file (short)")
	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the wakevault server")
	fs.StringVar(&cfg.KeyFile, "k", cfg.KeyFile, "encrypted key file")
	fs.StringVar(&cfg.BookPath, "book", cfg.BookPath, "local alarm book")
	fs.DurationVar(&cfg.Timeout, "t", cfg.Timeout, "per-command timeout")

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	return fs.Args(), configPath, nil
}
