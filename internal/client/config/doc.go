// Package config loads runtime configuration for the wakectl CLI.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file named by -c or -config.
//  3. WAKECTL_* environment variables.
//  4. Global flags given before the command name.
//
// Global flags
//
//	-a string      address:port of the wakevault gRPC endpoint
//	-k string      path of the encrypted key file
//	-book string   path of the local SQLite alarm book
//	-t duration    per-command timeout
//
// File schema (YAML shown; JSON uses the same keys):
//
//	server_endpoint_addr: 127.0.0.1:50051
//	key_file: ~/.wakevault/key.json
//	book_path: ~/.wakevault/book.db
//	timeout: 15s
package config
