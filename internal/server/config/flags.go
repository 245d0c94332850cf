package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/wakevault/internal/flagx"
)

// parseFlags applies command-line overrides. Only the flags below are read;
// everything else on the command line is ignored.
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-h string   HTTP bind address (e.g., ":8080")
//	-store      memory or postgres
//	-d string   PostgreSQL DSN
//	-l string   log level
//	-program    program id (base58)
//	-keeper     run the keeper
//	-faucet     airdrop limit in lamports, 0 disables
//	-redis      Redis address for the event stream
//	-b string   S3 bucket for the event archive
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{
		"-a", "-h", "-store", "-d", "-l", "-program", "-keeper", "-faucet", "-redis", "-b", "-e",
	})

	fs := flag.NewFlagSet("wakevault", flag.ContinueOnError)

	fs.StringVar(&cfg.EndpointAddrGRPC, "a", cfg.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&cfg.EndpointAddrHTTP, "h", cfg.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "ledger store (memory|postgres)")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.ProgramID, "program", cfg.ProgramID, "program id")
	fs.BoolVar(&cfg.KeeperEnabled, "keeper", cfg.KeeperEnabled, "run the keeper")
	fs.Uint64Var(&cfg.FaucetLimit, "faucet", cfg.FaucetLimit, "airdrop limit in lamports")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 archive bucket")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
