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

// FileConfig is the on-disk form of Config. Empty fields leave the current
// value alone; pointer fields exist where zero is a meaningful setting.
type FileConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	ShutdownTimeout  timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	Store       string `json:"store" yaml:"store"`
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`

	LogBackend string `json:"log_backend" yaml:"log_backend"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
	LogFormat  string `json:"log_format" yaml:"log_format"`

	Cluster           string      `json:"cluster" yaml:"cluster"`
	ProgramID         string      `json:"program_id" yaml:"program_id"`
	AttestationDomain string      `json:"attestation_domain" yaml:"attestation_domain"`
	AttestationKey    string      `json:"attestation_key" yaml:"attestation_key"`
	Params            *FileParams `json:"params" yaml:"params"`

	FaucetLimit *uint64  `json:"faucet_limit" yaml:"faucet_limit"`
	RateLimit   *float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst   *int     `json:"rate_burst" yaml:"rate_burst"`

	KeeperEnabled  *bool  `json:"keeper_enabled" yaml:"keeper_enabled"`
	KeeperSchedule string `json:"keeper_schedule" yaml:"keeper_schedule"`
	KeeperSeed     string `json:"keeper_seed" yaml:"keeper_seed"`
	KeeperBatch    int    `json:"keeper_batch" yaml:"keeper_batch"`

	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       *int   `json:"redis_db" yaml:"redis_db"`
	RedisStream   string `json:"redis_stream" yaml:"redis_stream"`
	RedisMaxLen   *int64 `json:"redis_max_len" yaml:"redis_max_len"`

	S3AccessKey     string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey     string `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket        string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region        string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint  string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	ArchivePrefix   string `json:"archive_prefix" yaml:"archive_prefix"`
	ArchiveBatch    int    `json:"archive_batch" yaml:"archive_batch"`
	ArchiveSchedule string `json:"archive_schedule" yaml:"archive_schedule"`

	EnvFile string `json:"env_file" yaml:"env_file"`
}

// FileParams mirrors escrow.Params with every field optional.
type FileParams struct {
	MinDeposit              *uint64 `json:"min_deposit" yaml:"min_deposit"`
	VaultFloor              *uint64 `json:"vault_floor" yaml:"vault_floor"`
	SnoozePercent           *uint64 `json:"snooze_percent" yaml:"snooze_percent"`
	MaxSnoozeCount          *uint8  `json:"max_snooze_count" yaml:"max_snooze_count"`
	SnoozeExtension         *int64  `json:"snooze_extension" yaml:"snooze_extension"`
	EmergencyPenaltyPercent *uint64 `json:"emergency_penalty_percent" yaml:"emergency_penalty_percent"`
	ClaimGrace              *int64  `json:"claim_grace" yaml:"claim_grace"`
	BuddyOnly               *int64  `json:"buddy_only" yaml:"buddy_only"`
}

// parseFile reads path as YAML when its extension is .yaml or .yml and as
// JSON otherwise, then overlays the result onto cfg.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func set[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (fc *FileConfig) apply(cfg *Config) {
	set(&cfg.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	set(&cfg.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	set(&cfg.ShutdownTimeout, fc.ShutdownTimeout.Duration)

	set(&cfg.Store, fc.Store)
	set(&cfg.DatabaseDSN, fc.DatabaseDSN)

	set(&cfg.LogBackend, fc.LogBackend)
	set(&cfg.LogLevel, fc.LogLevel)
	set(&cfg.LogFormat, fc.LogFormat)

	set(&cfg.Cluster, fc.Cluster)
	set(&cfg.ProgramID, fc.ProgramID)
	set(&cfg.AttestationDomain, fc.AttestationDomain)
	set(&cfg.AttestationKey, fc.AttestationKey)
	if p := fc.Params; p != nil {
		setPtr(&cfg.Params.MinDeposit, p.MinDeposit)
		setPtr(&cfg.Params.VaultFloor, p.VaultFloor)
		setPtr(&cfg.Params.SnoozePercent, p.SnoozePercent)
		setPtr(&cfg.Params.MaxSnoozeCount, p.MaxSnoozeCount)
		setPtr(&cfg.Params.SnoozeExtension, p.SnoozeExtension)
		setPtr(&cfg.Params.EmergencyPenaltyPercent, p.EmergencyPenaltyPercent)
		setPtr(&cfg.Params.ClaimGrace, p.ClaimGrace)
		setPtr(&cfg.Params.BuddyOnly, p.BuddyOnly)
	}

	setPtr(&cfg.FaucetLimit, fc.FaucetLimit)
	setPtr(&cfg.RateLimit, fc.RateLimit)
	setPtr(&cfg.RateBurst, fc.RateBurst)

	setPtr(&cfg.KeeperEnabled, fc.KeeperEnabled)
	set(&cfg.KeeperSchedule, fc.KeeperSchedule)
	set(&cfg.KeeperSeed, fc.KeeperSeed)
	set(&cfg.KeeperBatch, fc.KeeperBatch)

	set(&cfg.RedisAddr, fc.RedisAddr)
	set(&cfg.RedisPassword, fc.RedisPassword)
	setPtr(&cfg.RedisDB, fc.RedisDB)
	set(&cfg.RedisStream, fc.RedisStream)
	setPtr(&cfg.RedisMaxLen, fc.RedisMaxLen)

	set(&cfg.S3AccessKey, fc.S3AccessKey)
	set(&cfg.S3SecretKey, fc.S3SecretKey)
	set(&cfg.S3Bucket, fc.S3Bucket)
	set(&cfg.S3Region, fc.S3Region)
	set(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	set(&cfg.ArchivePrefix, fc.ArchivePrefix)
	set(&cfg.ArchiveBatch, fc.ArchiveBatch)
	set(&cfg.ArchiveSchedule, fc.ArchiveSchedule)

	set(&cfg.EnvFile, fc.EnvFile)
}
