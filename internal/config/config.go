// Package config defines the top-level configuration for genmarket and
// provides validation helpers.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by GENMARKET_* environment variables.
type Config struct {
	Network  NetworkConfig  `toml:"network"`
	Contract ContractConfig `toml:"contract"`
	Account  AccountConfig  `toml:"account"`
	Deploy   DeployConfig   `toml:"deploy"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// NetworkConfig selects the GenLayer chain. Name picks a built-in chain
// ("studionet", "localnet"); any other name needs rpc_url and chain_id.
// Non-zero fields override the built-in values.
type NetworkConfig struct {
	Name             string `toml:"name"`
	RPCURL           string `toml:"rpc_url"`
	ChainID          int64  `toml:"chain_id"`
	ExplorerURL      string `toml:"explorer_url"`
	ConsensusAddress string `toml:"consensus_address"`
	Validators       int64  `toml:"validators"`
	MaxRotations     int64  `toml:"max_rotations"`
	GasLimit         uint64 `toml:"gas_limit"`
}

// ContractConfig binds the market façade to a deployed contract.
type ContractConfig struct {
	Address string `toml:"address"`
	// ReadState is latest-nonfinal or latest-final.
	ReadState string `toml:"read_state"`
	// AddressFromRecord falls back to deploy.record_path when Address is empty.
	AddressFromRecord bool `toml:"address_from_record"`
}

// AccountConfig selects where the account key slot lives.
type AccountConfig struct {
	// Store is one of local, redis, postgres.
	Store         string `toml:"store"`
	Path          string `toml:"path"`
	Password      string `toml:"password"`
	AutoProvision bool   `toml:"auto_provision"`
	// PrivateKey is the deployer key (GENLAYER_PRIVATE_KEY), hex without 0x.
	PrivateKey string `toml:"private_key"`
	// KeyFile is an encrypted deployer key (see crypto.EncryptKey), used
	// when PrivateKey is empty and decrypted with Password.
	KeyFile string `toml:"key_file"`
}

// DeployConfig drives the deployment runner.
type DeployConfig struct {
	ContractPath      string         `toml:"contract_path"`
	RecordPath        string         `toml:"record_path"`
	SnapshotPath      string         `toml:"snapshot_path"`
	FailedReceiptPath string         `toml:"failed_receipt_path"`
	NetworkName       string         `toml:"network_name"`
	StudioURL         string         `toml:"studio_url"`
	TxURL             string         `toml:"tx_url"`
	Args              []any          `toml:"args"`
	Kwargs            map[string]any `toml:"kwargs"`
	LeaderOnly        bool           `toml:"leader_only"`
	LockTTL           duration       `toml:"lock_ttl"`
	// Publish forwards successful deployments to postgres, s3 and notify
	// when those are enabled.
	Publish  bool         `toml:"publish"`
	Finality []TierConfig `toml:"finality"`
}

// TierConfig is one finality tier, e.g.
//
//	[[deploy.finality]]
//	status = "FINALIZED"
//	retries = 600
//	interval = "1s"
type TierConfig struct {
	Status      string   `toml:"status"`
	Retries     int      `toml:"retries"`
	Interval    duration `toml:"interval"`
	Multiplier  float64  `toml:"multiplier"`
	MaxInterval duration `toml:"max_interval"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	URL        string `toml:"url"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// Duration wraps d for use in Config literals.
func Duration(d time.Duration) duration {
	return duration{d}
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	// Needs redis.
	RateLimit int `toml:"rate_limit"`
	// TrustedProxies are the IPs or CIDR blocks whose X-Forwarded-For header
	// names the client. Empty means the TCP peer is always the client.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Network: NetworkConfig{
			Name: "studionet",
		},
		Contract: ContractConfig{
			ReadState:         "latest-nonfinal",
			AddressFromRecord: true,
		},
		Account: AccountConfig{
			Store:         "local",
			Path:          ".genmarket/account",
			AutoProvision: true,
		},
		Deploy: DeployConfig{
			ContractPath:      "contracts/prediction_market.py",
			RecordPath:        "deployed_contract.json",
			SnapshotPath:      "tx_receipt.json",
			FailedReceiptPath: "tx_receipt.json",
			NetworkName:       "studio",
			StudioURL:         "https://studio.genlayer.com",
			TxURL:             "https://studio.genlayer.com",
			Args:              []any{},
			LockTTL:           duration{30 * time.Minute},
			Publish:           true,
			Finality: []TierConfig{
				{Status: "FINALIZED", Retries: 600, Interval: duration{time.Second}},
				{Status: "ACCEPTED", Retries: 100, Interval: duration{time.Second}},
			},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "genmarket:",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "genmarket",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"deploy.succeeded", "deploy.failed"},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validAccountStores = map[string]bool{
	"local":    true,
	"redis":    true,
	"postgres": true,
}

var validReadStates = map[string]bool{
	"latest-nonfinal": true,
	"latest-final":    true,
}

var validTierStatuses = map[string]bool{
	"ACCEPTED":  true,
	"FINALIZED": true,
}

var builtinNetworks = map[string]bool{
	"studio":    true,
	"studionet": true,
	"local":     true,
	"localnet":  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Network
	if !builtinNetworks[strings.ToLower(c.Network.Name)] {
		if c.Network.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("network: rpc_url is required for custom network %q", c.Network.Name))
		}
		if c.Network.ChainID <= 0 {
			errs = append(errs, fmt.Sprintf("network: chain_id is required for custom network %q", c.Network.Name))
		}
	}

	// Contract
	if !validReadStates[c.Contract.ReadState] {
		errs = append(errs, fmt.Sprintf("contract: unknown read_state %q (valid: latest-nonfinal, latest-final)", c.Contract.ReadState))
	}

	// Account
	store := strings.ToLower(c.Account.Store)
	if !validAccountStores[store] {
		errs = append(errs, fmt.Sprintf("account: unknown store %q (valid: local, redis, postgres)", c.Account.Store))
	}
	if store == "local" && c.Account.Path == "" {
		errs = append(errs, "account: path must not be empty for the local store")
	}
	if store == "redis" && !c.Redis.Enabled {
		errs = append(errs, "account: store redis requires redis.enabled")
	}
	if store == "postgres" && !c.Postgres.Enabled {
		errs = append(errs, "account: store postgres requires postgres.enabled")
	}

	// Deploy
	if c.Deploy.ContractPath == "" {
		errs = append(errs, "deploy: contract_path must not be empty")
	}
	if c.Deploy.RecordPath == "" {
		errs = append(errs, "deploy: record_path must not be empty")
	}
	if len(c.Deploy.Finality) == 0 {
		errs = append(errs, "deploy: at least one finality tier is required")
	}
	for i, t := range c.Deploy.Finality {
		if !validTierStatuses[strings.ToUpper(t.Status)] {
			errs = append(errs, fmt.Sprintf("deploy: finality[%d]: status must be ACCEPTED or FINALIZED, got %q", i, t.Status))
		}
		if t.Retries < 1 {
			errs = append(errs, fmt.Sprintf("deploy: finality[%d]: retries must be >= 1", i))
		}
		if t.Interval.Duration <= 0 {
			errs = append(errs, fmt.Sprintf("deploy: finality[%d]: interval must be > 0", i))
		}
		if t.Multiplier != 0 && t.Multiplier < 1 {
			errs = append(errs, fmt.Sprintf("deploy: finality[%d]: multiplier must be >= 1", i))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled && c.Redis.URL == "" && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr or url must be set")
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	for _, p := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			errs = append(errs, fmt.Sprintf("server: trusted proxy %q is not an IP or CIDR", p))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
