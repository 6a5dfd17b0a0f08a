package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies environment variable overrides, and returns the
// final Config. A missing file is not an error. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites the
// corresponding Config fields when a variable is set (i.e. not empty). The
// unprefixed names are the ones the deploy script and frontend build use.
func applyEnvOverrides(cfg *Config) {
	// ── Network ──
	setStr(&cfg.Network.Name, "GENMARKET_NETWORK_NAME")
	setStr(&cfg.Network.RPCURL, "GENMARKET_NETWORK_RPC_URL")
	setInt64(&cfg.Network.ChainID, "GENMARKET_NETWORK_CHAIN_ID")
	setStr(&cfg.Network.ConsensusAddress, "GENMARKET_NETWORK_CONSENSUS_ADDRESS")

	// ── Contract ──
	setStr(&cfg.Contract.Address, "VITE_CONTRACT_ADDRESS")
	setStr(&cfg.Contract.Address, "CONTRACT_ADDRESS")
	setStr(&cfg.Contract.Address, "GENMARKET_CONTRACT_ADDRESS")
	setStr(&cfg.Contract.ReadState, "GENMARKET_CONTRACT_READ_STATE")

	// ── Account ──
	setStr(&cfg.Account.Store, "GENMARKET_ACCOUNT_STORE")
	setStr(&cfg.Account.Path, "GENMARKET_ACCOUNT_PATH")
	setStr(&cfg.Account.Password, "GENMARKET_ACCOUNT_PASSWORD")
	setBool(&cfg.Account.AutoProvision, "GENMARKET_ACCOUNT_AUTO_PROVISION")
	setStr(&cfg.Account.PrivateKey, "GENLAYER_PRIVATE_KEY")
	setStr(&cfg.Account.PrivateKey, "GENMARKET_ACCOUNT_PRIVATE_KEY")
	setStr(&cfg.Account.KeyFile, "GENMARKET_ACCOUNT_KEY_FILE")

	// ── Deploy ──
	setStr(&cfg.Deploy.ContractPath, "GENMARKET_DEPLOY_CONTRACT_PATH")
	setStr(&cfg.Deploy.RecordPath, "GENMARKET_DEPLOY_RECORD_PATH")
	setStr(&cfg.Deploy.SnapshotPath, "GENMARKET_DEPLOY_SNAPSHOT_PATH")
	setStr(&cfg.Deploy.FailedReceiptPath, "GENMARKET_DEPLOY_FAILED_RECEIPT_PATH")
	setBool(&cfg.Deploy.LeaderOnly, "GENMARKET_DEPLOY_LEADER_ONLY")
	setBool(&cfg.Deploy.Publish, "GENMARKET_DEPLOY_PUBLISH")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "GENMARKET_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "GENMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "GENMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "GENMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "GENMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "GENMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "GENMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GENMARKET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GENMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GENMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GENMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "GENMARKET_REDIS_ENABLED")
	setStr(&cfg.Redis.URL, "GENMARKET_REDIS_URL")
	setStr(&cfg.Redis.Addr, "GENMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GENMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GENMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GENMARKET_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "GENMARKET_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "GENMARKET_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "GENMARKET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "GENMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GENMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "GENMARKET_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "GENMARKET_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "GENMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GENMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "GENMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "GENMARKET_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "GENMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "GENMARKET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "GENMARKET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "GENMARKET_SERVER_RATE_LIMIT")
	setStringSlice(&cfg.Server.TrustedProxies, "GENMARKET_SERVER_TRUSTED_PROXIES")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "GENMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "GENMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "GENMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "GENMARKET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "GENMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
