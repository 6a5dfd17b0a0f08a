package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Deploy.Finality, 2)
	assert.Equal(t, "FINALIZED", cfg.Deploy.Finality[0].Status)
	assert.Equal(t, 600, cfg.Deploy.Finality[0].Retries)
	assert.Equal(t, 100, cfg.Deploy.Finality[1].Retries)
	assert.Equal(t, time.Second, cfg.Deploy.Finality[1].Interval.Duration)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "studionet", cfg.Network.Name)
	assert.Equal(t, "contracts/prediction_market.py", cfg.Deploy.ContractPath)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genmarket.toml")
	doc := `
log_level = "debug"

[network]
name = "localnet"

[contract]
address = "0x1111111111111111111111111111111111111111"

[deploy]
args = ["genesis", 3]
lock_ttl = "5m"

[[deploy.finality]]
status = "ACCEPTED"
retries = 5
interval = "250ms"
multiplier = 1.5
max_interval = "2s"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	t.Setenv("GENLAYER_PRIVATE_KEY", "abc123")
	t.Setenv("GENMARKET_CONTRACT_ADDRESS", "0x2222222222222222222222222222222222222222")
	t.Setenv("GENMARKET_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("GENMARKET_SERVER_PORT", "not-a-number")
	t.Setenv("GENMARKET_SERVER_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "localnet", cfg.Network.Name)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", cfg.Contract.Address)
	assert.Equal(t, "abc123", cfg.Account.PrivateKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)
	assert.Equal(t, []any{"genesis", int64(3)}, cfg.Deploy.Args)
	assert.Equal(t, 5*time.Minute, cfg.Deploy.LockTTL.Duration)

	require.Len(t, cfg.Deploy.Finality, 1)
	tier := cfg.Deploy.Finality[0]
	assert.Equal(t, "ACCEPTED", tier.Status)
	assert.Equal(t, 5, tier.Retries)
	assert.Equal(t, 250*time.Millisecond, tier.Interval.Duration)
	assert.Equal(t, 1.5, tier.Multiplier)
	assert.Equal(t, 2*time.Second, tier.MaxInterval.Duration)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = "), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"custom network", func(c *Config) { c.Network.Name = "devnet" }, "rpc_url is required"},
		{"read state", func(c *Config) { c.Contract.ReadState = "latest" }, "unknown read_state"},
		{"account store", func(c *Config) { c.Account.Store = "browser" }, "unknown store"},
		{"redis store disabled", func(c *Config) { c.Account.Store = "redis" }, "requires redis.enabled"},
		{"no tiers", func(c *Config) { c.Deploy.Finality = nil }, "at least one finality tier"},
		{"tier status", func(c *Config) { c.Deploy.Finality[0].Status = "PENDING" }, "status must be ACCEPTED or FINALIZED"},
		{"tier retries", func(c *Config) { c.Deploy.Finality[1].Retries = 0 }, "retries must be >= 1"},
		{"tier multiplier", func(c *Config) { c.Deploy.Finality[0].Multiplier = 0.5 }, "multiplier must be >= 1"},
		{"server port", func(c *Config) { c.Server.Port = 70000 }, "server: port"},
		{"trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"lb.internal"} }, "trusted proxy \"lb.internal\""},
		{"s3 bucket", func(c *Config) { c.S3.Enabled = true; c.S3.Bucket = "" }, "s3: bucket"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Account.PrivateKey = "deadbeef"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Notify.TelegramToken = "tok"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Account.PrivateKey)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Account.Password)

	out.Deploy.Finality[0].Retries = 1
	out.Server.CORSOrigins[0] = "x"
	assert.Equal(t, 600, cfg.Deploy.Finality[0].Retries)
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
	assert.Equal(t, "deadbeef", cfg.Account.PrivateKey)
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	def := Defaults()
	assert.Equal(t, def.Deploy.Finality, cfg.Deploy.Finality)
	assert.Equal(t, def.Deploy.LockTTL, cfg.Deploy.LockTTL)
	assert.Equal(t, def.Account.Store, cfg.Account.Store)
	assert.Equal(t, def.Server, cfg.Server)
}
