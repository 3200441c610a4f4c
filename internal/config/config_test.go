package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidify/internal/engine"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Keyring.Passphrase = "test-passphrase"
	cfg.Postgres.DSN = "postgres://localhost/liquidify"
	return cfg
}

func TestDefaults_MatchEngineThresholds(t *testing.T) {
	th, err := Defaults().Engine.Thresholds()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultThresholds(), th)
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate(false))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Solana.RPCURL = ""
	cfg.Solana.Commitment = "max"
	cfg.Engine.Dust = "abc"
	cfg.Scheduler.Interval = Duration{}
	cfg.Keyring.Passphrase = ""

	err := cfg.Validate(false)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "rpc_url")
	assert.Contains(t, msg, "commitment")
	assert.Contains(t, msg, "dust_sol")
	assert.Contains(t, msg, "interval")
	assert.Contains(t, msg, "passphrase")
}

func TestValidate_Postgres(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.DSN = ""

	assert.Error(t, cfg.Validate(false))
	assert.NoError(t, cfg.Validate(true))
}

func TestValidate_InconsistentThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.Dust = "1"
	cfg.Engine.ClaimCeiling = "0.5"

	err := cfg.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dust threshold")
}

func TestEngineConfig_Thresholds(t *testing.T) {
	c := EngineConfig{
		Dust:         "0.0002",
		ClaimCeiling: "1",
		TxFeeReserve: "0.001",
		MinSpendable: "0.01",
	}
	th, err := c.Thresholds()
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000), th.Dust)
	assert.Equal(t, uint64(1_000_000_000), th.ClaimCeiling)
	assert.Equal(t, uint64(1_000_000), th.TxFeeReserve)
	assert.Equal(t, uint64(10_000_000), th.MinSpendable)

	c.MinSpendable = "0.0000000001"
	_, err = c.Thresholds()
	assert.Error(t, err)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "liquidify.toml")
	content := `
[solana]
rpc_url = "https://rpc.example.com"
commitment = "finalized"

[engine]
min_spendable_sol = "0.002"
settle_timeout = "45s"

[scheduler]
interval = "2m"

[redis]
addr = "localhost:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("LIQUIDIFY_KEYRING_PASSPHRASE", "from-env")
	t.Setenv("LIQUIDIFY_SOLANA_WS_URL", "wss://rpc.example.com")
	t.Setenv("LIQUIDIFY_SCHEDULER_INTERVAL", "90s")
	t.Setenv("LIQUIDIFY_REDIS_DB", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com", cfg.Solana.RPCURL)
	assert.Equal(t, "finalized", cfg.Solana.Commitment)
	assert.Equal(t, "wss://rpc.example.com", cfg.Solana.WSURL)
	assert.Equal(t, "0.002", cfg.Engine.MinSpendable)
	assert.Equal(t, 45*time.Second, cfg.Engine.SettleTimeout.Duration)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.Interval.Duration)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "from-env", cfg.Keyring.Passphrase)

	// Untouched values keep their defaults
	assert.Equal(t, "0.0001", cfg.Engine.Dust)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.InitialDelay.Duration)

	assert.NoError(t, cfg.Validate(true))
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval.Duration)
}

func TestLoad_ExampleFile(t *testing.T) {
	t.Setenv("LIQUIDIFY_KEYRING_PASSPHRASE", "example")

	cfg, err := Load(filepath.Join("..", "..", "config", "liquidify.example.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate(false))

	defaults := Defaults()
	assert.Equal(t, defaults.Engine, cfg.Engine)
	assert.Equal(t, defaults.Venues, cfg.Venues)
	assert.Equal(t, defaults.Scheduler, cfg.Scheduler)
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[scheduler]
interval = "soon"`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.S3.SecretKey = "s3-secret"
	cfg.Redis.Password = ""

	r := cfg.Redacted()
	assert.Equal(t, "***", r.Keyring.Passphrase)
	assert.Equal(t, "***", r.Postgres.DSN)
	assert.Equal(t, "***", r.S3.SecretKey)
	assert.Equal(t, "", r.Redis.Password)

	// Original is untouched
	assert.Equal(t, "test-passphrase", cfg.Keyring.Passphrase)
}
