package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when empty) over Defaults,
// loads .env if present and applies LIQUIDIFY_* overrides.
// The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets operators inject endpoints and secrets at deploy
// time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// Solana
	setStr(&cfg.Solana.RPCURL, "LIQUIDIFY_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WSURL, "LIQUIDIFY_SOLANA_WS_URL")
	setStr(&cfg.Solana.Commitment, "LIQUIDIFY_SOLANA_COMMITMENT")

	// Venues
	setStr(&cfg.Venues.PumpPortalURL, "LIQUIDIFY_PUMPPORTAL_URL")
	setStr(&cfg.Venues.JupiterURL, "LIQUIDIFY_JUPITER_URL")
	setStr(&cfg.Venues.PumpFunURL, "LIQUIDIFY_PUMPFUN_URL")
	setStr(&cfg.Venues.DexScreenerURL, "LIQUIDIFY_DEXSCREENER_URL")
	setFloat64(&cfg.Venues.PriorityFeeSOL, "LIQUIDIFY_PRIORITY_FEE_SOL")

	// Engine
	setStr(&cfg.Engine.Dust, "LIQUIDIFY_DUST_SOL")
	setStr(&cfg.Engine.ClaimCeiling, "LIQUIDIFY_CLAIM_CEILING_SOL")
	setStr(&cfg.Engine.TxFeeReserve, "LIQUIDIFY_TX_FEE_RESERVE_SOL")
	setStr(&cfg.Engine.MinSpendable, "LIQUIDIFY_MIN_SPENDABLE_SOL")

	// Scheduler
	setDuration(&cfg.Scheduler.Interval, "LIQUIDIFY_SCHEDULER_INTERVAL")
	setDuration(&cfg.Scheduler.InitialDelay, "LIQUIDIFY_SCHEDULER_INITIAL_DELAY")

	// Storage
	setStr(&cfg.Postgres.DSN, "LIQUIDIFY_POSTGRES_DSN")
	setBool(&cfg.Postgres.RunMigrations, "LIQUIDIFY_POSTGRES_RUN_MIGRATIONS")
	setStr(&cfg.ClickHouse.DSN, "LIQUIDIFY_CLICKHOUSE_DSN")

	// Redis
	setStr(&cfg.Redis.Addr, "LIQUIDIFY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LIQUIDIFY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LIQUIDIFY_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "LIQUIDIFY_REDIS_TLS_ENABLED")

	// S3
	setStr(&cfg.S3.Endpoint, "LIQUIDIFY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LIQUIDIFY_S3_REGION")
	setStr(&cfg.S3.Bucket, "LIQUIDIFY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LIQUIDIFY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LIQUIDIFY_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "LIQUIDIFY_S3_FORCE_PATH_STYLE")

	// Keyring
	setStr(&cfg.Keyring.Passphrase, "LIQUIDIFY_KEYRING_PASSPHRASE")

	// Server
	setStr(&cfg.Server.MetricsAddr, "LIQUIDIFY_METRICS_ADDR")
}

// Typed env helpers. Each only mutates the target when the variable is set
// and parses.

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
