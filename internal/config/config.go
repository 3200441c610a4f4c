// Package config defines the daemon configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"liquidify/internal/domain"
	"liquidify/internal/engine"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then overridden by LIQUIDIFY_* environment variables.
type Config struct {
	Solana     SolanaConfig     `toml:"solana"`
	Venues     VenuesConfig     `toml:"venues"`
	Engine     EngineConfig     `toml:"engine"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Postgres   PostgresConfig   `toml:"postgres"`
	ClickHouse ClickHouseConfig `toml:"clickhouse"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Keyring    KeyringConfig    `toml:"keyring"`
	Server     ServerConfig     `toml:"server"`
}

// SolanaConfig holds node endpoints.
type SolanaConfig struct {
	RPCURL     string   `toml:"rpc_url"`
	WSURL      string   `toml:"ws_url"` // optional, enables signature subscriptions
	Commitment string   `toml:"commitment"`
	Timeout    Duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
}

// VenuesConfig holds external API endpoints and trade parameters.
type VenuesConfig struct {
	PumpPortalURL         string   `toml:"pumpportal_url"`
	JupiterURL            string   `toml:"jupiter_url"`
	PumpFunURL            string   `toml:"pumpfun_url"`
	DexScreenerURL        string   `toml:"dexscreener_url"`
	RequestInterval       Duration `toml:"request_interval"`
	RequestBurst          int      `toml:"request_burst"`
	BondingSlippagePct    int      `toml:"bonding_slippage_pct"`
	OpenMarketSlippagePct int      `toml:"open_market_slippage_pct"`
	AggregatorSlippageBps int      `toml:"aggregator_slippage_bps"`
	PriorityFeeSOL        float64  `toml:"priority_fee_sol"`
}

// EngineConfig holds cycle thresholds. Amounts are decimal SOL strings.
type EngineConfig struct {
	Dust               string   `toml:"dust_sol"`
	ClaimCeiling       string   `toml:"claim_ceiling_sol"`
	TxFeeReserve       string   `toml:"tx_fee_reserve_sol"`
	MinSpendable       string   `toml:"min_spendable_sol"`
	DepositSlippagePct int      `toml:"deposit_slippage_pct"`
	SettleTimeout      Duration `toml:"settle_timeout"`
	SettlePollInterval Duration `toml:"settle_poll_interval"`
	ComputeUnitPrice   uint64   `toml:"compute_unit_price"`
	ComputeUnitLimit   uint32   `toml:"compute_unit_limit"`
}

// SchedulerConfig controls batch timing.
type SchedulerConfig struct {
	InitialDelay Duration `toml:"initial_delay"`
	Interval     Duration `toml:"interval"`
	LockTTL      Duration `toml:"lock_ttl"`
}

// PostgresConfig holds the registry database. Empty DSN requires -use-memory.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ClickHouseConfig holds the analytics database. Empty DSN disables analytics.
type ClickHouseConfig struct {
	DSN string `toml:"dsn"`
}

// RedisConfig holds the lock backend. Empty Addr disables distributed locks.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the cycle archive. Empty Bucket disables archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// KeyringConfig holds the passphrase that opens sealed wallet secrets.
type KeyringConfig struct {
	Passphrase string `toml:"passphrase"`
	Iterations int    `toml:"iterations"`
}

// ServerConfig holds the HTTP listener for /health, /metrics and /status.
type ServerConfig struct {
	MetricsAddr string `toml:"metrics_addr"`
}

// Duration wraps time.Duration for TOML string decoding ("5m", "30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			Commitment: "confirmed",
			Timeout:    Duration{30 * time.Second},
			MaxRetries: 3,
		},
		Venues: VenuesConfig{
			PumpPortalURL:         "https://pumpportal.fun/api/trade-local",
			JupiterURL:            "https://lite-api.jup.ag/swap/v1",
			PumpFunURL:            "https://frontend-api.pump.fun",
			DexScreenerURL:        "https://api.dexscreener.com",
			RequestInterval:       Duration{200 * time.Millisecond},
			RequestBurst:          5,
			BondingSlippagePct:    25,
			OpenMarketSlippagePct: 25,
			AggregatorSlippageBps: 300,
			PriorityFeeSOL:        0.0005,
		},
		Engine: EngineConfig{
			Dust:               "0.0001",
			ClaimCeiling:       "0.5",
			TxFeeReserve:       "0.0005",
			MinSpendable:       "0.001",
			DepositSlippagePct: 10,
			SettleTimeout:      Duration{30 * time.Second},
			SettlePollInterval: Duration{time.Second},
			ComputeUnitPrice:   100_000,
			ComputeUnitLimit:   300_000,
		},
		Scheduler: SchedulerConfig{
			InitialDelay: Duration{10 * time.Second},
			Interval:     Duration{time.Minute},
			LockTTL:      Duration{5 * time.Minute},
		},
		Postgres: PostgresConfig{RunMigrations: true},
		S3:       S3Config{Region: "us-east-1", Prefix: "cycles", UseSSL: true},
		Server:   ServerConfig{MetricsAddr: ":9090"},
	}
}

// Thresholds converts the SOL-denominated engine thresholds to lamports.
func (c EngineConfig) Thresholds() (engine.Thresholds, error) {
	var t engine.Thresholds
	fields := []struct {
		name string
		in   string
		out  *uint64
	}{
		{"dust_sol", c.Dust, &t.Dust},
		{"claim_ceiling_sol", c.ClaimCeiling, &t.ClaimCeiling},
		{"tx_fee_reserve_sol", c.TxFeeReserve, &t.TxFeeReserve},
		{"min_spendable_sol", c.MinSpendable, &t.MinSpendable},
	}
	for _, f := range fields {
		v, err := domain.ParseSOL(f.in)
		if err != nil {
			return engine.Thresholds{}, fmt.Errorf("engine.%s: %w", f.name, err)
		}
		*f.out = v
	}
	if err := t.Validate(); err != nil {
		return engine.Thresholds{}, fmt.Errorf("engine: %w", err)
	}
	return t, nil
}

var validCommitments = map[string]bool{
	"processed": true,
	"confirmed": true,
	"finalized": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found. useMemory relaxes the
// database requirement.
func (c *Config) Validate(useMemory bool) error {
	var errs []string

	if strings.TrimSpace(c.Solana.RPCURL) == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}
	if !validCommitments[c.Solana.Commitment] {
		errs = append(errs, fmt.Sprintf("solana: unknown commitment %q (valid: processed, confirmed, finalized)", c.Solana.Commitment))
	}
	if c.Solana.MaxRetries < 0 {
		errs = append(errs, "solana: max_retries must be >= 0")
	}

	if c.Venues.PumpPortalURL == "" {
		errs = append(errs, "venues: pumpportal_url must not be empty")
	}
	if c.Venues.BondingSlippagePct <= 0 || c.Venues.BondingSlippagePct > 100 {
		errs = append(errs, "venues: bonding_slippage_pct must be 1-100")
	}
	if c.Venues.OpenMarketSlippagePct <= 0 || c.Venues.OpenMarketSlippagePct > 100 {
		errs = append(errs, "venues: open_market_slippage_pct must be 1-100")
	}
	if c.Venues.AggregatorSlippageBps <= 0 || c.Venues.AggregatorSlippageBps > domain.MaxBps {
		errs = append(errs, "venues: aggregator_slippage_bps must be 1-10000")
	}
	if c.Venues.PriorityFeeSOL < 0 {
		errs = append(errs, "venues: priority_fee_sol must be >= 0")
	}
	if c.Venues.RequestBurst < 1 {
		errs = append(errs, "venues: request_burst must be >= 1")
	}

	if _, err := c.Engine.Thresholds(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Engine.DepositSlippagePct <= 0 || c.Engine.DepositSlippagePct > 100 {
		errs = append(errs, "engine: deposit_slippage_pct must be 1-100")
	}
	if c.Engine.SettleTimeout.Duration <= 0 {
		errs = append(errs, "engine: settle_timeout must be positive")
	}
	if c.Engine.SettlePollInterval.Duration <= 0 {
		errs = append(errs, "engine: settle_poll_interval must be positive")
	}

	if c.Scheduler.Interval.Duration <= 0 {
		errs = append(errs, "scheduler: interval must be positive")
	}
	if c.Scheduler.InitialDelay.Duration < 0 {
		errs = append(errs, "scheduler: initial_delay must be >= 0")
	}
	if c.Redis.Addr != "" && c.Scheduler.LockTTL.Duration <= 0 {
		errs = append(errs, "scheduler: lock_ttl must be positive when redis is configured")
	}

	if !useMemory && strings.TrimSpace(c.Postgres.DSN) == "" {
		errs = append(errs, "postgres: dsn must not be empty (or run with -use-memory)")
	}
	if c.S3.Bucket != "" && c.S3.Region == "" {
		errs = append(errs, "s3: region is required when bucket is set")
	}
	if c.Keyring.Passphrase == "" {
		errs = append(errs, "keyring: passphrase must not be empty (set LIQUIDIFY_KEYRING_PASSPHRASE)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
