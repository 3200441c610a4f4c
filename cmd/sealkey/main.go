// Package main seals an operating wallet secret with the daemon keyring and
// optionally registers the token it operates in the PostgreSQL registry.
//
// The secret is read from stdin (one line) unless -generate is set:
//
//	echo "<base58 secret>" | sealkey -config liquidify.toml
//	sealkey -generate -register -mint <mint> -symbol ABC
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"liquidify/internal/config"
	"liquidify/internal/domain"
	"liquidify/internal/secrets"
	"liquidify/internal/storage/migrations"
	pgstore "liquidify/internal/storage/postgres"
	"liquidify/internal/wallet"
)

func main() {
	configPath := flag.String("config", os.Getenv("LIQUIDIFY_CONFIG"), "Path to TOML config file")
	generate := flag.Bool("generate", false, "Generate a new operating wallet instead of reading stdin")
	register := flag.Bool("register", false, "Insert the token into the PostgreSQL registry")
	mint := flag.String("mint", "", "Token mint address (required with -register)")
	id := flag.String("id", "", "Registry ID (default: random UUID)")
	name := flag.String("name", "", "Token display name")
	symbol := flag.String("symbol", "", "Token ticker")
	status := flag.String("status", string(domain.TokenStatusPending), "Initial status (pending, bonding, graduated, paused)")
	splitRecipient := flag.String("split-recipient", "", "Fee split recipient address")
	splitBps := flag.Uint("split-bps", 0, "Fee split share in basis points (1-10000)")

	flag.Parse()

	// Sealed output goes to stdout, everything else to stderr.
	logger := log.New(os.Stderr, "[sealkey] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	keyring, err := secrets.NewKeyring(cfg.Keyring.Passphrase, cfg.Keyring.Iterations)
	if err != nil {
		logger.Fatalf("Keyring: %v (set LIQUIDIFY_KEYRING_PASSPHRASE)", err)
	}

	w, err := loadWallet(*generate)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Printf("Operating wallet: %s", w.Address())

	sealed, err := keyring.Seal(w.Secret())
	if err != nil {
		logger.Fatalf("Seal: %v", err)
	}

	if !*register {
		fmt.Println(sealed)
		return
	}

	token, err := buildToken(*id, *mint, *name, *symbol, *status, *splitRecipient, *splitBps, sealed)
	if err != nil {
		logger.Fatal(err)
	}
	if cfg.Postgres.DSN == "" {
		logger.Fatal("postgres dsn is required with -register")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	if cfg.Postgres.RunMigrations {
		if _, err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Postgres migrations: %v", err)
		}
	}

	if err := pgstore.NewTokenRegistry(pool).Insert(ctx, token); err != nil {
		logger.Fatalf("Register %s: %v", token.Mint, err)
	}
	logger.Printf("Registered %s (%s) as %s with status %s", token.Mint, token.Symbol, token.ID, token.Status)
	fmt.Println(sealed)
}

func loadWallet(generate bool) (*wallet.Wallet, error) {
	if generate {
		w, err := wallet.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate wallet: %w", err)
		}
		return w, nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("read secret from stdin: %w", err)
	}
	w, err := wallet.FromSecret(strings.TrimSpace(line))
	if err != nil {
		return nil, err
	}
	return w, nil
}

func buildToken(id, mint, name, symbol, status, splitRecipient string, splitBps uint, sealed string) (*domain.TokenRecord, error) {
	if mint == "" {
		return nil, fmt.Errorf("-mint is required with -register")
	}
	if id == "" {
		id = uuid.NewString()
	}

	st := domain.TokenStatus(status)
	if !st.IsValid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}

	var split *domain.FeeSplitPolicy
	if splitRecipient != "" || splitBps != 0 {
		split = &domain.FeeSplitPolicy{Recipient: splitRecipient, Bps: uint32(splitBps)}
		if splitBps > domain.MaxBps || !split.IsValid() {
			return nil, fmt.Errorf("fee split needs a recipient and 1-%d bps", domain.MaxBps)
		}
	}

	now := time.Now().UnixMilli()
	return &domain.TokenRecord{
		ID:                 id,
		Mint:               mint,
		Name:               name,
		Symbol:             symbol,
		SealedWalletSecret: sealed,
		Status:             st,
		FeeSplit:           split,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}
