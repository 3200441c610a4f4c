// Package main runs the liquidify daemon: a scheduler that claims creator
// fees for every registered token and turns them into buybacks and, after
// graduation, burned pool liquidity.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"liquidify/internal/archive"
	"liquidify/internal/batch"
	"liquidify/internal/config"
	"liquidify/internal/engine"
	"liquidify/internal/feeclaim"
	"liquidify/internal/graduation"
	"liquidify/internal/liquidity"
	"liquidify/internal/lock"
	"liquidify/internal/observability"
	"liquidify/internal/secrets"
	"liquidify/internal/solana"
	"liquidify/internal/txn"
	"liquidify/internal/venue"
)

func main() {
	configPath := flag.String("config", os.Getenv("LIQUIDIFY_CONFIG"), "Path to TOML config file")
	once := flag.Bool("once", false, "Run a single batch and exit")
	mint := flag.String("mint", "", "Restrict cycles to one registered mint")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for /health, /metrics and /status (overrides config)")

	flag.Parse()

	logger := log.New(os.Stdout, "[liquidify] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(*useMemory); err != nil {
		logger.Fatal(err)
	}
	logConfig(logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()
	if *useMemory {
		logger.Println("Using in-memory storage, registry starts empty")
	}

	runner, closeRunner, err := buildRunner(ctx, cfg, stores)
	if err != nil {
		logger.Fatalf("Failed to build runner: %v", err)
	}
	defer closeRunner()

	server := &Server{
		cfg:     cfg,
		runner:  runner,
		stores:  stores,
		mint:    *mint,
		logger:  logger,
		started: time.Now(),
	}

	if *once {
		report, err := server.batch(ctx)
		if err != nil {
			logger.Fatalf("Batch failed: %v", err)
		}
		if report.Status() != "success" {
			os.Exit(2)
		}
		return
	}

	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// A cycle in flight waits for its transactions to reach a terminal
		// status, so a second signal is the only way to cut it short.
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-done:
		}
	}()

	httpServer := server.httpServer(cfg.Server.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.runScheduler(gctx)
	})
	g.Go(func() error {
		logger.Printf("Starting HTTP server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// buildRunner wires the chain clients, venue adapters, engine and sink.
func buildRunner(ctx context.Context, cfg *config.Config, stores *allStores) (*batch.Runner, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	thresholds, err := cfg.Engine.Thresholds()
	if err != nil {
		return nil, nil, err
	}

	keyring, err := secrets.NewKeyring(cfg.Keyring.Passphrase, cfg.Keyring.Iterations)
	if err != nil {
		return nil, nil, fmt.Errorf("keyring: %w", err)
	}

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL,
		solana.WithTimeout(cfg.Solana.Timeout.Duration),
		solana.WithMaxRetries(cfg.Solana.MaxRetries),
		solana.WithCommitment(cfg.Solana.Commitment),
		solana.WithLatencyObserver(observability.RecordRPCLatency),
	)

	var ws solana.WSClient
	if cfg.Solana.WSURL != "" {
		wsCfg := solana.DefaultWSConfig()
		wsCfg.Commitment = cfg.Solana.Commitment
		wsCfg.Logger = componentLogger("ws")
		wsClient, err := solana.NewWSClient(ctx, cfg.Solana.WSURL, &wsCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect websocket: %w", err)
		}
		closers = append(closers, func() { wsClient.Close() })
		ws = wsClient
	}

	submitter := txn.NewSubmitter(rpc, ws, txn.Options{
		Commitment: cfg.Solana.Commitment,
		Logger:     componentLogger("txn"),
	})

	httpClient := venue.NewRateLimitedClient(
		&http.Client{Timeout: cfg.Solana.Timeout.Duration},
		cfg.Venues.RequestInterval.Duration,
		cfg.Venues.RequestBurst,
	)
	pumpPortal := venue.NewPumpPortalClient(httpClient, cfg.Venues.PumpPortalURL)

	eng := engine.New(engine.Options{
		Claimer: feeclaim.NewPumpPortal(pumpPortal, submitter, cfg.Venues.PriorityFeeSOL),
		Venues: engine.Venues{
			BondingCurve: venue.NewPumpPortalBuyer(pumpPortal, submitter, rpc, venue.PumpPortalConfig{
				Pool:           venue.PoolPump,
				SlippagePct:    cfg.Venues.BondingSlippagePct,
				PriorityFeeSOL: cfg.Venues.PriorityFeeSOL,
			}),
			OpenMarket: venue.NewPumpPortalBuyer(pumpPortal, submitter, rpc, venue.PumpPortalConfig{
				Pool:           venue.PoolAuto,
				SlippagePct:    cfg.Venues.OpenMarketSlippagePct,
				PriorityFeeSOL: cfg.Venues.PriorityFeeSOL,
			}),
			Aggregator: venue.NewJupiter(httpClient, submitter, rpc, venue.JupiterConfig{
				Endpoint:    cfg.Venues.JupiterURL,
				SlippageBps: cfg.Venues.AggregatorSlippageBps,
			}),
		},
		Liquidity: liquidity.NewPumpSwap(rpc, submitter, liquidity.PumpSwapConfig{
			ComputeUnitPrice: cfg.Engine.ComputeUnitPrice,
			ComputeUnitLimit: cfg.Engine.ComputeUnitLimit,
		}),
		Resolver: graduation.NewResolver(httpClient, graduation.Options{
			PumpFunURL:     cfg.Venues.PumpFunURL,
			DexScreenerURL: cfg.Venues.DexScreenerURL,
			Logger:         componentLogger("graduation"),
		}),
		Chain:              rpc,
		Executor:           submitter,
		Thresholds:         thresholds,
		DepositSlippagePct: cfg.Engine.DepositSlippagePct,
		SettleTimeout:      cfg.Engine.SettleTimeout.Duration,
		SettlePollInterval: cfg.Engine.SettlePollInterval.Duration,
		Logger:             componentLogger("engine"),
	})

	sinkOpts := batch.SinkOptions{
		Registry: stores.registry,
		History:  stores.history,
		Metrics:  stores.metrics,
		Logger:   componentLogger("sink"),
	}
	if cfg.S3.Bucket != "" {
		archiver, err := archive.New(ctx, archive.Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("archive: %w", err)
		}
		sinkOpts.Archiver = archiver
	}

	runnerOpts := batch.RunnerOptions{
		Registry: stores.registry,
		Engine:   eng,
		Secrets:  keyring,
		Sink:     batch.NewSink(sinkOpts),
		LockTTL:  cfg.Scheduler.LockTTL.Duration,
		Logger:   componentLogger("batch"),
	}
	if cfg.Redis.Addr != "" {
		locks, err := lock.New(ctx, lock.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Logger:     componentLogger("lock"),
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { locks.Close() })
		runnerOpts.Locker = locks
	}

	return batch.NewRunner(runnerOpts), closeAll, nil
}

func componentLogger(name string) *log.Logger {
	return log.New(os.Stdout, "["+name+"] ", log.LstdFlags|log.Lshortfile)
}

// logConfig prints the active configuration with secrets redacted.
func logConfig(logger *log.Logger, cfg *config.Config) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg.Redacted()); err != nil {
		logger.Printf("Encode config: %v", err)
		return
	}
	logger.Printf("Active configuration:\n%s", buf.String())
}
