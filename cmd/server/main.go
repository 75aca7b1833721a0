// Package main runs the wallet engine REST server with Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-wallet-engine/internal/api"
	"solana-wallet-engine/internal/config"
	"solana-wallet-engine/internal/executor"
	"solana-wallet-engine/internal/logger"
	"solana-wallet-engine/internal/observability"
	"solana-wallet-engine/internal/solana"
	"solana-wallet-engine/internal/storage"
	chstore "solana-wallet-engine/internal/storage/clickhouse"
	"solana-wallet-engine/internal/storage/memory"
	"solana-wallet-engine/internal/storage/migrations"
	pgstore "solana-wallet-engine/internal/storage/postgres"
	redisstore "solana-wallet-engine/internal/storage/redis"
	"solana-wallet-engine/internal/swap"
	"solana-wallet-engine/internal/wallet"
)

// stores holds the storage implementations the service runs on.
type stores struct {
	wallets storage.WalletStore
	samples storage.ThroughputSampleStore
	locker  storage.WalletLocker
}

func main() {
	config.LoadEnvFile(".env")

	configPath := flag.String("config", os.Getenv("WALLET_CONFIG"), "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := createStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	svc := newService(cfg, log, st)
	apiServer := api.NewServer(svc, log).HTTPServer(cfg.HTTP.Addr)

	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", observability.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux, ReadTimeout: 15 * time.Second}

	errCh := make(chan error, 2)
	for _, srv := range []*http.Server{apiServer, metricsServer} {
		srv := srv
		go func() {
			log.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("received signal, initiating graceful shutdown")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{apiServer, metricsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	log.Info("shutdown complete")
	return nil
}

func newService(cfg *config.Config, log *zap.Logger, st *stores) *wallet.Service {
	endpoint := cfg.RPC.Endpoint
	if endpoint == "" {
		endpoint = solana.EndpointFor(cfg.RPC.Network)
	}
	ledger := solana.NewHTTPClient(endpoint,
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithCommitment(cfg.RPC.Commitment),
		solana.WithRateLimit(cfg.RPC.RateLimit),
	)

	exec := executor.New(ledger,
		executor.WithLogger(log),
		executor.WithPollInterval(cfg.Executor.PollInterval),
	)

	opts := []wallet.Option{
		wallet.WithLogger(log),
		wallet.WithExecutor(exec),
		wallet.WithConfirmBudget(cfg.Executor.ConfirmBudget),
		wallet.WithSampleStore(st.samples),
		wallet.WithLocker(st.locker),
	}
	if cfg.Swap.QuoteEndpoint != "" {
		quotes := swap.NewQuoteClient(cfg.Swap.QuoteEndpoint,
			swap.BreakerConfig{MaxFailures: cfg.Swap.BreakerMaxFailures, OpenTimeout: cfg.Swap.BreakerOpenTimeout},
			swap.WithQuoteTimeout(cfg.Swap.Timeout),
			swap.WithQuoteLogger(log),
		)
		opts = append(opts, wallet.WithQuoteSource(quotes))
	}

	log.Info("wallet engine configured",
		zap.String("rpc", endpoint),
		zap.Bool("use_memory", cfg.UseMemory),
		zap.Bool("swap", cfg.Swap.QuoteEndpoint != ""))
	return wallet.NewService(ledger, st.wallets, opts...)
}

// createStores opens the configured backends. Without ClickHouse the sample
// history is kept in memory; without Redis wallet locks are process-local.
func createStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, func(), error) {
	st := &stores{
		wallets: memory.NewWalletStore(),
		samples: memory.NewThroughputSampleStore(),
		locker:  memory.NewWalletLocker(),
	}
	if cfg.UseMemory {
		return st, func() {}, nil
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, pool.Close)
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	st.wallets = pgstore.NewWalletStore(pool)

	// ClickHouse
	if cfg.ClickHouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { _ = chConn.Close() })
		st.samples = chstore.NewThroughputSampleStore(chConn)
	} else {
		log.Warn("clickhouse_dsn not set, throughput history kept in memory")
	}

	// Redis
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		st.locker = redisstore.NewWalletLocker(rdb)
	} else {
		log.Warn("redis_addr not set, wallet locks are process-local")
	}

	return st, cleanup, nil
}
