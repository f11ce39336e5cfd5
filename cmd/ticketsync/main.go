package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ticketsync/internal/chain"
	"ticketsync/internal/config"
	"ticketsync/internal/reconcile"
	"ticketsync/internal/storage"
	"ticketsync/internal/storage/postgres"
	"ticketsync/internal/syncer"
)

func main() {
	root := &cobra.Command{
		Use:          "ticketsync",
		Short:        "Ticketing chain sync daemon",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon",
		RunE:  runDaemon,
	}
	addSyncFlags(runCmd)
	root.AddCommand(runCmd)

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Sync a bounded round range and exit",
		RunE:  runBackfill,
	}
	addSyncFlags(backfillCmd)
	backfillCmd.Flags().Uint64("from", 0, "start round (inclusive)")
	backfillCmd.Flags().Uint64("to", 0, "end round (inclusive), 0 means until caught up")
	root.AddCommand(backfillCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("app-id", 0, "ticketing application id (0 disables sync)")
	cmd.Flags().String("indexer-url", "https://testnet-idx.algonode.cloud", "indexer base URL")
	cmd.Flags().String("indexer-token", "", "indexer API token")
	cmd.Flags().Duration("poll-interval", 5*time.Second, "sleep between poll cycles")
	cmd.Flags().Uint32("page-limit", 50, "max transactions per query")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (empty uses in-memory store)")
	cmd.Flags().String("cursor-path", "./data/cursor.json", "cursor file path (DSN-less runs)")
	cmd.Flags().Bool("resolve-payments", true, "resolve transfer prices via group lookup")
	cmd.Flags().Int("max-retries", 5, "indexer query retries per cycle")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, cleanup, err := buildScheduler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("ticketsync start",
		zap.Uint64("app_id", cfg.AppID),
		zap.String("indexer_url", cfg.IndexerURL),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	if err := sched.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("shutdown requested")
			return nil
		}
		return err
	}
	return nil
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	from, _ := cmd.Flags().GetUint64("from")
	to, _ := cmd.Flags().GetUint64("to")
	if to > 0 && from > to {
		return fmt.Errorf("from round must be <= to round")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, cleanup, err := buildScheduler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("backfill start",
		zap.Uint64("app_id", cfg.AppID),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
	)

	return sched.Backfill(ctx, from, to)
}

// buildScheduler wires the pipeline: indexer client, store, engine,
// scheduler. Everything is constructed here and passed down; no component
// reaches for a shared global.
func buildScheduler(ctx context.Context, cfg config.Config, logger *zap.Logger) (*syncer.Scheduler, func(), error) {
	client := chain.NewClient(cfg.IndexerURL, cfg.IndexerToken)

	var (
		store   storage.Store
		cursors syncer.CursorStore
		cleanup = func() {}
	)
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store = pgStore
		cursors = &syncer.DBCursorStore{Store: pgStore, Name: "ticketsync"}
		cleanup = pgStore.Close
	} else {
		logger.Warn("no pg dsn configured, using in-memory store")
		store = storage.NewMemoryStore()
		cursors = &syncer.FileCursorStore{Path: cfg.CursorPath}
	}

	var custody string
	if cfg.AppID > 0 {
		custody = chain.AppAddress(cfg.AppID)
	}

	var payments reconcile.PaymentResolver
	if cfg.ResolvePayments {
		payments = client
	}

	engine := reconcile.NewEngine(cfg.AppID, custody, store, payments, logger)
	sched := syncer.New(syncer.Config{
		AppID:        cfg.AppID,
		PollInterval: cfg.PollInterval,
		PageLimit:    cfg.PageLimit,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, client, engine, cursors, logger)

	return sched, cleanup, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
