package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/payroll-ledger/api"
	"github.com/nspcc-dev/payroll-ledger/config"
	"github.com/nspcc-dev/payroll-ledger/payroll"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file, PAYROLL_* environment variables override it")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(fmt.Errorf("load config: %w", err))
	}

	logger, err := newLogger(cfg.Logger)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err = run(ctx, cfg, logger)
	cancel()
	_ = logger.Sync()

	if err != nil {
		log.Fatal(err)
	}
}

func newLogger(cfg config.Logger) (*zap.Logger, error) {
	lvl, err := cfg.ZapLevel()
	if err != nil {
		return nil, err
	}

	c := zap.NewProductionConfig()
	c.Level = lvl
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := c.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open ledger storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close ledger storage", zap.Error(err))
		}
	}()

	r, closeRail, err := newRail(ctx, cfg.Rail, logger)
	if err != nil {
		return err
	}
	defer closeRail()

	prm, err := cfg.Payroll.Prm()
	if err != nil {
		return err
	}
	opts, err := cfg.Payroll.Options()
	if err != nil {
		return err
	}

	metrics := api.NewMetrics()

	l, err := payroll.Open(store, r, prm, append(opts,
		payroll.WithLogger(logger),
		payroll.WithSubscriber(metrics.HandleEvent),
	)...)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	if err := metrics.WatchLedger(l); err != nil {
		return fmt.Errorf("register ledger metrics: %w", err)
	}

	srv, err := api.New(api.Prm{
		Address:         cfg.API.Address,
		Ledger:          l,
		Metrics:         metrics,
		Logger:          logger,
		RateLimit:       cfg.API.RateLimit,
		RateBurst:       cfg.API.RateBurst,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("init API server: %w", err)
	}

	logger.Info("payroll daemon started",
		zap.String("address", cfg.API.Address),
		zap.String("storage", cfg.Storage.Type),
		zap.String("rail", cfg.Rail.Type))

	err = srv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("API server: %w", err)
	}

	logger.Info("payroll daemon stopped")

	return nil
}
