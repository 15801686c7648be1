package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-relay/internal/adapters/driven/connectors"
	"github.com/custodia-labs/sercha-relay/internal/adapters/driven/connectors/airtable"
	"github.com/custodia-labs/sercha-relay/internal/adapters/driven/connectors/hubspot"
	"github.com/custodia-labs/sercha-relay/internal/adapters/driven/connectors/notion"
	"github.com/custodia-labs/sercha-relay/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-relay/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-relay/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-relay/internal/config"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-relay/internal/core/services"
	"github.com/custodia-labs/sercha-relay/internal/worker"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("sercha-relay exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("sercha-relay starting", "version", version, "addr", cfg.Addr())

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	httpClient := connectors.NewHTTPClient(cfg.HTTPTimeout)
	registry := connectors.NewRegistry(
		hubspot.NewConnector(nil, httpClient),
		airtable.NewConnector(nil, httpClient),
		notion.NewConnector(nil, httpClient),
	)

	integrationService := services.NewIntegrationService(services.IntegrationServiceConfig{
		Store:         store,
		Connectors:    registry,
		Providers:     cfg.Providers(),
		StateTTL:      cfg.StateTTL,
		CredentialTTL: cfg.CredentialTTL,
		Logger:        logger,
	})

	for _, pt := range integrationService.Providers() {
		logger.Info("provider enabled", "provider", pt)
	}

	server := http.NewServer(http.Config{
		Addr:           cfg.Addr(),
		Version:        version,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPM:   cfg.RateLimitRPM,
	}, integrationService, store, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})

	// Redis expires keys on its own; only table-backed stores need sweeping.
	if sweepable, ok := store.(driven.Sweepable); ok {
		sweeper := worker.NewSweeper(worker.SweeperConfig{
			Store:    sweepable,
			Interval: cfg.SweepInterval,
			Logger:   logger,
		})
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("sercha-relay stopped")
	return nil
}

// openStore selects Redis when REDIS_URL is set and PostgreSQL otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.KVStore, func(), error) {
	if cfg.RedisURL != "" {
		client, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("using redis store")
		return redisadapter.NewStore(client), func() { _ = client.Close() }, nil
	}

	db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	var encryptor *postgres.SecretEncryptor
	if cfg.EncryptionKey != "" {
		key, err := postgres.DeriveKey(cfg.EncryptionKey)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("derive encryption key: %w", err)
		}
		if encryptor, err = postgres.NewSecretEncryptor(key); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("create encryptor: %w", err)
		}
	} else {
		logger.Warn("ENCRYPTION_KEY not set, credentials are stored unencrypted")
	}

	logger.Info("using postgres store")
	return postgres.NewStore(db, encryptor), func() { _ = db.Close() }, nil
}
