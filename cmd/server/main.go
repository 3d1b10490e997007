// Package main provides the API server entry point for the stream indexer.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/stream-indexer/internal/api"
	"github.com/stream-indexer/internal/chain"
	"github.com/stream-indexer/internal/config"
	"github.com/stream-indexer/internal/indexer"
	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/resolver"
	"github.com/stream-indexer/internal/service"
	"github.com/stream-indexer/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	// Postgres is the system of record and always required.
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	// ClickHouse mirrors the event log for analytics. Optional: the stats
	// endpoints aggregate from Postgres when it is not configured.
	var clickhouseDB *storage.ClickHouseDB
	if cfg.Database.ClickHouse.Host != "" {
		clickhouseDB, err = storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable, stats will aggregate from Postgres")
			clickhouseDB = nil
		} else {
			defer clickhouseDB.Close()
		}
	}

	// Redis caches resolved wallets, token metadata and status reads.
	// Optional: everything degrades to direct lookups without it.
	var cacheService *storage.CacheService
	if cfg.Database.Redis.Host != "" {
		redisCache, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without caches")
		} else {
			defer redisCache.Close()
			cacheService = storage.NewCacheService(redisCache, cfg.Cache)
		}
	}

	logger.Info("Database connections established")

	chainClient := chain.NewClient(&cfg.Chain)

	deploymentRepo := storage.NewDeploymentRepository(postgres)
	accountRepo := storage.NewAccountRepository(postgres)
	streamRepo := storage.NewStreamRepository(postgres)
	splitRepo := storage.NewSplitRepository(postgres)
	eventRepo := storage.NewEventRepository(postgres)
	syncRepo := storage.NewSyncRepository(postgres)
	tokenRepo := storage.NewTokenRepository(postgres)
	syncLock := storage.NewSyncLock(postgres)

	seedDeployments(deploymentRepo, cfg.Chain.KnownDeployments, cfg.Chain.Network, logger)

	var walletCache resolver.WalletCache
	var tokenCache service.TokenCache
	var statusCache api.StatusCache
	if cacheService != nil {
		walletCache = cacheService
		tokenCache = cacheService
		statusCache = cacheService
	}
	identityResolver := resolver.NewResolver(chainClient, walletCache)

	var mirror indexer.EventMirror
	var analytics service.AggregateSource
	if clickhouseDB != nil {
		analyticsRepo := storage.NewEventAnalyticsRepository(clickhouseDB)
		mirror = analyticsRepo
		analytics = analyticsRepo
	}

	fetcher := indexer.NewFetcher(chainClient)
	reconciler := indexer.NewReconciler(accountRepo, streamRepo, splitRepo, eventRepo, identityResolver, mirror)
	scheduler := indexer.NewScheduler(
		chainClient, fetcher, reconciler,
		syncRepo, syncRepo, deploymentRepo, syncLock,
		cfg.Sync.Cooldown, cfg.Sync.BatchSize,
	)
	discovery := indexer.NewDiscovery(chainClient, syncRepo, deploymentRepo, cfg.Chain.Network)

	syncService := service.NewSyncService(scheduler, discovery, deploymentRepo, syncRepo, accountRepo)
	statsService := service.NewStatsService(analytics, eventRepo, tokenRepo, tokenCache, chainClient, loadPrices(logger))

	serverConfig := api.DefaultServerConfig(cfg.Server.Host, cfg.Server.Port)
	server := api.NewServer(serverConfig, syncService, statsService, statusCache)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// seedDeployments registers the configured protocol instances so syncing
// works before any discovery pass has run. Register is idempotent.
func seedDeployments(repo *storage.DeploymentRepository, addresses []string, network string, logger *logging.Logger) {
	ctx := context.Background()
	for _, address := range addresses {
		err := repo.Register(ctx, &models.Deployment{Address: address, Network: network})
		if err != nil {
			logger.WithError(err).WithField("deployment", address).Warn("Failed to seed deployment")
			continue
		}
		logger.WithField("deployment", address).Info("Seeded known deployment")
	}
}

// loadPrices reads a fixed token price table from TOKEN_PRICES, a JSON map
// of token address to USD price. Without it the stats endpoints omit USD
// fields.
func loadPrices(logger *logging.Logger) service.PriceProvider {
	raw := os.Getenv("TOKEN_PRICES")
	if raw == "" {
		return nil
	}

	prices := make(map[string]float64)
	if err := json.Unmarshal([]byte(raw), &prices); err != nil {
		logger.WithError(err).Warn("Invalid TOKEN_PRICES, USD conversion disabled")
		return nil
	}
	return &service.FixedPriceProvider{Prices: prices}
}
