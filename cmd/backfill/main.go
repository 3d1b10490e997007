// Package main provides a backfill worker that drains deployment backlogs.
// It loops every registered deployment with forced sync runs until no
// deployment reports more work, then exits.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stream-indexer/internal/chain"
	"github.com/stream-indexer/internal/config"
	"github.com/stream-indexer/internal/indexer"
	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/resolver"
	"github.com/stream-indexer/internal/storage"
)

func main() {
	var (
		deployment = flag.String("deployment", "", "Backfill a single deployment address (default: all registered)")
		pause      = flag.Duration("pause", 500*time.Millisecond, "Pause between sync runs")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	var mirror indexer.EventMirror
	if cfg.Database.ClickHouse.Host != "" {
		clickhouseDB, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable, backfilling without analytics mirror")
		} else {
			defer clickhouseDB.Close()
			mirror = storage.NewEventAnalyticsRepository(clickhouseDB)
		}
	}

	chainClient := chain.NewClient(&cfg.Chain)

	deploymentRepo := storage.NewDeploymentRepository(postgres)
	accountRepo := storage.NewAccountRepository(postgres)
	streamRepo := storage.NewStreamRepository(postgres)
	splitRepo := storage.NewSplitRepository(postgres)
	eventRepo := storage.NewEventRepository(postgres)
	syncRepo := storage.NewSyncRepository(postgres)
	syncLock := storage.NewSyncLock(postgres)

	identityResolver := resolver.NewResolver(chainClient, nil)
	fetcher := indexer.NewFetcher(chainClient)
	reconciler := indexer.NewReconciler(accountRepo, streamRepo, splitRepo, eventRepo, identityResolver, mirror)
	scheduler := indexer.NewScheduler(
		chainClient, fetcher, reconciler,
		syncRepo, syncRepo, deploymentRepo, syncLock,
		cfg.Sync.Cooldown, cfg.Sync.BatchSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Shutdown requested, finishing current run")
		cancel()
	}()

	targets, err := backfillTargets(ctx, deploymentRepo, *deployment)
	if err != nil {
		logger.WithError(err).Fatal("Failed to list deployments")
	}
	if len(targets) == 0 {
		logger.Warn("No deployments registered, nothing to backfill")
		return
	}

	logger.WithField("deployments", len(targets)).Info("Backfill starting")

	pending := make(map[string]bool, len(targets))
	for _, t := range targets {
		pending[t] = true
	}

	for len(pending) > 0 && ctx.Err() == nil {
		for target := range pending {
			result, err := scheduler.SyncDeployment(ctx, target, indexer.RunOptions{Force: true})
			if err != nil {
				logger.WithError(err).WithField("deployment", target).Error("Sync run failed")
				delete(pending, target)
				continue
			}

			log := logger.WithFields(map[string]interface{}{
				"deployment": target,
				"cursor":     result.Cursor,
				"events":     result.EventsProcessed,
			})

			switch {
			case result.Degraded:
				log.WithField("reason", result.DegradedReason).Warn("Run degraded, will retry")
			case !result.HasMore:
				log.Info("Deployment caught up")
				delete(pending, target)
			default:
				log.Info("Backfill progress")
			}

			select {
			case <-ctx.Done():
			case <-time.After(*pause):
			}
		}
	}

	logger.Info("Backfill complete")
}

func backfillTargets(ctx context.Context, repo *storage.DeploymentRepository, single string) ([]string, error) {
	if single != "" {
		return []string{single}, nil
	}

	deployments, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}

	targets := make([]string, len(deployments))
	for i, d := range deployments {
		targets[i] = d.Address
	}
	return targets, nil
}
