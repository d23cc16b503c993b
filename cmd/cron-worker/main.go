package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/DarkSmileee/BlockShelf/internal/backup"
	"github.com/DarkSmileee/BlockShelf/internal/collab"
	"github.com/DarkSmileee/BlockShelf/internal/cron"
	"github.com/DarkSmileee/BlockShelf/internal/inventory"
	"github.com/DarkSmileee/BlockShelf/internal/share"
	"github.com/DarkSmileee/BlockShelf/internal/users"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
	"github.com/DarkSmileee/BlockShelf/pkg/metrics"
	"github.com/DarkSmileee/BlockShelf/pkg/migrate"
	"github.com/DarkSmileee/BlockShelf/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	collector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	purgeJob, err := cron.NewPurgeRevokedJob(cron.PurgeRevokedJobParams{
		Logger:  logg,
		Collabs: collab.NewRepository(gormDB),
		Shares:  share.NewRepository(gormDB),
	})
	exitOnError(logg, "purge-revoked job", err)

	usersRepo := users.NewRepository(gormDB)
	backupService, err := backup.NewService(backup.ServiceParams{
		Repo:   backup.NewRepository(gormDB),
		Items:  inventory.NewRepository(gormDB),
		Config: cfg.Backup,
		Logger: logg,
	})
	exitOnError(logg, "backup service", err)

	backupJob, err := cron.NewScheduledBackupJob(cron.ScheduledBackupJobParams{
		Logger:  logg,
		Backups: backupService,
		Users:   usersRepo,
	})
	exitOnError(logg, "scheduled-backup job", err)

	// Two cadences, each behind its own lock so one slow sweep never
	// blocks the other.
	purgeLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("purge-revoked"), cfg.Cron.LockTTL)
	exitOnError(logg, "purge lock", err)
	purgeService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(purgeJob),
		Lock:     purgeLock,
		Metrics:  collector,
		Interval: cfg.Cron.PurgeRevokedInterval,
	})
	exitOnError(logg, "purge cron service", err)

	backupLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("scheduled-backups"), cfg.Cron.LockTTL)
	exitOnError(logg, "backup lock", err)
	backupCron, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(backupJob),
		Lock:     backupLock,
		Metrics:  collector,
		Interval: cfg.Cron.BackupInterval,
	})
	exitOnError(logg, "backup cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return purgeService.Run(groupCtx) })
	group.Go(func() error { return backupCron.Run(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func exitOnError(logg *logger.Logger, component string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+component, err)
	os.Exit(1)
}
