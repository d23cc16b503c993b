package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DarkSmileee/BlockShelf/api/routes"
	"github.com/DarkSmileee/BlockShelf/internal/appconfig"
	"github.com/DarkSmileee/BlockShelf/internal/backup"
	"github.com/DarkSmileee/BlockShelf/internal/catalog"
	"github.com/DarkSmileee/BlockShelf/internal/collab"
	"github.com/DarkSmileee/BlockShelf/internal/enrich"
	"github.com/DarkSmileee/BlockShelf/internal/inventory"
	"github.com/DarkSmileee/BlockShelf/internal/lookup"
	"github.com/DarkSmileee/BlockShelf/internal/notes"
	"github.com/DarkSmileee/BlockShelf/internal/share"
	"github.com/DarkSmileee/BlockShelf/internal/users"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db"
	"github.com/DarkSmileee/BlockShelf/pkg/env"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
	"github.com/DarkSmileee/BlockShelf/pkg/metrics"
	"github.com/DarkSmileee/BlockShelf/pkg/migrate"
	"github.com/DarkSmileee/BlockShelf/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	appConfigService, err := appconfig.NewService(appconfig.ServiceParams{
		Repo:   appconfig.NewRepository(gormDB),
		Cache:  redisClient,
		Env:    envOverrides(cfg),
		Logger: logg,
	})
	exitOnError(logg, "appconfig service", err)

	usersRepo := users.NewRepository(gormDB)
	usersService, err := users.NewService(users.ServiceParams{
		DB:             dbClient,
		Repo:           usersRepo,
		AppConfig:      appConfigService,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	exitOnError(logg, "users service", err)

	collabService, err := collab.NewService(collab.ServiceParams{
		DB:    dbClient,
		Repo:  collab.NewRepository(gormDB),
		Users: usersRepo,
	})
	exitOnError(logg, "collab service", err)

	shareService, err := share.NewService(share.ServiceParams{
		Repo: share.NewRepository(gormDB),
	})
	exitOnError(logg, "share service", err)

	inventoryRepo := inventory.NewRepository(gormDB)
	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Repo:       inventoryRepo,
		DB:         dbClient,
		Guard:      collabService,
		Prefs:      usersRepo,
		SiteConfig: appConfigService,
		Config:     cfg.Import,
		Logger:     logg,
	})
	exitOnError(logg, "inventory service", err)

	limiter, err := lookup.NewLimiter(redisClient, cfg.Lookup)
	exitOnError(logg, "lookup limiter", err)

	lookupService, err := lookup.NewService(lookup.ServiceParams{
		Catalog:    catalog.NewRepository(gormDB),
		Cache:      redisClient,
		Limiter:    limiter,
		API:        lookup.NewRebrickableClient(cfg.Rebrickable, cfg.Lookup.HTTPTimeout, logg),
		Scraper:    lookup.NewBrickLinkScraper(cfg.BrickLink, cfg.Lookup.HTTPTimeout, logg),
		Prefs:      usersRepo,
		SiteConfig: appConfigService,
		Config:     cfg.Lookup,
		Metrics:    metrics.NewLookupMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
	})
	exitOnError(logg, "lookup service", err)

	enrichService, err := enrich.NewService(enrich.ServiceParams{
		Repo:     enrich.NewRepository(gormDB),
		DB:       dbClient,
		Resolver: lookupService,
		Config:   cfg.Enrich,
		Logger:   logg,
	})
	exitOnError(logg, "enrich service", err)

	notesService, err := notes.NewService(notes.NewRepository(gormDB))
	exitOnError(logg, "notes service", err)

	backupService, err := backup.NewService(backup.ServiceParams{
		Repo:   backup.NewRepository(gormDB),
		Items:  inventoryRepo,
		Config: cfg.Backup,
		Logger: logg,
	})
	exitOnError(logg, "backup service", err)

	bootstrapService, err := catalog.NewBootstrapService(catalog.BootstrapParams{
		DB:     dbClient,
		Jobs:   redisClient,
		Config: cfg.Import,
		Logger: logg,
	})
	exitOnError(logg, "bootstrap service", err)

	router := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		usersService,
		appConfigService,
		collabService,
		shareService,
		inventoryService,
		lookupService,
		enrichService,
		notesService,
		backupService,
		bootstrapService,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error during shutdown", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

// envOverrides maps process configuration onto the site-settings
// resolution chain: database value first, then these, then defaults.
func envOverrides(cfg *config.Config) appconfig.EnvOverrides {
	overrides := appconfig.EnvOverrides{
		SiteName:          env.Get("BLOCKSHELF_SITE_NAME", ""),
		DefaultFromEmail:  env.Get("BLOCKSHELF_DEFAULT_FROM_EMAIL", ""),
		RebrickableAPIKey: cfg.Rebrickable.APIKey,
	}
	if raw := env.Get("BLOCKSHELF_ITEMS_PER_PAGE", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			overrides.ItemsPerPage = n
		}
	}
	if raw := env.Get("BLOCKSHELF_ALLOW_REGISTRATION", ""); raw != "" {
		allowed := strings.EqualFold(raw, "true") || raw == "1"
		overrides.AllowRegistration = &allowed
	}
	return overrides
}

func exitOnError(logg *logger.Logger, component string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+component, err)
	os.Exit(1)
}
