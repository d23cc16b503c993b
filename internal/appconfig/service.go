package appconfig

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
	pkgredis "github.com/DarkSmileee/BlockShelf/pkg/redis"
)

const cacheTTL = 5 * time.Minute

// CacheStore is the slice of the redis client the settings service needs.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	AppConfigKey() string
}

// Service resolves and mutates the site-wide configuration singleton.
type Service interface {
	// Get returns the raw database row, served from cache when fresh.
	Get(ctx context.Context) (models.AppConfig, error)
	// Update applies an admin edit and invalidates the cache.
	Update(ctx context.Context, input UpdateInput) (models.AppConfig, error)
	// Effective resolves each setting as database, then environment, then default.
	Effective(ctx context.Context) (Effective, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo   *Repository
	Cache  CacheStore
	Env    EnvOverrides
	Logger *logger.Logger
}

type service struct {
	repo   *Repository
	cache  CacheStore
	env    EnvOverrides
	logger *logger.Logger
}

// NewService validates the dependency set and returns a settings service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appconfig repo is required")
	}
	if params.Cache == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appconfig cache is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appconfig logger is required")
	}
	return &service{
		repo:   params.Repo,
		cache:  params.Cache,
		env:    params.Env,
		logger: params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context) (models.AppConfig, error) {
	key := s.cache.AppConfigKey()
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached models.AppConfig
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return cached, nil
		}
		// corrupt entry, fall through and reload
		_ = s.cache.Del(ctx, key)
	} else if !pkgredis.IsNil(err) {
		s.logger.Error(ctx, "appconfig cache read failed", err)
	}

	cfg, err := s.repo.GetSolo(ctx)
	if err != nil {
		return models.AppConfig{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load app config")
	}

	if payload, err := json.Marshal(cfg); err == nil {
		if setErr := s.cache.Set(ctx, key, payload, cacheTTL); setErr != nil {
			s.logger.Error(ctx, "appconfig cache write failed", setErr)
		}
	}
	return cfg, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (models.AppConfig, error) {
	cfg, err := s.repo.GetSolo(ctx)
	if err != nil {
		return models.AppConfig{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load app config")
	}

	if input.SiteName != nil {
		cfg.SiteName = *input.SiteName
	}
	if input.ItemsPerPage != nil {
		if *input.ItemsPerPage <= 0 {
			cfg.ItemsPerPage = nil
		} else {
			v := *input.ItemsPerPage
			cfg.ItemsPerPage = &v
		}
	}
	if input.AllowRegistration != nil {
		v := *input.AllowRegistration
		cfg.AllowRegistration = &v
	}
	if input.DefaultFromEmail != nil {
		cfg.DefaultFromEmail = *input.DefaultFromEmail
	}
	if input.RebrickableAPIKey != nil {
		cfg.RebrickableAPIKey = *input.RebrickableAPIKey
	}

	if err := s.repo.Save(ctx, &cfg); err != nil {
		return models.AppConfig{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save app config")
	}
	if err := s.cache.Del(ctx, s.cache.AppConfigKey()); err != nil {
		s.logger.Error(ctx, "appconfig cache invalidation failed", err)
	}
	return cfg, nil
}

func (s *service) Effective(ctx context.Context) (Effective, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return Effective{}, err
	}

	eff := Effective{
		SiteName:          resolveString(cfg.SiteName, s.env.SiteName, DefaultSiteName),
		ItemsPerPage:      DefaultItemsPerPage,
		AllowRegistration: true,
		DefaultFromEmail:  resolveString(cfg.DefaultFromEmail, s.env.DefaultFromEmail, ""),
		RebrickableAPIKey: resolveString(cfg.RebrickableAPIKey, s.env.RebrickableAPIKey, ""),
	}
	if cfg.ItemsPerPage != nil && *cfg.ItemsPerPage > 0 {
		eff.ItemsPerPage = *cfg.ItemsPerPage
	} else if s.env.ItemsPerPage > 0 {
		eff.ItemsPerPage = s.env.ItemsPerPage
	}
	if cfg.AllowRegistration != nil {
		eff.AllowRegistration = *cfg.AllowRegistration
	} else if s.env.AllowRegistration != nil {
		eff.AllowRegistration = *s.env.AllowRegistration
	}
	return eff, nil
}

func resolveString(dbValue, envValue, fallback string) string {
	if dbValue != "" {
		return dbValue
	}
	if envValue != "" {
		return envValue
	}
	return fallback
}
