package controllers

import (
	"net/http"
	"time"

	"github.com/DarkSmileee/BlockShelf/api/responses"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

const readinessTimeout = 3 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-BlockShelf-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the datasource and cache are reachable before
// reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, database db.Pinger, cache db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-BlockShelf-Env", cfg.App.Env)

		ctx, cancel := responsesContext(r, readinessTimeout)
		defer cancel()

		if database != nil {
			if err := database.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
