package controllers

import (
	"net/http"

	"github.com/DarkSmileee/BlockShelf/api/responses"
	"github.com/DarkSmileee/BlockShelf/api/validators"
	"github.com/DarkSmileee/BlockShelf/internal/catalog"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

// BootstrapPrepare stages an uploaded Rebrickable dump and returns the
// job handle plus per-kind row counts. Admin only.
func BootstrapPrepare(svc catalog.BootstrapService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bootstrap service unavailable"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "upload requires a file field"))
			return
		}
		defer file.Close()

		result, err := svc.Prepare(r.Context(), file, header.Filename, header.Size)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// BootstrapRun loads one batch of a staged dump. Clients loop with the
// returned offset until done. Admin only.
func BootstrapRun(svc catalog.BootstrapService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bootstrap service unavailable"))
			return
		}

		var payload catalog.RunRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Run(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
