package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DarkSmileee/BlockShelf/api/middleware"
	"github.com/DarkSmileee/BlockShelf/api/responses"
	"github.com/DarkSmileee/BlockShelf/internal/backup"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

// BackupsList shows the caller's backups, or every backup for staff.
func BackupsList(svc backup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "backup service unavailable"))
			return
		}

		viewerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), viewerID, middleware.IsStaffFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// BackupCreate dumps the caller's inventory to a JSON file on demand.
func BackupCreate(svc backup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "backup service unavailable"))
			return
		}

		viewerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.CreateUserBackup(r.Context(), viewerID, &viewerID, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// BackupDelete removes a backup file and its record.
func BackupDelete(svc backup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "backup service unavailable"))
			return
		}

		viewerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		backupID, err := parsePathUUID(chi.URLParam(r, "backupID"), "backup id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), viewerID, middleware.IsStaffFromContext(r.Context()), backupID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
