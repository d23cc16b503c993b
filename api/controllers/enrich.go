package controllers

import (
	"net/http"

	"github.com/DarkSmileee/BlockShelf/api/responses"
	"github.com/DarkSmileee/BlockShelf/api/validators"
	"github.com/DarkSmileee/BlockShelf/internal/enrich"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

// EnrichBatch resolves one cursor-sized batch of the caller's incomplete
// items. Clients loop with the returned last_id until done.
func EnrichBatch(svc enrich.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "enrich service unavailable"))
			return
		}

		viewerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload enrichBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RunBatch(r.Context(), viewerID, enrich.RunRequest{
			AfterID:   payload.AfterID,
			BatchSize: payload.BatchSize,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type enrichBatchRequest struct {
	AfterID   int64 `json:"after_id" validate:"min=0"`
	BatchSize int   `json:"batch_size" validate:"min=0,max=500"`
}
