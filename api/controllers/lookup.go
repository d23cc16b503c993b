package controllers

import (
	"net/http"
	"strings"

	"github.com/DarkSmileee/BlockShelf/api/middleware"
	"github.com/DarkSmileee/BlockShelf/api/responses"
	"github.com/DarkSmileee/BlockShelf/internal/lookup"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

type lookupResponse struct {
	OK bool `json:"ok"`
	lookup.Result
}

// PartLookup serves the interactive part/element resolver.
func PartLookup(svc lookup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lookup service unavailable"))
			return
		}

		viewerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("part_id"))
		result, err := svc.Lookup(r.Context(), viewerID, middleware.ClientIP(r), raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lookupResponse{OK: true, Result: result})
	}
}
