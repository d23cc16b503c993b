// Package controllers holds the HTTP handlers. Each handler is a
// constructor taking the service it fronts plus a logger, mirroring the
// dependency flow of the router.
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/DarkSmileee/BlockShelf/api/middleware"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
)

// currentUserID reads the authenticated user out of the request context.
// Mounted routes always run behind the auth middleware, so a missing or
// malformed value means the token claims were tampered with.
func currentUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return id, nil
}

// parseOwnerParam reads an optional owner query parameter, falling back to
// the viewer when absent.
func parseOwnerParam(r *http.Request, viewerID uuid.UUID) (uuid.UUID, error) {
	raw := r.URL.Query().Get("owner")
	if raw == "" {
		return viewerID, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner id")
	}
	return id, nil
}

// responsesContext derives a bounded context for dependency probes.
func responsesContext(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}

// parsePathUUID parses a UUID route parameter.
func parsePathUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}
