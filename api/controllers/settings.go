package controllers

import (
	"net/http"

	"github.com/DarkSmileee/BlockShelf/api/responses"
	"github.com/DarkSmileee/BlockShelf/api/validators"
	"github.com/DarkSmileee/BlockShelf/internal/appconfig"
	"github.com/DarkSmileee/BlockShelf/internal/users"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

// PreferencesGet returns the caller's settings row.
func PreferencesGet(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		viewerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pref, err := svc.GetPreference(r.Context(), viewerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pref)
	}
}

// PreferencesUpdate applies a partial preference edit.
func PreferencesUpdate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		viewerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload users.UpdatePreferenceInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pref, err := svc.UpdatePreference(r.Context(), viewerID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pref)
	}
}

// siteConfigResponse is the admin view of the resolved site settings. The
// Rebrickable key never leaves the server.
type siteConfigResponse struct {
	SiteName          string `json:"site_name"`
	ItemsPerPage      int    `json:"items_per_page"`
	AllowRegistration bool   `json:"allow_registration"`
	DefaultFromEmail  string `json:"default_from_email"`
	HasRebrickableKey bool   `json:"has_rebrickable_key"`
}

func newSiteConfigResponse(eff appconfig.Effective) siteConfigResponse {
	return siteConfigResponse{
		SiteName:          eff.SiteName,
		ItemsPerPage:      eff.ItemsPerPage,
		AllowRegistration: eff.AllowRegistration,
		DefaultFromEmail:  eff.DefaultFromEmail,
		HasRebrickableKey: eff.RebrickableAPIKey != "",
	}
}

// SiteConfigGet returns the effective site configuration. Admin only.
func SiteConfigGet(svc appconfig.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appconfig service unavailable"))
			return
		}

		eff, err := svc.Effective(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSiteConfigResponse(eff))
	}
}

// SiteConfigUpdate applies an admin edit and returns the re-resolved
// configuration.
func SiteConfigUpdate(svc appconfig.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appconfig service unavailable"))
			return
		}

		var payload appconfig.UpdateInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.Update(r.Context(), payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eff, err := svc.Effective(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSiteConfigResponse(eff))
	}
}
