package spaces

import (
	"net/http"

	"github.com/dezko/dezko-backend/api/controllers/actorctx"
	"github.com/dezko/dezko-backend/api/responses"
	"github.com/dezko/dezko-backend/api/validators"
	"github.com/dezko/dezko-backend/internal/spaceconfig"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
)

// GetConfig returns the payment settings of the caller's space.
func GetConfig(svc spaceconfig.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "space config service unavailable"))
			return
		}
		_, spaceID, err := actorctx.ResolveOwnedSpace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settings, err := svc.Get(r.Context(), spaceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

// UpdateConfig changes enabled methods, the PIX key and quick payment.
// Gateway connections are managed through the connect endpoints.
func UpdateConfig(svc spaceconfig.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "space config service unavailable"))
			return
		}
		_, spaceID, err := actorctx.ResolveOwnedSpace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload spaceconfig.UpdateInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settings, err := svc.Update(r.Context(), spaceID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}
