package spaces

import (
	"net/http"

	"github.com/dezko/dezko-backend/api/controllers/actorctx"
	"github.com/dezko/dezko-backend/api/responses"
	"github.com/dezko/dezko-backend/api/validators"
	agendasvc "github.com/dezko/dezko-backend/internal/agendas"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
)

// ListAgendas returns the agendas of the caller's space.
func ListAgendas(svc agendasvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}
		actor, spaceID, err := actorctx.ResolveOwnedSpace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), actor, spaceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// CreateAgenda adds an agenda, subject to the space's plan limit.
func CreateAgenda(svc agendasvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}
		actor, spaceID, err := actorctx.ResolveOwnedSpace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload agendasvc.CreateAgendaInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agenda, err := svc.Create(r.Context(), actor, spaceID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, agenda)
	}
}

func UpdateAgenda(svc agendasvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}
		actor, spaceID, err := actorctx.ResolveOwnedSpace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agendaID, err := validators.ParseUUIDParam(r, "agendaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload agendasvc.UpdateAgendaInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agenda, err := svc.Update(r.Context(), actor, spaceID, agendaID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, agenda)
	}
}

func DeleteAgenda(svc agendasvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}
		actor, spaceID, err := actorctx.ResolveOwnedSpace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agendaID, err := validators.ParseUUIDParam(r, "agendaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actor, spaceID, agendaID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true})
	}
}

// Quota reports limite, usadas and totalDisponivel for the caller's space.
func Quota(svc agendasvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}
		actor, spaceID, err := actorctx.ResolveOwnedSpace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := svc.Quota(r.Context(), actor, spaceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}
