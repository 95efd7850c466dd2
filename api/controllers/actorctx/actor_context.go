package actorctx

import (
	"net/http"

	"github.com/google/uuid"

	pkgAuth "github.com/dezko/dezko-backend/pkg/auth"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

// Require returns the authenticated actor or an unauthorized error.
func Require(r *http.Request) (pkgAuth.Actor, error) {
	actor, ok := pkgAuth.ActorFromContext(r.Context())
	if !ok || actor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

// ResolveOwnedSpace extracts the space managed by the authenticated space owner.
func ResolveOwnedSpace(r *http.Request) (pkgAuth.Actor, uuid.UUID, error) {
	actor, err := Require(r)
	if err != nil {
		return nil, uuid.Nil, err
	}
	owner, ok := actor.(pkgAuth.SpaceOwner)
	if !ok {
		return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "space owner access required")
	}
	if owner.SpaceID == uuid.Nil {
		return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "space context required")
	}
	return owner, owner.SpaceID, nil
}
