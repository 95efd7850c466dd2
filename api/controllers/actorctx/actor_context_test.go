package actorctx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	pkgAuth "github.com/dezko/dezko-backend/pkg/auth"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

func requestAs(actor pkgAuth.Actor) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor == nil {
		return req
	}
	return req.WithContext(pkgAuth.WithActor(req.Context(), actor))
}

func TestRequire(t *testing.T) {
	if _, err := Require(requestAs(nil)); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	user := pkgAuth.EndUser{ID: uuid.New()}
	actor, err := Require(requestAs(user))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor.UserID() != user.ID {
		t.Fatalf("unexpected actor %v", actor)
	}
}

func TestResolveOwnedSpace(t *testing.T) {
	spaceID := uuid.New()
	_, got, err := ResolveOwnedSpace(requestAs(pkgAuth.SpaceOwner{ID: uuid.New(), SpaceID: spaceID}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != spaceID {
		t.Fatalf("expected %s got %s", spaceID, got)
	}

	cases := map[string]pkgAuth.Actor{
		"end user":       pkgAuth.EndUser{ID: uuid.New()},
		"admin":          pkgAuth.Admin{ID: uuid.New()},
		"owner no space": pkgAuth.SpaceOwner{ID: uuid.New()},
	}
	for name, actor := range cases {
		if _, _, err := ResolveOwnedSpace(requestAs(actor)); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
			t.Fatalf("%s: expected forbidden, got %v", name, err)
		}
	}
}
