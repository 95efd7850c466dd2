package auth

import (
	"context"
	"testing"

	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/google/uuid"
)

func TestActorFromClaims(t *testing.T) {
	userID := uuid.New()
	spaceID := uuid.New()

	actor, err := ActorFromClaims(&AccessTokenClaims{UserID: userID, Role: enums.RoleSpaceOwner, SpaceID: &spaceID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	owner, ok := actor.(SpaceOwner)
	if !ok {
		t.Fatalf("expected SpaceOwner, got %T", actor)
	}
	if owner.SpaceID != spaceID || owner.UserID() != userID {
		t.Fatalf("unexpected owner %+v", owner)
	}

	actor, err = ActorFromClaims(&AccessTokenClaims{UserID: userID, Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := actor.(Admin); !ok {
		t.Fatalf("expected Admin, got %T", actor)
	}

	actor, err = ActorFromClaims(&AccessTokenClaims{UserID: userID, Role: enums.RoleEndUser})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor.Role() != enums.RoleEndUser {
		t.Fatalf("unexpected role %s", actor.Role())
	}
}

func TestActorFromClaimsRejectsUnknown(t *testing.T) {
	if _, err := ActorFromClaims(&AccessTokenClaims{UserID: uuid.New(), Role: "superuser"}); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
	if _, err := ActorFromClaims(&AccessTokenClaims{UserID: uuid.New(), Role: enums.RoleSpaceOwner}); err == nil {
		t.Fatal("expected space owner without space to be rejected")
	}
	if _, err := ActorFromClaims(&AccessTokenClaims{Role: enums.RoleAdmin}); err == nil {
		t.Fatal("expected missing user id to be rejected")
	}
}

func TestActorContextRoundTrip(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("expected no actor on empty context")
	}
	ctx := WithActor(context.Background(), EndUser{ID: uuid.New()})
	actor, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("expected actor on context")
	}
	if _, isUser := actor.(EndUser); !isUser {
		t.Fatalf("unexpected actor %T", actor)
	}
}
