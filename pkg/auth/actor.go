package auth

import (
	"context"
	"fmt"

	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/google/uuid"
)

// Actor is the authenticated principal behind a request. The set of variants
// is closed: Admin, SpaceOwner and EndUser.
type Actor interface {
	UserID() uuid.UUID
	Role() enums.Role
	actor()
}

// Admin manages plans, subscriptions and any booking.
type Admin struct {
	ID uuid.UUID
}

// SpaceOwner manages exactly one space.
type SpaceOwner struct {
	ID      uuid.UUID
	SpaceID uuid.UUID
}

// EndUser books and pays for reservations.
type EndUser struct {
	ID uuid.UUID
}

func (a Admin) UserID() uuid.UUID      { return a.ID }
func (a Admin) Role() enums.Role       { return enums.RoleAdmin }
func (Admin) actor()                   {}
func (s SpaceOwner) UserID() uuid.UUID { return s.ID }
func (s SpaceOwner) Role() enums.Role  { return enums.RoleSpaceOwner }
func (SpaceOwner) actor()              {}
func (e EndUser) UserID() uuid.UUID    { return e.ID }
func (e EndUser) Role() enums.Role     { return enums.RoleEndUser }
func (EndUser) actor()                 {}

// ActorFromClaims maps verified token claims onto an Actor variant.
func ActorFromClaims(claims *AccessTokenClaims) (Actor, error) {
	if claims == nil {
		return nil, fmt.Errorf("claims are required")
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	switch claims.Role {
	case enums.RoleAdmin:
		return Admin{ID: claims.UserID}, nil
	case enums.RoleSpaceOwner:
		if claims.SpaceID == nil || *claims.SpaceID == uuid.Nil {
			return nil, fmt.Errorf("space owner token without space id")
		}
		return SpaceOwner{ID: claims.UserID, SpaceID: *claims.SpaceID}, nil
	case enums.RoleEndUser:
		return EndUser{ID: claims.UserID}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
}

type actorKey struct{}

// WithActor stores the actor on the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor attached by the auth middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return nil, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor != nil
}

// CanManageSpace reports whether the actor may administer the given space.
func CanManageSpace(actor Actor, spaceID uuid.UUID) bool {
	switch a := actor.(type) {
	case Admin:
		return true
	case SpaceOwner:
		return a.SpaceID == spaceID
	case EndUser:
		return false
	default:
		return false
	}
}
