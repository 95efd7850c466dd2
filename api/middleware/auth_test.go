package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60, CookieName: "dezko_session"}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// captured records what Auth placed on the request context.
type captured struct {
	actor   auth.Actor
	session Session
}

func (c *captured) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.actor, _ = auth.ActorFromContext(r.Context())
		c.session, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejections(t *testing.T) {
	token, tokenID := mintTestToken(t, enums.RoleAdmin, nil)

	cases := map[string]struct {
		authorization string
		revocations   stubRevocations
		want          int
	}{
		"missing token":         {want: http.StatusUnauthorized},
		"garbage token":         {authorization: "Bearer invalid", want: http.StatusUnauthorized},
		"basic scheme":          {authorization: "Basic " + token, want: http.StatusUnauthorized},
		"bare token":            {authorization: token, want: http.StatusUnauthorized},
		"revoked session":       {authorization: "Bearer " + token, revocations: stubRevocations{revoked: map[string]bool{tokenID: true}}, want: http.StatusUnauthorized},
		"revocation store down": {authorization: "Bearer " + token, revocations: stubRevocations{err: errors.New("redis down")}, want: http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authorization != "" {
				req.Header.Set("Authorization", tc.authorization)
			}
			resp := httptest.NewRecorder()

			Auth(testJWT, tc.revocations, nil)(okHandler()).ServeHTTP(resp, req)

			assert.Equal(t, tc.want, resp.Code)
		})
	}
}

func TestAuthResolvesSpaceOwner(t *testing.T) {
	spaceID := uuid.New()
	token, tokenID := mintTestToken(t, enums.RoleSpaceOwner, &spaceID)
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	Auth(testJWT, stubRevocations{}, nil)(got.handler()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	owner, ok := got.actor.(auth.SpaceOwner)
	require.True(t, ok, "actor is %T", got.actor)
	assert.Equal(t, spaceID, owner.SpaceID)
	assert.Equal(t, tokenID, got.session.TokenID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), got.session.ExpiresAt, time.Minute)
}

func TestAuthAcceptsSessionCookie(t *testing.T) {
	token, _ := mintTestToken(t, enums.RoleEndUser, nil)
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "dezko_session", Value: token})
	resp := httptest.NewRecorder()
	Auth(testJWT, nil, nil)(got.handler()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.IsType(t, auth.EndUser{}, got.actor)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer   abc ")
	req.AddCookie(&http.Cookie{Name: "dezko_session", Value: "cookie"})
	assert.Equal(t, "abc", bearerToken(req, "dezko_session"), "header wins over cookie")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "dezko_session", Value: "cookie"})
	assert.Equal(t, "cookie", bearerToken(req, "dezko_session"))
	assert.Empty(t, bearerToken(req, ""))
}

func TestRequireRole(t *testing.T) {
	cases := map[string]struct {
		actor auth.Actor
		want  int
	}{
		"admin allowed":      {auth.Admin{ID: uuid.New()}, http.StatusOK},
		"owner forbidden":    {auth.SpaceOwner{ID: uuid.New(), SpaceID: uuid.New()}, http.StatusForbidden},
		"end user forbidden": {auth.EndUser{ID: uuid.New()}, http.StatusForbidden},
		"anonymous":          {nil, http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.actor != nil {
				req = req.WithContext(auth.WithActor(req.Context(), tc.actor))
			}
			resp := httptest.NewRecorder()

			RequireRole(nil, enums.RoleAdmin)(okHandler()).ServeHTTP(resp, req)

			assert.Equal(t, tc.want, resp.Code)
		})
	}
}

func mintTestToken(t *testing.T, role enums.Role, spaceID *uuid.UUID) (string, string) {
	t.Helper()
	tokenID := uuid.NewString()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID:  uuid.New(),
		Role:    role,
		SpaceID: spaceID,
		JTI:     tokenID,
	})
	require.NoError(t, err)
	return token, tokenID
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[tokenID], nil
}
