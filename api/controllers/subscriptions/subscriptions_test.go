package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	subsvc "github.com/dezko/dezko-backend/internal/subscriptions"
	pkgAuth "github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
)

type stubSubscriptionsService struct {
	subsvc.Service

	current      *subsvc.SubscriptionDTO
	assignErr    error
	assignedPlan uuid.UUID
	assignedTo   uuid.UUID
	cancelledFor uuid.UUID
}

func (s *stubSubscriptionsService) Current(ctx context.Context, spaceID uuid.UUID) (*subsvc.SubscriptionDTO, error) {
	return s.current, nil
}

func (s *stubSubscriptionsService) Assign(ctx context.Context, actor pkgAuth.Actor, spaceID, planID uuid.UUID) (*subsvc.SubscriptionDTO, error) {
	if s.assignErr != nil {
		return nil, s.assignErr
	}
	s.assignedPlan = planID
	s.assignedTo = spaceID
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &subsvc.SubscriptionDTO{ID: uuid.New(), SpaceID: spaceID, PlanID: planID, Status: enums.SubscriptionStatusActive, DataInicio: now, DataExpiracao: now.AddDate(0, 0, 30)}, nil
}

func (s *stubSubscriptionsService) Cancel(ctx context.Context, actor pkgAuth.Actor, spaceID uuid.UUID) (*subsvc.SubscriptionDTO, error) {
	s.cancelledFor = spaceID
	return &subsvc.SubscriptionDTO{SpaceID: spaceID, Status: enums.SubscriptionStatusCancelled}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func ownerRequest(method, body string, spaceID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/spaces/me/subscription", bytes.NewReader([]byte(body)))
	return req.WithContext(pkgAuth.WithActor(req.Context(), pkgAuth.SpaceOwner{ID: uuid.New(), SpaceID: spaceID}))
}

func TestOwnerFetchReturnsNullWithoutSubscription(t *testing.T) {
	handler := OwnerFetch(&stubSubscriptionsService{}, testLogger())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, ownerRequest(http.MethodGet, "", uuid.New()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var envelope struct {
		Data *subsvc.SubscriptionDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data != nil {
		t.Fatalf("expected null data, got %+v", envelope.Data)
	}
}

func TestOwnerPurchaseUsesOwnSpace(t *testing.T) {
	spaceID, planID := uuid.New(), uuid.New()
	service := &stubSubscriptionsService{}
	handler := OwnerPurchase(service, testLogger())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, ownerRequest(http.MethodPost, `{"plan_id":"`+planID.String()+`"}`, spaceID))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.assignedTo != spaceID || service.assignedPlan != planID {
		t.Fatalf("unexpected assignment space=%s plan=%s", service.assignedTo, service.assignedPlan)
	}
}

func TestOwnerPurchaseRequiresPlan(t *testing.T) {
	handler := OwnerPurchase(&stubSubscriptionsService{}, testLogger())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, ownerRequest(http.MethodPost, `{}`, uuid.New()))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestOwnerEndpointsRejectEndUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/spaces/me/subscription/cancel", nil)
	req = req.WithContext(pkgAuth.WithActor(req.Context(), pkgAuth.EndUser{ID: uuid.New()}))
	resp := httptest.NewRecorder()
	OwnerCancel(&stubSubscriptionsService{}, testLogger()).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAdminAssignConflict(t *testing.T) {
	spaceID := uuid.New()
	service := &stubSubscriptionsService{assignErr: pkgerrors.New(pkgerrors.CodeConflict, "space already has an active subscription")}
	handler := AdminAssign(service, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"plan_id":"`+uuid.NewString()+`"}`)))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("spaceId", spaceID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	req = req.WithContext(pkgAuth.WithActor(ctx, pkgAuth.Admin{ID: uuid.New()}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestAdminCancelTargetsPathSpace(t *testing.T) {
	spaceID := uuid.New()
	service := &stubSubscriptionsService{}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("spaceId", spaceID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	req = req.WithContext(pkgAuth.WithActor(ctx, pkgAuth.Admin{ID: uuid.New()}))

	resp := httptest.NewRecorder()
	AdminCancel(service, testLogger()).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if service.cancelledFor != spaceID {
		t.Fatalf("expected cancel for %s, got %s", spaceID, service.cancelledFor)
	}
}
