package plans

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	plansvc "github.com/dezko/dezko-backend/internal/plans"
	pkgAuth "github.com/dezko/dezko-backend/pkg/auth"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

type stubPlanService struct {
	plansvc.Service

	plans       []plansvc.PlanDTO
	activeOnly  *bool
	created     plansvc.CreatePlanInput
	deactivated uuid.UUID
	updateErr   error
}

func (s *stubPlanService) List(ctx context.Context, activeOnly bool) ([]plansvc.PlanDTO, error) {
	s.activeOnly = &activeOnly
	return s.plans, nil
}

func (s *stubPlanService) Create(ctx context.Context, input plansvc.CreatePlanInput) (*plansvc.PlanDTO, error) {
	s.created = input
	return &plansvc.PlanDTO{ID: uuid.New(), Name: input.Name, PriceCents: input.PriceCents, DurationDays: input.DurationDays, AgendaLimit: input.AgendaLimit, Benefits: input.Benefits, Active: true}, nil
}

func (s *stubPlanService) Update(ctx context.Context, id uuid.UUID, input plansvc.UpdatePlanInput) (*plansvc.PlanDTO, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &plansvc.PlanDTO{ID: id}, nil
}

func (s *stubPlanService) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.deactivated = id
	return nil
}

func withPlanParam(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("planId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListDefaultsToActivePlans(t *testing.T) {
	svc := &stubPlanService{}
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if svc.activeOnly == nil || !*svc.activeOnly {
		t.Fatal("expected active-only listing")
	}
	var envelope struct {
		Data planListResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Plans == nil || len(envelope.Data.Plans) != 0 {
		t.Fatalf("expected empty plans array, got %v", envelope.Data.Plans)
	}
}

func TestListIncludeInactiveRequiresAdmin(t *testing.T) {
	svc := &stubPlanService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans?include_inactive=true", nil)
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous caller, got %d", resp.Code)
	}

	req = req.WithContext(pkgAuth.WithActor(req.Context(), pkgAuth.Admin{ID: uuid.New()}))
	resp = httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.Code)
	}
	if svc.activeOnly == nil || *svc.activeOnly {
		t.Fatal("expected inactive plans included for admin")
	}
}

func TestCreateDecodesPlan(t *testing.T) {
	svc := &stubPlanService{}
	body := `{"name":"  Pro  ","price_cents":9900,"duration_days":30,"agenda_limit":5,"benefits":["support"]}`
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/plans", bytes.NewReader([]byte(body))))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	want := plansvc.CreatePlanInput{Name: "Pro", PriceCents: 9900, DurationDays: 30, AgendaLimit: 5, Benefits: []string{"support"}}
	if diff := cmp.Diff(want, svc.created); diff != "" {
		t.Fatalf("create input mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateRejectsMissingDuration(t *testing.T) {
	resp := httptest.NewRecorder()
	Create(&stubPlanService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/plans", bytes.NewReader([]byte(`{"name":"Basic"}`))))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUpdateAndDeactivate(t *testing.T) {
	planID := uuid.New()
	svc := &stubPlanService{updateErr: pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")}

	resp := httptest.NewRecorder()
	req := withPlanParam(httptest.NewRequest(http.MethodPatch, "/", bytes.NewReader([]byte(`{"agenda_limit":10}`))), planID.String())
	Update(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	Deactivate(svc, nil).ServeHTTP(resp, withPlanParam(httptest.NewRequest(http.MethodDelete, "/", nil), planID.String()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if svc.deactivated != planID {
		t.Fatalf("expected %s deactivated, got %s", planID, svc.deactivated)
	}
}
