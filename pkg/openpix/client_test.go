package openpix

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

func TestCreateChargeRequest(t *testing.T) {
	var captured ChargeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/charge" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "app-123" {
			t.Fatalf("missing app id header")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"charge":{"status":"ACTIVE","value":10000,"correlationID":"order-1","transactionID":"tx-1","brCode":"000201","qrCodeImage":"https://qr","paymentLinkUrl":"https://pay","globalID":"Q2hhcmdl","expiresDate":"2026-04-01T10:00:00Z"}}`))
	}))
	defer srv.Close()

	client, err := NewClient("app-123", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	charge, raw, err := client.CreateCharge(context.Background(), ChargeRequest{
		CorrelationID: "order-1",
		Value:         10000,
		ExpiresIn:     3600,
		Splits:        []Split{{PixKey: "tenant@pix", Value: 9000, SplitType: SplitTypePartner}},
	})
	if err != nil {
		t.Fatalf("create charge: %v", err)
	}
	if captured.CorrelationID != "order-1" || len(captured.Splits) != 1 || captured.Splits[0].Value != 9000 {
		t.Fatalf("unexpected request payload %+v", captured)
	}
	if captured.Splits[0].SplitType != SplitTypePartner {
		t.Fatalf("unexpected split type %q", captured.Splits[0].SplitType)
	}
	if charge.BRCode != "000201" || charge.GlobalID != "Q2hhcmdl" || charge.TransactionID != "tx-1" {
		t.Fatalf("unexpected charge %+v", charge)
	}
	if charge.ExpiresAt() == nil {
		t.Fatalf("expected expiry to parse")
	}
	if len(raw) == 0 {
		t.Fatalf("expected raw body")
	}
}

func TestGetAndDeleteCharge(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			_, _ = w.Write([]byte(`{"status":"OK","id":"order-1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"charge":{"status":"COMPLETED","correlationID":"order-1","transactionID":"tx-9"}}`))
	}))
	defer srv.Close()

	client, err := NewClient("app", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	charge, _, err := client.GetCharge(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get charge: %v", err)
	}
	if charge.Status != "COMPLETED" {
		t.Fatalf("unexpected status %q", charge.Status)
	}
	if err := client.DeleteCharge(context.Background(), "order-1"); err != nil {
		t.Fatalf("delete charge: %v", err)
	}
	if len(methods) != 2 || methods[0] != "GET /api/v1/charge/order-1" || methods[1] != "DELETE /api/v1/charge/order-1" {
		t.Fatalf("unexpected calls %v", methods)
	}
}

func TestNon2xxIsDependencyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid pix key"}`))
	}))
	defer srv.Close()

	client, err := NewClient("app", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, _, err = client.CreateCharge(context.Background(), ChargeRequest{CorrelationID: "x", Value: 1})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["provider_status"] != http.StatusBadRequest {
		t.Fatalf("expected provider status in details, got %#v", typed.Details())
	}
}

func TestNewClientRequiresAppID(t *testing.T) {
	if _, err := NewClient(" "); err == nil {
		t.Fatal("expected error")
	}
}
