package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCollectsPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23P01",
		ConstraintName: "reservations_no_overlap",
		TableName:      "reservations",
		Message:        "conflicting key value violates exclusion constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("insert reservation: %w", pgErr), "slot taken")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected code %s, got %s", CodeConflict, d.Code)
	}
	if d.PGCode != "23P01" || d.PGConstraint != "reservations_no_overlap" || d.PGTable != "reservations" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
}

func TestDumpCollectsPqDiagnostics(t *testing.T) {
	err := fmt.Errorf("update: %w", &pq.Error{Code: "23505", Constraint: "ux_subscriptions_active_space"})

	d := Dump(err)
	if d.PGCode != "23505" || d.PGConstraint != "ux_subscriptions_active_space" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if d.Code != "" {
		t.Fatalf("untyped errors carry no code, got %s", d.Code)
	}
}

func TestDumpMarksRetryableCodes(t *testing.T) {
	if !Dump(New(CodeDependency, "openpix down")).Retryable {
		t.Fatal("dependency errors are retryable")
	}
	if Dump(New(CodeValidation, "bad")).Retryable {
		t.Fatal("validation errors are not retryable")
	}
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("nil error should dump empty, got %+v", d)
	}
}
