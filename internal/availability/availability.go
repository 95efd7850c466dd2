package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dezko/dezko-backend/pkg/db"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

const conflictMessage = "slot already booked"

// Slot is a requested reservation window on one agenda of a space.
type Slot struct {
	SpaceID  uuid.UUID
	AgendaID uuid.UUID
	Start    time.Time
	End      time.Time
}

// Overlaps reports whether two closed intervals [aStart, aEnd] and
// [bStart, bEnd] share at least one instant. Touching endpoints overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

// LockAgenda loads the agenda row, taking a row lock on Postgres so bookings
// on the same agenda serialize until tx ends.
func LockAgenda(ctx context.Context, tx *gorm.DB, spaceID, agendaID uuid.UUID) (*models.Agenda, error) {
	query := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var agenda models.Agenda
	err := query.Where("id = ? AND space_id = ?", agendaID, spaceID).First(&agenda).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agenda not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock agenda")
	}
	return &agenda, nil
}

// EnsureFree rejects the slot when any non-cancelled reservation on the same
// space and agenda overlaps it. It must run inside the transaction that
// inserts the reservation.
func EnsureFree(ctx context.Context, tx *gorm.DB, slot Slot) error {
	if !slot.End.After(slot.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("space_id = ? AND agenda_id = ?", slot.SpaceID, slot.AgendaID).
		Where("status <> ?", enums.ReservationStatusCancelled).
		Where("starts_at <= ? AND ends_at >= ?", slot.End.UTC(), slot.Start.UTC()).
		Count(&count).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check availability")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, conflictMessage)
	}
	return nil
}

// TranslateInsertError maps the exclusion constraint backstop to the same
// conflict EnsureFree reports.
func TranslateInsertError(err error) error {
	if err == nil {
		return nil
	}
	if db.IsOverlapViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, conflictMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert reservation")
}
