package agendas

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/internal/quota"
	"github.com/dezko/dezko-backend/internal/testdb"
	"github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/db"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

func newTestService(t *testing.T, limit int) (Service, testdb.Fixture) {
	t.Helper()
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, limit)
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(conn),
		Quota:             quota.NewEnforcer(),
		TransactionRunner: db.Wrap(conn),
		DB:                conn,
	})
	require.NoError(t, err)
	return svc, fx
}

func shiftAgenda(name string) CreateAgendaInput {
	rate := int64(12000)
	return CreateAgendaInput{Name: name, BillingMode: enums.BillingModeShift, ShiftRateCents: &rate}
}

// A plan allowing 2 agendas: the seeded one plus one more, then the third
// attempt is refused with the remaining allowance in the details.
func TestCreateRespectsPlanLimit(t *testing.T) {
	svc, fx := newTestService(t, 2)
	ctx := context.Background()
	owner := auth.SpaceOwner{ID: fx.Owner.ID, SpaceID: fx.Space.ID}

	created, err := svc.Create(ctx, owner, fx.Space.ID, shiftAgenda("Auditorio"))
	require.NoError(t, err)
	assert.Equal(t, enums.BillingModeShift, created.BillingMode)

	_, err = svc.Create(ctx, owner, fx.Space.ID, shiftAgenda("Sala 3"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePlanLimit))
	assert.Equal(t, quota.LimitDetails{Limit: 2, Used: 2, Remaining: 0}, pkgerrors.As(err).Details())

	decision, err := svc.Quota(ctx, owner, fx.Space.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, decision.Used)
	assert.Equal(t, 0, decision.Remaining)

	list, err := svc.List(ctx, owner, fx.Space.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestConcurrentCreatesStayWithinPlanLimit(t *testing.T) {
	svc, fx := newTestService(t, 3)
	testdb.SingleConnection(t, fx.Conn)
	owner := auth.SpaceOwner{ID: fx.Owner.ID, SpaceID: fx.Space.ID}

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), owner, fx.Space.ID, shiftAgenda(fmt.Sprintf("Sala %d", i)))
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePlanLimit), err.Error())
	}
	assert.Equal(t, 2, succeeded)

	var agendas int64
	require.NoError(t, fx.Conn.Model(&models.Agenda{}).Where("space_id = ?", fx.Space.ID).Count(&agendas).Error)
	assert.EqualValues(t, 3, agendas)
}

func TestCreateWithoutSubscriptionIsForbidden(t *testing.T) {
	svc, fx := newTestService(t, 5)
	require.NoError(t, fx.Conn.Model(&models.Subscription{}).
		Where("id = ?", fx.Subscription.ID).
		Update("status", enums.SubscriptionStatusCancelled).Error)

	_, err := svc.Create(context.Background(), auth.SpaceOwner{ID: fx.Owner.ID, SpaceID: fx.Space.ID}, fx.Space.ID, shiftAgenda("Sala"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCreateValidatesRates(t *testing.T) {
	svc, fx := newTestService(t, 5)
	owner := auth.SpaceOwner{ID: fx.Owner.ID, SpaceID: fx.Space.ID}

	_, err := svc.Create(context.Background(), owner, fx.Space.ID, CreateAgendaInput{Name: "Sala", BillingMode: enums.BillingModeDay})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(context.Background(), auth.EndUser{ID: fx.Customer.ID}, fx.Space.ID, shiftAgenda("Sala"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestUpdateAndDelete(t *testing.T) {
	svc, fx := newTestService(t, 5)
	ctx := context.Background()
	owner := auth.SpaceOwner{ID: fx.Owner.ID, SpaceID: fx.Space.ID}

	rate := int64(7000)
	updated, err := svc.Update(ctx, owner, fx.Space.ID, fx.Agenda.ID, UpdateAgendaInput{HourlyRateCents: &rate})
	require.NoError(t, err)
	require.NotNil(t, updated.HourlyRateCents)
	assert.Equal(t, int64(7000), *updated.HourlyRateCents)

	day := enums.BillingModeDay
	_, err = svc.Update(ctx, owner, fx.Space.ID, fx.Agenda.ID, UpdateAgendaInput{BillingMode: &day})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	start := time.Now().UTC().Add(48 * time.Hour)
	order := &models.Order{UserID: fx.Customer.ID, SpaceID: fx.Space.ID, AgendaID: fx.Agenda.ID, StartsAt: start, EndsAt: start.Add(time.Hour), PriceCents: 7000, Status: enums.OrderStatusPending}
	require.NoError(t, fx.Conn.Create(order).Error)
	reservation := &models.Reservation{OrderID: order.ID, UserID: fx.Customer.ID, SpaceID: fx.Space.ID, AgendaID: fx.Agenda.ID, StartsAt: start, EndsAt: start.Add(time.Hour), PriceCents: 7000, Status: enums.ReservationStatusPending}
	require.NoError(t, fx.Conn.Create(reservation).Error)

	err = svc.Delete(ctx, owner, fx.Space.ID, fx.Agenda.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	require.NoError(t, fx.Conn.Model(reservation).Update("status", enums.ReservationStatusCancelled).Error)
	require.NoError(t, svc.Delete(ctx, owner, fx.Space.ID, fx.Agenda.ID))

	err = svc.Delete(ctx, owner, fx.Space.ID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
