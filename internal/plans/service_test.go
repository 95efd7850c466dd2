package plans

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/internal/testdb"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(testdb.Open(t)))
	require.NoError(t, err)
	return svc
}

func TestPlanLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreatePlanInput{
		Name:         "Profissional",
		PriceCents:   19900,
		DurationDays: 30,
		AgendaLimit:  5,
		Benefits:     []string{"5 agendas", "suporte"},
	})
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.Equal(t, []string{"5 agendas", "suporte"}, created.Benefits)

	limit := 8
	updated, err := svc.Update(ctx, created.ID, UpdatePlanInput{AgendaLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.AgendaLimit)

	_, err = svc.Create(ctx, CreatePlanInput{Name: "Basico", PriceCents: 9900, DurationDays: 30, AgendaLimit: 1})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, created.ID))

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Basico", active[0].Name)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, []string{"5 agendas", "suporte"}, got.Benefits)
}

func TestPlanValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePlanInput{Name: " ", DurationDays: 30})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, CreatePlanInput{Name: "x", DurationDays: 0})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
