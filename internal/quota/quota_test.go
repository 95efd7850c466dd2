package quota

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/internal/testdb"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

func addAgenda(t *testing.T, fx testdb.Fixture) {
	t.Helper()
	rate := int64(1000)
	require.NoError(t, fx.Conn.Create(&models.Agenda{
		SpaceID:         fx.Space.ID,
		Name:            "Extra " + uuid.NewString()[:6],
		BillingMode:     enums.BillingModeHour,
		HourlyRateCents: &rate,
	}).Error)
}

func TestCheckAllowsUnderLimit(t *testing.T) {
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 3)

	decision, err := NewEnforcer().Check(context.Background(), conn, fx.Space.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, decision.Limit)
	assert.Equal(t, 1, decision.Used)
	assert.Equal(t, 2, decision.Remaining)
	assert.Equal(t, fx.Subscription.ID, decision.SubscriptionID)
	assert.True(t, decision.Allowed())
}

// A plan with agenda_limit=2 and two agendas rejects a third with the counters.
func TestCheckRejectsAtLimit(t *testing.T) {
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 2)
	addAgenda(t, fx)

	decision, err := NewEnforcer().Check(context.Background(), conn, fx.Space.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePlanLimit, typed.Code())
	assert.Equal(t, LimitDetails{Limit: 2, Used: 2, Remaining: 0}, typed.Details())
	assert.False(t, decision.Allowed())
}

func TestCheckClampsRemaining(t *testing.T) {
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 1)
	addAgenda(t, fx)
	addAgenda(t, fx)

	_, err := NewEnforcer().Check(context.Background(), conn, fx.Space.ID)
	require.Error(t, err)
	assert.Equal(t, LimitDetails{Limit: 1, Used: 3, Remaining: 0}, pkgerrors.As(err).Details())
}

func TestCheckWithoutActiveSubscription(t *testing.T) {
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 3)
	require.NoError(t, conn.Model(&models.Subscription{}).Where("id = ?", fx.Subscription.ID).
		Update("status", enums.SubscriptionStatusCancelled).Error)

	_, err := NewEnforcer().Check(context.Background(), conn, fx.Space.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCheckIgnoresLapsedSubscription(t *testing.T) {
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 3)

	enforcer := NewEnforcer()
	enforcer.now = func() time.Time { return fx.Subscription.ExpiresAt.Add(time.Minute) }
	_, err := enforcer.Check(context.Background(), conn, fx.Space.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCheckMissingPlan(t *testing.T) {
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 3)
	require.NoError(t, conn.Where("id = ?", fx.Plan.ID).Delete(&models.Plan{}).Error)

	_, err := NewEnforcer().Check(context.Background(), conn, fx.Space.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestLockSpace(t *testing.T) {
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 3)

	space, err := LockSpace(context.Background(), conn, fx.Space.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.Space.ID, space.ID)

	_, err = LockSpace(context.Background(), conn, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
