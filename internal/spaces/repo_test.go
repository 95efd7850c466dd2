package spaces

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/internal/testdb"
	"github.com/dezko/dezko-backend/pkg/enums"
)

func TestStripeConnectRoundTrip(t *testing.T) {
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 2)
	repo := NewRepository(conn)
	ctx := context.Background()

	account := "acct_123"
	require.NoError(t, repo.UpdateStripeConnect(ctx, fx.Space.ID, &account, enums.ConnectStatusPending))

	found, err := repo.FindByStripeAccount(ctx, account)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, fx.Space.ID, found.ID)
	assert.Equal(t, enums.ConnectStatusPending, found.StripeConnectStatus)

	require.NoError(t, repo.UpdateStripeConnect(ctx, fx.Space.ID, nil, enums.ConnectStatusNotConnected))
	found, err = repo.FindByID(ctx, fx.Space.ID)
	require.NoError(t, err)
	assert.Nil(t, found.StripeConnectAccountID)

	missing, err := repo.FindByStripeAccount(ctx, account)
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.UpdateStripeConnect(ctx, uuid.New(), nil, enums.ConnectStatusPending)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
