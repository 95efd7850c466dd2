package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/internal/testdb"
)

func TestFindByID(t *testing.T) {
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 3)
	repo := NewRepository(conn)
	ctx := context.Background()

	owner, err := repo.FindByID(ctx, fx.Owner.ID)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, fx.Owner.Email, FromModel(owner).Email)

	missing, err := repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
