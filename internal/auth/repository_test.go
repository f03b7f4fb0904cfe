package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/internal/testutil"
)

func TestRepositoryCreateAndLookup(t *testing.T) {
	pool := testutil.DB(t)
	ctx := testutil.Context(t)
	repo := NewRepository(pool)

	email := "auth-" + uuid.NewString() + "@example.com"
	u, err := repo.Create(ctx, email, "hash", "Ana Souza", "123.456.789-00", models.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, u.Role)
	assert.Equal(t, "123.456.789-00", u.NationalID)

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, email, byID.Email)

	_, err = repo.Create(ctx, email, "hash", "Other", "", models.RoleStudent)
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
