package service

import (
	"context"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_SetRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newUserRepoStub(&models.User{ID: "u1", Email: "ada@example.com", Role: models.RoleUser, Status: models.UserActive})
	svc := NewUserService(repo)

	_, err := svc.SetRole(ctx, "ada@example.com", models.Role("OWNER"))
	assertAppError(t, err, models.CodeValidation)

	_, err = svc.SetRole(ctx, "ghost@example.com", models.RoleAdmin)
	assertAppError(t, err, models.CodeNotFound)

	u, err := svc.SetRole(ctx, "ada@example.com", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	admins, err := svc.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "u1", admins[0].ID)

	u, err = svc.SetRole(ctx, "ada@example.com", models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, u.Role)
}

func TestUserService_SetStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newUserRepoStub(&models.User{ID: "u1", Email: "ada@example.com", Role: models.RoleUser, Status: models.UserActive})
	svc := NewUserService(repo)

	_, err := svc.SetStatus(ctx, "ada@example.com", models.UserStatus("GONE"))
	assertAppError(t, err, models.CodeValidation)

	u, err := svc.SetStatus(ctx, "ada@example.com", models.UserBlocked)
	require.NoError(t, err)
	assert.Equal(t, models.UserBlocked, u.Status)

	u, err = svc.SetStatus(ctx, "ada@example.com", models.UserActive)
	require.NoError(t, err)
	assert.Equal(t, models.UserActive, u.Status)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates verified admin", func(t *testing.T) {
		t.Parallel()
		repo := newUserRepoStub()
		svc := NewUserService(repo)

		u, created, err := svc.EnsureAdmin(ctx, "", " Root@Example.com ", "Sup3rSecret")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "root@example.com", u.Email)
		assert.Equal(t, "Admin", u.Name)
		assert.Equal(t, models.RoleAdmin, u.Role)
		assert.True(t, u.EmailVerified)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("Sup3rSecret")))

		again, created, err := svc.EnsureAdmin(ctx, "", "root@example.com", "Sup3rSecret")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, u.ID, again.ID)
	})

	t.Run("promotes existing account", func(t *testing.T) {
		t.Parallel()
		repo := newUserRepoStub(&models.User{ID: "u9", Email: "root@example.com", Role: models.RoleUser, Password: "keep"})
		svc := NewUserService(repo)

		u, created, err := svc.EnsureAdmin(ctx, "Root", "root@example.com", "ignored")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, models.RoleAdmin, u.Role)
		assert.True(t, u.EmailVerified)
		assert.Equal(t, "keep", u.Password)
	})

	t.Run("weak password", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newUserRepoStub())
		_, _, err := svc.EnsureAdmin(ctx, "Root", "root@example.com", "short")
		assertAppError(t, err, models.CodeValidation)
	})
}
