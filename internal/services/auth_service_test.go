package services

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/models"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/session"
)

func TestAuthService_CreateUser(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(db, newTestSessions(t))

	user, err := service.CreateUser(" Dev@Example.com ", "password123", "Dev", "")
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", user.Email)
	assert.Equal(t, models.RoleDeveloper, user.Role)
	assert.NotEmpty(t, user.UUID)
	assert.NotEqual(t, "password123", user.PasswordHash)

	_, err = service.CreateUser("dev@example.com", "other", "Dup", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthService_Login(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(db, newTestSessions(t))
	_, err := service.CreateUser("admin@example.com", "password123", "Admin", models.RoleAdmin)
	require.NoError(t, err)

	token, expires, user, err := service.Login(context.Background(), "admin@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.False(t, expires.IsZero())
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.NotNil(t, user.LastLogin)

	_, _, _, err = service.Login(context.Background(), "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = service.Login(context.Background(), "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_UserFromToken(t *testing.T) {
	db := setupTestDB(t)
	sessions := newTestSessions(t)
	service := NewAuthService(db, sessions)
	created, err := service.CreateUser("dev@example.com", "password123", "Dev", "")
	require.NoError(t, err)

	token, _, err := sessions.Issue(created.ID, created.Email, created.Role)
	require.NoError(t, err)

	user, err := service.UserFromToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = service.UserFromToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	ghost, _, err := sessions.Issue(9999, "ghost@example.com", "admin")
	require.NoError(t, err)
	_, err = service.UserFromToken(context.Background(), ghost)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", created.ID).Update("enabled", false).Error)
	_, err = service.UserFromToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthService_Renew(t *testing.T) {
	db := setupTestDB(t)
	sessions := newTestSessions(t)
	service := NewAuthService(db, sessions)
	user, err := service.CreateUser("a@example.com", "password123", "A", "")
	require.NoError(t, err)

	token, _, err := sessions.Issue(user.ID, user.Email, user.Role)
	require.NoError(t, err)
	renewed, expires, err := service.Renew(context.Background(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, renewed)
	assert.False(t, expires.IsZero())

	_, _, err = service.Renew(context.Background(), "tampered")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthService_RenewRejectsDisabledAndDeletedUsers(t *testing.T) {
	db := setupTestDB(t)
	sessions := newTestSessions(t)
	service := NewAuthService(db, sessions)
	user, err := service.CreateUser("gone@example.com", "password123", "Gone", "")
	require.NoError(t, err)
	token, _, err := sessions.Issue(user.ID, user.Email, user.Role)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("enabled", false).Error)
	_, _, err = service.Renew(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, db.Delete(&models.User{}, user.ID).Error)
	_, _, err = service.Renew(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	ghost, _, err := sessions.Issue(4242, "ghost@example.com", "developer")
	require.NoError(t, err)
	_, _, err = service.Renew(context.Background(), ghost)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthService_SetCookie(t *testing.T) {
	service := NewAuthService(setupTestDB(t), newTestSessions(t))
	w := httptest.NewRecorder()
	service.SetCookie(w, "tok", time.Now().Add(time.Hour))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.InDelta(t, 3600, cookies[0].MaxAge, 2)
}

func TestAuthService_ResetPassword(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(db, newTestSessions(t))
	_, err := service.CreateUser("dev@example.com", "old-password", "Dev", "")
	require.NoError(t, err)

	require.NoError(t, service.ResetPassword("dev@example.com", "new-password"))
	_, _, _, err = service.Login(context.Background(), "dev@example.com", "new-password")
	assert.NoError(t, err)

	assert.ErrorIs(t, service.ResetPassword("missing@example.com", "x"), ErrUserNotFound)
}
