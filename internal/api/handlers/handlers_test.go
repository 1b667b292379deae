package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/models"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// openTestDB creates a SQLite in-memory DB unique per test.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsnName := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_journal_mode=WAL&_busy_timeout=5000", dsnName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.BlockedIP{}))
	return db
}

func newTestState(t *testing.T) *security.State {
	t.Helper()
	state, err := security.NewState(security.Options{})
	require.NoError(t, err)
	return state
}

type stubUsers struct {
	users map[string]*models.User
	err   error
	panic bool
}

func (s *stubUsers) UserFromToken(_ context.Context, token string) (*models.User, error) {
	if s.panic {
		panic("user store exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, services.ErrUnauthenticated
}

func newStubUsers() *stubUsers {
	return &stubUsers{users: map[string]*models.User{
		"admin-token": {ID: 1, Email: "admin@example.com", Role: models.RoleAdmin, Enabled: true},
		"dev-token":   {ID: 2, Email: "dev@example.com", Role: models.RoleDeveloper, Enabled: true},
	}}
}
