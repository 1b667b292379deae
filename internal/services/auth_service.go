package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/models"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
)

// AuthService authenticates portal users and resolves session tokens to users.
type AuthService struct {
	db       *gorm.DB
	sessions *session.Manager
}

// NewAuthService returns an AuthService backed by db and sessions.
func NewAuthService(db *gorm.DB, sessions *session.Manager) *AuthService {
	return &AuthService{db: db, sessions: sessions}
}

// CreateUser stores a new account with a hashed password.
func (s *AuthService) CreateUser(email, password, name, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = models.RoleDeveloper
	}
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	user := &models.User{
		UUID:    uuid.New().String(),
		Email:   email,
		Name:    name,
		Role:    role,
		Enabled: true,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, time.Time, *models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, nil, err
	}
	if !user.Enabled || !user.CheckPassword(password) {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}

	token, expires, err := s.sessions.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return "", time.Time{}, nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expires, &user, nil
}

// Renew reissues a session token with a fresh expiry. The token's user must
// still exist and be enabled, otherwise ErrUnauthenticated is returned and
// the session ends.
func (s *AuthService) Renew(ctx context.Context, token string) (string, time.Time, error) {
	if _, err := s.UserFromToken(ctx, token); err != nil {
		return "", time.Time{}, err
	}
	return s.sessions.Renew(ctx, token)
}

// SetCookie writes the session cookie for a token issued by this service.
func (s *AuthService) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	s.sessions.SetCookie(w, token, expires)
}

// UserFromToken returns the enabled user a session token belongs to.
// Invalid tokens and unknown or disabled users yield ErrUnauthenticated;
// any other error comes from the store.
func (s *AuthService) UserFromToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.sessions.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if !user.Enabled {
		return nil, ErrUnauthenticated
	}
	return &user, nil
}

// ResetPassword sets a new password for the account with email.
func (s *AuthService) ResetPassword(email, password string) error {
	var user models.User
	err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if err := user.SetPassword(password); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.db.Model(&user).Update("password_hash", user.PasswordHash).Error
}
