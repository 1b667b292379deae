package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/api/middleware"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/models"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/services"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/session"
)

// Authenticator is the part of the auth service the handlers use.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, time.Time, *models.User, error)
	UserFromToken(ctx context.Context, token string) (*models.User, error)
	SetCookie(w http.ResponseWriter, token string, expires time.Time)
}

type AuthHandler struct {
	auth    Authenticator
	state   *security.State
	limiter *security.Limiter
}

// NewAuthHandler creates an AuthHandler. A nil limiter disables login throttling.
func NewAuthHandler(auth Authenticator, state *security.State, limiter *security.Limiter) *AuthHandler {
	return &AuthHandler{auth: auth, state: state, limiter: limiter}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	if h.limiter != nil && !middleware.CheckRateLimit(c, h.state, h.limiter, "auth-login") {
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid login request"})
		return
	}

	token, expires, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		middleware.GetRequestLogger(c).WithError(err).Error("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.auth.SetCookie(c.Writer, token, expires)
	c.JSON(http.StatusOK, gin.H{"user": user, "expiresAt": expires})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session.ClearCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	token, err := c.Cookie(session.CookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized access"})
		return
	}
	user, err := h.auth.UserFromToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized access"})
			return
		}
		middleware.GetRequestLogger(c).WithError(err).Error("session lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, user)
}
