package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/api/middleware"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/models"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/services"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/session"
)

const (
	securityEventsEndpoint = "security-events"
	securityEventsLimit    = 100
)

// UserLookup resolves the user behind a session token.
type UserLookup interface {
	UserFromToken(ctx context.Context, token string) (*models.User, error)
}

// SecurityEventsHandler serves the recent security events to administrators.
type SecurityEventsHandler struct {
	state   *security.State
	users   UserLookup
	limiter *security.Limiter
}

func NewSecurityEventsHandler(state *security.State, users UserLookup, limiter *security.Limiter) *SecurityEventsHandler {
	return &SecurityEventsHandler{state: state, users: users, limiter: limiter}
}

// List returns the newest events, the total retained and a summary.
func (h *SecurityEventsHandler) List(c *gin.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			h.fail(c, fmt.Errorf("panic: %v", rec))
		}
	}()

	if h.limiter != nil && !middleware.CheckRateLimit(c, h.state, h.limiter, securityEventsEndpoint) {
		return
	}

	token, err := c.Cookie(session.CookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized access"})
		return
	}
	user, err := h.users.UserFromToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized access"})
			return
		}
		h.fail(c, err)
		return
	}
	if !user.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events":  h.state.Events.Recent(securityEventsLimit),
		"total":   h.state.Events.Len(),
		"summary": h.state.Events.Summary(h.state.Now()),
	})
}

func (h *SecurityEventsHandler) fail(c *gin.Context, err error) {
	h.state.Record(c.Request, security.APIErrorDetails{
		Endpoint: securityEventsEndpoint,
		Error:    err.Error(),
	})
	middleware.GetRequestLogger(c).WithError(err).Error("security events request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
