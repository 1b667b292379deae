package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/api/handlers"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/api/middleware"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/cerberus"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/config"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/services"
)

// Deps are the shared components the routes are built from.
type Deps struct {
	Config   config.Config
	State    *security.State
	Auth     *services.AuthService
	Registry *prometheus.Registry
}

// HeadersConfig derives the security header settings from cfg.
func HeadersConfig(cfg config.Config) middleware.SecurityHeadersConfig {
	headers := middleware.DefaultSecurityHeadersConfig()
	headers.IsDevelopment = cfg.IsDevelopment()
	return headers
}

// Register wires the security pipeline and the API routes onto router.
func Register(router *gin.Engine, deps Deps) error {
	if deps.State == nil {
		return fmt.Errorf("register routes: security state is required")
	}
	headers := HeadersConfig(deps.Config)

	opts := cerberus.Options{
		ExcludedPrefixes: deps.Config.Security.ExcludedPrefixes,
		Headers:          headers,
	}
	if deps.Auth != nil {
		opts.Sessions = deps.Auth
	}
	cerb := cerberus.New(deps.State, opts)
	// Headers run at router level so excluded prefixes and unmatched routes
	// (NoRoute 404s) carry them too.
	router.Use(middleware.SecurityHeaders(headers), cerb.Middleware())

	if deps.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")

	general := api.Group("")
	if limiter, ok := deps.State.Limiter(security.PolicyDefault); ok {
		general.Use(middleware.RateLimit(deps.State, limiter, "api"))
	}
	general.GET("/health", handlers.HealthHandler)

	if deps.Auth != nil {
		authLimiter, _ := deps.State.Limiter(security.PolicyAuth)
		authHandler := handlers.NewAuthHandler(deps.Auth, deps.State, authLimiter)
		general.POST("/auth/login", authHandler.Login)
		general.POST("/auth/logout", authHandler.Logout)
		general.GET("/auth/me", authHandler.Me)

		strict, _ := deps.State.Limiter(security.PolicyStrict)
		eventsHandler := handlers.NewSecurityEventsHandler(deps.State, deps.Auth, strict)
		api.GET("/security/events", eventsHandler.List)
	}

	return nil
}
