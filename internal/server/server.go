package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/api/middleware"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/api/routes"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/config"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/logger"
)

// Server wraps the HTTP engine and shared dependencies for easier testing.
type Server struct {
	Engine *gin.Engine
	cfg    config.Config
}

// New wires up the HTTP router, the security pipeline and the frontend bundle.
func New(deps routes.Deps) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	if deps.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	}
	gin.DefaultWriter = logger.Writer()

	router := gin.New()
	var hooks []middleware.PanicHook
	if deps.State != nil {
		hooks = append(hooks, middleware.RecordPanics(deps.State))
	}
	router.Use(middleware.RequestID(), middleware.RequestLogger(), middleware.Recovery(deps.Config.Debug, hooks...))

	if err := routes.Register(router, deps); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	attachFrontend(router, deps.Config.FrontendDir)

	return &Server{Engine: router, cfg: deps.Config}, nil
}

func attachFrontend(router *gin.Engine, frontendDir string) {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	}
	if frontendDir == "" {
		router.NoRoute(notFound)
		return
	}

	info, err := os.Stat(frontendDir)
	if err != nil || !info.IsDir() {
		router.NoRoute(notFound)
		return
	}

	assetsDir := filepath.Join(frontendDir, "assets")
	if _, err := os.Stat(assetsDir); err == nil {
		router.StaticFS("/assets", gin.Dir(assetsDir, false))
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			notFound(c)
			return
		}

		c.File(filepath.Join(frontendDir, "index.html"))
	})
}

// Run starts the HTTP server with proper shutdown semantics.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.HTTPPort),
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
