package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/version"
)

// HealthHandler responds with basic service metadata for uptime checks.
func HealthHandler(c *gin.Context) {
	info := version.Get()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"service":    info.Name,
		"version":    info.Version,
		"git_commit": info.GitCommit,
		"build_time": info.BuildTime,
	})
}
