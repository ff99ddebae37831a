package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// CreateHealthHandler reports readiness of each registered dependency.
func CreateHealthHandler(checks map[string]HealthChecker, version string) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		ready := true
		components := gin.H{}
		for _, name := range names {
			if err := checks[name].HealthCheck(ctx); err != nil {
				ready = false
				components[name] = gin.H{"ready": false, "error": err.Error()}
				continue
			}
			components[name] = gin.H{"ready": true}
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"version":    version,
			"components": components,
		})
	}
}
