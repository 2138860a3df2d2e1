package handler

import (
	"net/http"

	"quantumpay-core/internal/adapter/http/dto"
	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// HealthCheck handles GET /health — deep health check verifying all dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}

// ProviderHealthSource exposes the router's view of rail availability.
// Satisfied by provider.Router.
type ProviderHealthSource interface {
	ProviderNames() []string
	Get(provider string) domain.ProviderHealth
}

// ProviderHealth handles GET /health/providers — per-rail routing state.
func ProviderHealth(source ProviderHealthSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := source.ProviderNames()
		items := make([]dto.ProviderHealthResponse, 0, len(names))
		for _, name := range names {
			h := source.Get(name)
			item := dto.ProviderHealthResponse{
				Provider:  name,
				Status:    string(h.Status),
				LastError: h.LastError,
			}
			if !h.CheckedAt.IsZero() {
				item.LastChecked = h.CheckedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
			items = append(items, item)
		}
		response.OK(c, items)
	}
}
