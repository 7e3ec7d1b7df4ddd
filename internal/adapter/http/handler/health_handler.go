package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 2 * time.Second

type depStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck handles GET /health, pinging every dependency concurrently.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		var mu sync.Mutex
		deps := make(map[string]depStatus, len(checkers))
		allHealthy := true

		var g errgroup.Group
		for _, checker := range checkers {
			g.Go(func() error {
				st := depStatus{Status: "healthy"}
				if err := checker.Ping(ctx); err != nil {
					st = depStatus{Status: "unhealthy", Error: err.Error()}
				}
				mu.Lock()
				defer mu.Unlock()
				deps[checker.Name()] = st
				if st.Status != "healthy" {
					allHealthy = false
				}
				return nil
			})
		}
		_ = g.Wait()

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
