package routes

import (
	"net/http"
	"time"

	"github.com/42cats/crime-cat-sub002/internal/infrastructure/cache"
	"github.com/42cats/crime-cat-sub002/internal/infrastructure/persistence/postgres/connection"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// SetupHealthRoutes registers health, readiness and metrics endpoints
func SetupHealthRoutes(router *gin.Engine, db *connection.Database, redisClient *cache.RedisClient) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
		})
	})

	// Readiness reflects the actual backing stores.
	router.GET("/health/ready", func(c *gin.Context) {
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := redisClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "cache unavailable"})
			return
		}
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().UTC(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
