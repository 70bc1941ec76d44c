package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck - GET /health
func HealthCheck(started time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, "API berjalan normal", gin.H{
			"status":    "ok",
			"timestamp": time.Now(),
			"uptime":    time.Since(started).Round(time.Second).String(),
		})
	}
}
