package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"Kendalinet-Layer/handlers"
)

func SetupWebSocketRoutes(d Deps) *gin.Engine {
	log := d.Logger.With().Str("component", "ws").Logger()
	r := newEngine(log)

	// Real-time router status, one message per poll cycle.
	r.GET("/ws/status", handlers.StatusWS(d.Poller, log))
	r.GET("/ws/health", handlers.WsHealthCheck)

	log.Info().Str("endpoint", "/ws/status").Msg("WebSocket routes configured successfully")
	return r
}

// SetupWebSocketServer untuk setup server dengan custom config
func SetupWebSocketServer(d Deps, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           SetupWebSocketRoutes(d),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second, // Increased for long-lived connections
	}
}

func SetupServer(d Deps, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           SetupRoutes(d),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
