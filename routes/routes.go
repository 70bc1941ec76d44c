package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/handlers"
	"Kendalinet-Layer/middleware"
	"Kendalinet-Layer/notifier"
	"Kendalinet-Layer/repository"
	"Kendalinet-Layer/services"
)

// Deps is everything the REST and WebSocket routes are built from.
type Deps struct {
	Routers       *repository.RouterRepository
	Notifications *repository.NotificationRepository
	Settings      *repository.SettingsRepository
	Usage         *repository.UsageRepository
	Known         *repository.KnownDeviceRepository
	Poller        *services.StatusPoller
	Client        *services.AggregateClient
	Telegram      notifier.Notifier
	Webhook       notifier.Notifier
	RateLimiter   *middleware.RateLimiter
	Logger        zerolog.Logger
	// Context bounds background work started through the API.
	Context context.Context
	Started time.Time
}

func newEngine(log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.CORS())
	return r
}

func SetupRoutes(d Deps) *gin.Engine {
	log := d.Logger.With().Str("component", "rest").Logger()
	r := newEngine(log)
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware())
	}

	routerHandler := handlers.NewRouterHandler(d.Routers, d.Known, d.Poller, log)
	dashboardHandler := handlers.NewDashboardHandler(d.Context, d.Client)
	notificationHandler := handlers.NewNotificationHandler(d.Notifications)
	settingsHandler := handlers.NewSettingsHandler(d.Settings, d.Usage, d.Telegram, d.Webhook, log)

	r.GET("/health", handlers.HealthCheck(d.Started))

	api := r.Group("/api")

	// ========== Router Management Routes ==========
	routers := api.Group("/routers")
	routers.GET("", routerHandler.GetAllRouters)
	routers.POST("", routerHandler.CreateRouter)
	routers.GET("/active", routerHandler.GetActiveRouter)
	routers.GET("/status", routerHandler.GetRouterStatuses)
	routers.POST("/status/check", routerHandler.CheckRouterStatuses)
	routers.GET("/backup", routerHandler.BackupRouters)
	routers.POST("/restore", routerHandler.RestoreRouters)
	routers.GET("/:id", routerHandler.GetRouterByID)
	routers.PUT("/:id", routerHandler.UpdateRouter)
	routers.DELETE("/:id", routerHandler.DeleteRouter)
	routers.PATCH("/:id/active", routerHandler.SetActiveRouter)

	// ========== Dashboard (active router) ==========
	api.GET("/dashboard", dashboardHandler.GetDashboard)
	api.POST("/dashboard/refresh", dashboardHandler.RefreshDashboard)
	api.PUT("/dashboard/auto-refresh", dashboardHandler.SetAutoRefresh)
	api.GET("/board", dashboardHandler.GetBoardInfo)
	api.GET("/wan", dashboardHandler.GetWanStatus)
	api.POST("/wifi", dashboardHandler.SaveWifi)

	// ========== Notification History ==========
	notifications := api.Group("/notifications")
	notifications.GET("", notificationHandler.GetNotifications)
	notifications.DELETE("", notificationHandler.ClearNotifications)
	notifications.GET("/stats", notificationHandler.GetNotificationStats)
	notifications.PATCH("/:id", notificationHandler.UpdateNotificationAction)

	// ========== Settings ==========
	settings := api.Group("/settings")
	settings.GET("/telegram", settingsHandler.GetTelegram)
	settings.PUT("/telegram", settingsHandler.SaveTelegram)
	settings.POST("/telegram/test", settingsHandler.TestTelegram)
	settings.GET("/webhook", settingsHandler.GetWebhook)
	settings.PUT("/webhook", settingsHandler.SaveWebhook)
	settings.POST("/webhook/test", settingsHandler.TestWebhook)
	settings.GET("/dns", settingsHandler.GetDNS)
	settings.PUT("/dns", settingsHandler.SaveDNS)

	api.GET("/dns/providers", settingsHandler.GetDNSProviders)
	api.GET("/usage", settingsHandler.GetUsage)
	api.GET("/usage/:mac", settingsHandler.GetDeviceUsage)
	api.DELETE("/usage", settingsHandler.ResetUsage)

	log.Info().Msg("Routes configured successfully")
	return r
}
