package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/config"
	"Kendalinet-Layer/credentials"
	"Kendalinet-Layer/database"
	"Kendalinet-Layer/logger"
	"Kendalinet-Layer/middleware"
	"Kendalinet-Layer/models"
	"Kendalinet-Layer/notifier"
	"Kendalinet-Layer/repository"
	"Kendalinet-Layer/routes"
	"Kendalinet-Layer/services"
	"Kendalinet-Layer/storage"
	"Kendalinet-Layer/validation"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		l := logger.GetLogger()
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Debug:  cfg.Logging.Debug,
		Output: cfg.Logging.Output,
		Pretty: cfg.Logging.Pretty,
	}); err != nil {
		l := logger.GetLogger()
		l.Fatal().Err(err).Msg("Failed to init logger")
	}
	log := logger.WithComponent("main")
	log.Info().Str("transport", cfg.Transport.Method).Str("storage", cfg.Storage.Driver).Msg("Starting KendaliNet Layer")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("KendaliNet Layer stopped with error")
	}
	log.Info().Msg("KendaliNet Layer stopped")
}

func openStorage(cfg *config.Config, log zerolog.Logger) (storage.Storage, func(), error) {
	switch cfg.Storage.Driver {
	case "mysql":
		db, err := database.NewDatabase(cfg.Database.DSN(), logger.WithComponent("database"))
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("host", cfg.Database.Host).Str("name", cfg.Database.Name).Msg("Database connected")
		return db, func() { _ = db.Close() }, nil
	case "memory":
		log.Warn().Msg("Using in-memory storage, nothing survives a restart")
		return storage.NewMemoryStorage(), func() {}, nil
	default:
		fs, err := storage.NewFileStorage(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.Storage.Path).Msg("File storage ready")
		return fs, func() {}, nil
	}
}

func openSealer(cfg *config.Config, log zerolog.Logger) (credentials.Sealer, error) {
	if cfg.Credentials.EncryptionKey == "" {
		log.Warn().Msg("No credentials key configured, router passwords are stored in plaintext")
		return credentials.Plaintext{}, nil
	}
	return credentials.NewCipher(cfg.Credentials.EncryptionKey)
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	sealer, err := openSealer(cfg, log)
	if err != nil {
		return err
	}

	var seed *models.RouterCreateRequest
	if cfg.DefaultRouter.Enabled {
		seed = &models.RouterCreateRequest{
			Name:      cfg.DefaultRouter.Name,
			IPAddress: cfg.DefaultRouter.IPAddress,
			Username:  cfg.DefaultRouter.Username,
			Password:  cfg.DefaultRouter.Password,
		}
	}

	routerRepo, err := repository.NewRouterRepository(store, logger.WithComponent("routers"), repository.RouterRepositoryOptions{
		Sealer: sealer,
		Seed:   seed,
	})
	if err != nil {
		return err
	}
	notificationRepo := repository.NewNotificationRepository(store, logger.WithComponent("notifications"))
	settingsRepo := repository.NewSettingsRepository(store, sealer, logger.WithComponent("settings"))
	usageRepo := repository.NewUsageRepository(store, logger.WithComponent("usage"))
	knownRepo := repository.NewKnownDeviceRepository(store, logger.WithComponent("known_devices"))

	routerClient := cleanhttp.DefaultPooledClient()
	notifyClient := cleanhttp.DefaultPooledClient()
	notifyClient.Timeout = 15 * time.Second

	telegram := notifier.NewTelegramNotifier(settingsRepo, cfg.Notifier.TelegramAPIBase, notifyClient)
	webhook := notifier.NewWebhookNotifier(settingsRepo, notifyClient)
	dispatcher := notifier.NewDispatcher(logger.WithComponent("notifier"), 0, telegram, webhook)

	poller := services.NewStatusPoller(routerRepo, services.PollerConfig{
		Interval:      cfg.Poller.Interval,
		ProbeTimeout:  cfg.Poller.ProbeTimeout,
		MaxConcurrent: cfg.Poller.MaxConcurrent,
		HTTPClient:    routerClient,
	}, logger.WithComponent("poller"))

	factory := services.NewTransportFactory(cfg.Transport.Method, routerClient, cfg.Transport.UbusLogin, logger.WithComponent("transport"))
	client := services.NewAggregateClient(routerRepo, factory, services.ClientConfig{
		AutoRefreshInterval: cfg.Dashboard.AutoRefreshInterval,
	}, logger.WithComponent("dashboard"))
	client.SetDeviceObserver(services.NewDeviceWatcher(knownRepo, notificationRepo, usageRepo, dispatcher, logger.WithComponent("watcher")))

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter, err = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.CleanupInterval, cfg.RateLimit.StaleAfter)
		if err != nil {
			return err
		}
		defer limiter.Close()
	}

	if !cfg.Logging.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.RegisterGin()

	deps := routes.Deps{
		Routers:       routerRepo,
		Notifications: notificationRepo,
		Settings:      settingsRepo,
		Usage:         usageRepo,
		Known:         knownRepo,
		Poller:        poller,
		Client:        client,
		Telegram:      telegram,
		Webhook:       webhook,
		RateLimiter:   limiter,
		Logger:        logger.GetLogger(),
		Context:       ctx,
		Started:       time.Now(),
	}
	restServer := routes.SetupServer(deps, cfg.Server.Addr)
	wsServer := routes.SetupWebSocketServer(deps, cfg.Server.WSAddr)

	go poller.Run(ctx)
	if cfg.Dashboard.AutoRefresh {
		client.StartAutoRefresh(ctx)
	}

	errCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		log.Info().Str("addr", srv.Addr).Msgf("%s server listening", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}
	go serve("REST API", restServer)
	go serve("WebSocket", wsServer)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Server failed")
	}

	stop()
	client.StopAutoRefresh()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("REST API server shutdown")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("WebSocket server shutdown")
	}
	return runErr
}
