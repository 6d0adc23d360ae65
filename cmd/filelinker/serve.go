package main

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"filelinker/internal/bot"
	"filelinker/internal/config"
	handlers "filelinker/internal/http/handler"
	"filelinker/internal/http/middleware"
	"filelinker/internal/logging"
	"filelinker/internal/otel"
	"filelinker/internal/service"
	"filelinker/internal/storage"
	"filelinker/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

// newOpsApp builds the ops HTTP server. Request metrics are registered on reg.
func newOpsApp(reg prometheus.Registerer, deps handlers.Deps, logger *log.Logger) (*fiber.App, error) {
	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(logger))
	app.Use(prom.Handler())

	handlers.RegisterRoutes(app, deps)
	return app, nil
}

func runServe(ctx context.Context, cfg *config.AppConfig) error {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid_config", "err", err)
		return err
	}

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("tracing_shutdown_failed", "err", err)
		}
	}()

	st, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("storage_init_failed", "err", err)
		return err
	}
	defer st.Close()

	var objects storage.Storage
	if cfg.MinIO.Enabled() {
		objects, err = storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			logger.Error("object_storage_init_failed", "err", err)
			return err
		}
	}
	backup := service.NewBackup(objects, logger)

	client, err := telegram.New(cfg.Bot.Token, telegram.NewHTTPClient(cfg.Bot.PollTimeoutSec))
	if err != nil {
		logger.Error("bot_auth_failed", "err", err)
		return err
	}

	registry := st.registry(logger)
	access := service.NewAccessGate(cfg.Bot.AdminID, registry)
	gate := service.NewMembershipGate(client, cfg.Bot.RequiredChannels, cfg.Bot.MembershipCacheSize, cfg.Bot.MembershipCacheTTL, logger)
	deletions := service.NewDeletionScheduler(st.deletions, client, cfg.Bot.DeleteAfter, cfg.SweepInterval, logger)
	sessions := service.NewSessionStore()

	b := bot.New(bot.Deps{
		Messenger: client,
		Access:    access,
		Registry:  registry,
		Sessions:  sessions,
		Uploads: service.NewUploadService(registry, sessions, client, backup,
			cfg.Bot.StorageChannelID, cfg.Bot.ShareLinkHost, client.Username, logger),
		Delivery: service.NewDeliveryService(registry, access, gate, client, deletions,
			cfg.Bot.StorageChannelID, logger),
		Logger: logger,
	})

	deps := handlers.Deps{Stats: registry, Gatherer: prometheus.DefaultGatherer}
	if st.db != nil {
		deps.DB = st.db
	}
	if backup.Enabled() {
		deps.Manifests = backup
	}
	app, err := newOpsApp(prometheus.DefaultRegisterer, deps, logger)
	if err != nil {
		return err
	}
	go func() {
		logger.Info("ops_server_listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("ops_server_failed", "err", err)
		}
	}()

	deletions.Start(ctx)

	updates := client.Updates(cfg.Bot.PollTimeoutSec)
	go func() {
		<-ctx.Done()
		client.Stop()
	}()
	b.Run(ctx, updates)

	logger.Info("shutdown_started")
	deletions.Stop()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("ops_server_shutdown_failed", "err", err)
	}
	logger.Info("shutdown_complete")
	return nil
}
