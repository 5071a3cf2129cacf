package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/alerting"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/dedup"
	"github.com/ukydev/fleet-maintenance/internal/email"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/logging"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/publish"
	"github.com/ukydev/fleet-maintenance/internal/settings"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.WithError(err).Fatal("Invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	stores := db.NewStores(client.Database(cfg.MongoDB))
	if err := stores.Notifications.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Warn("Failed to ensure notification indexes")
	}

	deps := alerting.Deps{
		Settings:     settingsSource(cfg, stores),
		Fleet:        stores.Fleet,
		Sink:         stores.Notifications,
		Recipients:   stores.Users,
		HistoryLimit: cfg.HistoryLimit,
	}

	gate, closeGate := buildGate(ctx, cfg, stores.Notifications)
	defer closeGate()
	deps.Gate = gate

	if cfg.MQTTBrokerURL != "" {
		publisher, mqttClient, err := publish.ConnectMQTT(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
		if err != nil {
			log.WithError(err).Warn("MQTT unavailable, alerts will not be published")
		} else {
			defer mqttClient.Disconnect(250)
			deps.Publisher = publisher
			log.WithField("broker", cfg.MQTTBrokerURL).Info("Publishing alerts over MQTT")
		}
	}

	// Missing Mailgun credentials surface per send as email.ErrNotConfigured,
	// only when the settings turn email on.
	transport := email.NewMailgunTransport(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase, cfg.EmailFrom)
	deps.Notifier = email.NewDispatcher(transport, email.NewRenderer(cfg.AppBaseURL))

	engine := alerting.NewEngine(deps)

	switch cfg.RunMode {
	case config.RunModeServe:
		serve(ctx, cfg, engine, stores.Notifications)
	default:
		if _, err := engine.Run(ctx); err != nil {
			// deferred cleanups do not run after os.Exit
			stop()
			_ = client.Disconnect(context.Background())
			os.Exit(1)
		}
	}
}

func settingsSource(cfg *config.Config, stores *db.Stores) alerting.SettingsSource {
	if cfg.SettingsFile != "" {
		log.WithField("path", cfg.SettingsFile).Info("Reading alert settings from file")
		return settings.NewFileSource(cfg.SettingsFile)
	}
	return stores.Settings
}

func buildGate(ctx context.Context, cfg *config.Config, sink *db.MongoNotificationSink) (dedup.Gate, func()) {
	store := dedup.NewStoreGate(sink, cfg.DedupWindow, nil)

	switch cfg.DedupBackend {
	case config.DedupRedis:
		rdb, err := dedup.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, deduplicating against the notification store only")
			return store, func() {}
		}
		log.WithField("addr", cfg.RedisAddr).Info("Deduplicating through Redis")
		return dedup.NewRedisGate(rdb, cfg.DedupWindow, store), func() { _ = rdb.Close() }
	case config.DedupMemory:
		return dedup.NewMemoryGate(cfg.DedupWindow, nil), func() {}
	default:
		return store, func() {}
	}
}

func serve(ctx context.Context, cfg *config.Config, engine *alerting.Engine, notifications *db.MongoNotificationSink) {
	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if authService.UsingDefaultSecret() {
		log.Fatal("JWT_SECRET must not be the development secret in serve mode")
	}

	router := handlers.NewRouter(
		handlers.NewAlertHandler(engine, notifications),
		middleware.NewAuthMiddleware(authService),
		middleware.NewRateLimitMiddleware(cfg.TrustProxy),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
