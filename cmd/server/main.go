package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/api"
	"github.com/smukkama/sentinel-server/internal/auth"
	"github.com/smukkama/sentinel-server/internal/cache"
	"github.com/smukkama/sentinel-server/internal/connection"
	"github.com/smukkama/sentinel-server/internal/database"
	"github.com/smukkama/sentinel-server/internal/ingest"
	"github.com/smukkama/sentinel-server/internal/logger"
	"github.com/smukkama/sentinel-server/internal/queue"
	"github.com/smukkama/sentinel-server/internal/service"
	"github.com/smukkama/sentinel-server/internal/stream"
	"github.com/smukkama/sentinel-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.App.Name+"-server")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	if cfg.Auth.UsingDevSecret() {
		logg.Warn("JWT_SECRET not set, using development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logg.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logg.Info("Connected to database")

	applied, err := db.RunMigrations(ctx, cfg.Database.MigrationsDir)
	if err != nil {
		logg.Fatal("Failed to run migrations", zap.Error(err))
	}
	logg.Info("Migrations applied", zap.Strings("files", applied))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	store := cache.NewStore(redisClient, cfg.Redis.CacheTTL)
	if err := store.Ping(ctx); err != nil {
		logg.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	logg.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	if err := queue.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.NumPartitions, 1); err != nil {
		logg.Warn("Topic creation failed, alerts will still be published", zap.Error(err))
	}
	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer producer.Close()

	hub := stream.NewHub(connection.NewManager(cfg.HTTP.MaxStreamClients), logg, cfg.HTTP.StreamIdleTimeout)
	go hub.Run(ctx)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(db, tokens, store, cfg.Auth.BcryptCost, logg)
	telemetry := service.NewTelemetryService(db, store, hub, producer, logg)
	alerts := service.NewAlertService(db, logg)

	if cfg.MQTT.Enabled {
		subscriber := ingest.NewSubscriber(&cfg.MQTT, telemetry, logg)
		if err := subscriber.Start(); err != nil {
			logg.Fatal("Failed to start MQTT subscriber", zap.Error(err))
		}
		defer subscriber.Stop()
	}

	srv := api.NewServer(api.Deps{
		Auth:        authService,
		Telemetry:   telemetry,
		Alerts:      alerts,
		Tokens:      tokens,
		Revocations: store,
		Hub:         hub,
		Options: api.Options{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			CookieName:     cfg.Auth.CookieName,
			CookieSecure:   cfg.Auth.CookieSecure,
			TokenTTL:       cfg.Auth.TokenTTL,
		},
		Logger: logg,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logg.Info("HTTP server listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.App.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go logStats(ctx, logg, hub)

	<-ctx.Done()
	logg.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("HTTP shutdown failed", zap.Error(err))
	}
}

func logStats(ctx context.Context, logg *zap.Logger, hub *stream.Hub) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := hub.Stats()
			logg.Info("Stream statistics",
				zap.Int("connections", stats.TotalConnections),
				zap.Int("max_connections", stats.MaxConnections),
				zap.Int("users", stats.UniqueUsers))
		case <-ctx.Done():
			return
		}
	}
}
