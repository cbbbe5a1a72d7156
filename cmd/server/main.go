// Package main runs the spatial projects API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	app "github.com/terralayer/spatial_layer/internal/app"
	"github.com/terralayer/spatial_layer/internal/app/httpapi"
	"github.com/terralayer/spatial_layer/internal/app/storage"
	"github.com/terralayer/spatial_layer/internal/app/storage/postgres"
	"github.com/terralayer/spatial_layer/internal/app/storage/rediscache"
	"github.com/terralayer/spatial_layer/internal/config"
	"github.com/terralayer/spatial_layer/internal/middleware"
	"github.com/terralayer/spatial_layer/internal/platform/database"
	"github.com/terralayer/spatial_layer/internal/platform/migrations"
	"github.com/terralayer/spatial_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to optional YAML config overrides")
	envFile := flag.String("env-file", "", "Path to optional .env file")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}).WithField("component", "server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	if err := migrations.Run(db.DB); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}
	log.Info("database schema up to date")

	var store storage.ProjectStore = postgres.New(db)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		store = rediscache.New(store, client, cfg.Redis.TTL, log.WithField("component", "cache"))
		log.WithField("addr", cfg.Redis.Addr).Info("project cache enabled")
	}

	application, err := app.New(cfg, log, app.Stores{Projects: store})
	if err != nil {
		log.WithError(err).Fatal("application init failed")
	}
	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("background services failed to start")
	}

	handler := httpapi.NewHandler(application, db)
	handler = middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins).Handler(handler)
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
		stopCleanup := make(chan struct{})
		limiter.StartCleanup(10*time.Minute, stopCleanup)
		defer close(stopCleanup)
		handler = limiter.Handler(handler)
	}
	handler = middleware.NewRequestLogger(log).Handler(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.WithError(err).Error("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown incomplete")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("background services shutdown incomplete")
	}
	log.Info("stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
