package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gamestore/internal/config"
	"gamestore/internal/database"
	"gamestore/internal/logger"
	"gamestore/internal/seed"
	"gamestore/internal/server"

	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// in-flight requests get 30 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	log.Info("Starting game store API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	startupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(startupCtx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database health check", zap.Any("health", database.Health(startupCtx, db)))

	if err := database.RunMigrations(db, cfg.Database.MigrationsDir, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrations completed successfully")

	redisClient, err := database.OpenRedis(startupCtx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}

	services := server.NewServices(cfg, db, redisClient)

	if cfg.Admin.Email != "" {
		if err := services.Users.EnsureAdmin(startupCtx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal("Failed to ensure admin account", zap.Error(err))
		}
		log.Info("Admin account ready", zap.String("email", cfg.Admin.Email))
	}

	if cfg.Database.Seed {
		if _, err := seed.New(services.Products, services.Categories, log).Run(startupCtx); err != nil {
			log.Fatal("Failed to seed catalog", zap.Error(err))
		}
	}

	srv := server.NewServer(cfg, log, db, redisClient, services)

	// signalled once shutdown is complete
	done := make(chan bool, 1)

	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
