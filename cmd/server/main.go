package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexus-care/internal/api/routes"
	"nexus-care/internal/config"
	"nexus-care/internal/logger"
	"nexus-care/internal/models"
	"nexus-care/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	os.Exit(runMain(os.Args[1:]))
}

// runMain returns the process exit code so deferred cleanup, including the
// final logger flush, runs before the process exits.
func runMain(args []string) int {
	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := flags.String("config", "configs/config.yaml", "path to the YAML config file")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	logr, err := logger.New(cfg.Log)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}
	defer logr.Sync()

	if err := run(cfg, logr); err != nil {
		logr.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := models.Open(cfg)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	store, closeStore, err := newSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := routes.NewServices(cfg, db, store, logr)

	// Create default user if database is empty
	if err := svc.Auth.CreateDefaultUser(ctx); err != nil {
		logr.Warn("failed to create default user", zap.Error(err))
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	routes.SetupRoutes(r, cfg, svc, logr)

	go purgeSessions(ctx, svc.Sessions, cfg.Session.CleanupEvery(), logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("starting NexusCare server",
			zap.String("addr", srv.Addr),
			zap.String("database", cfg.Database.Type),
			zap.String("session_store", cfg.Session.Store),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newSessionStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (services.SessionStore, func(), error) {
	if cfg.Session.Store != "redis" {
		return services.NewDBSessionStore(db), func() {}, nil
	}

	client, err := services.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return services.NewRedisSessionStore(client, cfg.Redis.KeyPrefix), func() { client.Close() }, nil
}

// purgeSessions drops expired sessions until ctx is cancelled.
func purgeSessions(ctx context.Context, sessions *services.SessionManager, every time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.PurgeExpired(ctx); err != nil {
				logr.Warn("session cleanup failed", zap.Error(err))
			}
		}
	}
}
