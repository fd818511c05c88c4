package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"crudadmin/internal/app"
	"crudadmin/internal/config"
	"crudadmin/internal/database"
	"crudadmin/internal/logger"
	"crudadmin/internal/router"
	"crudadmin/internal/validator"
)

// @title           crudadmin API
// @version         1.0
// @description     Admin interface with sessions, token revocation and audited CRUD over registered models.

// @host      localhost:8080
// @BasePath  /admin

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name access_token
// @description "Bearer" followed by a space and the access token, plus the session_id cookie.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Register()

	// Run migrations
	if err := database.Migrate(app.AdminDBOptions(cfg)); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.MigrateHost(); err != nil {
		return err
	}
	if _, err := a.Users.EnsureInitialAdmin(ctx, cfg.InitialAdminUsername, cfg.InitialAdminPassword); err != nil {
		return fmt.Errorf("failed to create initial admin: %w", err)
	}

	go a.Maintenance().Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(a.RouterDeps()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting crudadmin on port %s, mounted at /%s", cfg.Port, cfg.MountPath)
		if !cfg.IsProduction() {
			log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
		}
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

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
