// Package app wires configuration, storage and services together for the
// binaries under cmd/.
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"crudadmin/internal/cache"
	"crudadmin/internal/config"
	"crudadmin/internal/database"
	"crudadmin/internal/demo"
	"crudadmin/internal/handlers"
	"crudadmin/internal/hostapp"
	"crudadmin/internal/logger"
	"crudadmin/internal/registry"
	"crudadmin/internal/router"
	"crudadmin/internal/services"
)

// App holds the wired admin services.
type App struct {
	Config   *config.Config
	DB       *database.Manager
	Users    services.AdminUserServicer
	Tokens   services.TokenServicer
	Sessions services.SessionServicer
	Events   services.EventServicer
	Auth     services.AuthServicer
	Registry *registry.Registry

	redis *redis.Client
}

// AdminDBOptions returns the admin store options of cfg.
func AdminDBOptions(cfg *config.Config) database.Options {
	return database.Options{Driver: cfg.AdminDBDriver, DSN: cfg.AdminDBDSN}
}

// AppDBOptions returns the host application database options of cfg.
func AppDBOptions(cfg *config.Config) database.Options {
	return database.Options{Driver: cfg.AppDBDriver, DSN: cfg.AppDSN()}
}

// New opens the databases and builds every service. The admin schema must
// already be migrated.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	appOpts := AppDBOptions(cfg)
	db, err := database.NewManager(AdminDBOptions(cfg), &appOpts)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: db}
	adminDB := db.AdminDB()

	var blacklist services.BlacklistStore = services.NewBlacklistStore(adminDB)
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.redis = client
		blacklist = cache.NewBlacklistCache(client, blacklist)
		logger.Get().Infow("token blacklist cached in redis", "addr", cfg.RedisAddr)
	}

	a.Tokens, err = services.NewTokenService(services.TokenConfig{
		SecretKey:  cfg.SecretKey,
		Algorithm:  cfg.Algorithm,
		AccessTTL:  cfg.AccessTokenExpire,
		RefreshTTL: cfg.RefreshTokenExpire,
	}, blacklist)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	a.Users = services.NewAdminUserService(adminDB)
	a.Sessions = services.NewSessionService(adminDB, services.SessionConfig{
		MaxSessions: cfg.MaxSessionsPerUser,
		Timeout:     cfg.SessionTimeout,
	})
	a.Events = services.NewEventService(adminDB)
	a.Auth = services.NewAuthService(a.Users, a.Sessions, a.Tokens)

	if err := a.buildRegistry(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildRegistry() error {
	a.Registry = registry.New()

	users, err := registry.NewAdminUserView(a.DB.AdminDB(), a.Users)
	if err != nil {
		return err
	}
	sessions, err := registry.NewAdminSessionView(a.DB.AdminDB())
	if err != nil {
		return err
	}
	if err := a.Registry.Register(users); err != nil {
		return err
	}
	if err := a.Registry.Register(sessions); err != nil {
		return err
	}
	return demo.RegisterViews(a.Registry, a.DB.AppDB())
}

// MigrateHost creates the demo host application tables.
func (a *App) MigrateHost() error {
	return a.DB.AutoMigrateApp(&hostapp.Account{}, &hostapp.Transaction{})
}

// Maintenance returns the housekeeping loop configured from the app config.
func (a *App) Maintenance() *services.Maintenance {
	return &services.Maintenance{
		Sessions:      a.Sessions,
		Events:        a.Events,
		Tokens:        a.Tokens,
		Interval:      a.Config.CleanupInterval,
		RetentionDays: a.Config.LogRetentionDays(),
		TrackEvents:   a.Config.TrackEvents,
	}
}

// RouterDeps returns the dependencies of the admin router.
func (a *App) RouterDeps() router.Deps {
	return router.Deps{
		MountPath:   a.Config.MountPath,
		Auth:        a.Auth,
		Tokens:      a.Tokens,
		Sessions:    a.Sessions,
		Events:      a.Events,
		Registry:    a.Registry,
		TrackEvents: a.Config.TrackEvents,
		Cookies:     handlers.CookieConfig{Path: a.Config.CookiePath(), Secure: a.Config.SecureCookies},
		Swagger:     !a.Config.IsProduction(),

		TrustedProxies: a.Config.TrustedProxies,
	}
}

// Close releases the database pools and the Redis client.
func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return a.DB.Close()
}
