// Package router assembles the admin HTTP interface.
package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"crudadmin/internal/handlers"
	"crudadmin/internal/logger"
	"crudadmin/internal/middleware"
	"crudadmin/internal/models"
	"crudadmin/internal/registry"
	"crudadmin/internal/services"

	_ "crudadmin/internal/docs" // Import swagger docs
)

// Deps are the services the admin interface is built from.
type Deps struct {
	MountPath   string
	Auth        services.AuthServicer
	Tokens      services.TokenServicer
	Sessions    services.SessionServicer
	Events      services.EventServicer
	Registry    *registry.Registry
	TrackEvents bool
	Cookies     handlers.CookieConfig
	Swagger     bool

	// TrustedProxies may set the client IP through X-Forwarded-For. With
	// none, event and session IPs are always the direct peer.
	TrustedProxies []string
}

// New returns a gin engine serving the admin interface under /{MountPath}.
func New(d Deps) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		logger.Get().Warnw("invalid trusted proxies, using the peer address", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogging())
	r.Use(middleware.ErrorHandler())

	if d.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	Mount(r.Group("/"+strings.Trim(d.MountPath, "/")), d)
	return r
}

// Mount registers the admin routes on g.
func Mount(g *gin.RouterGroup, d Deps) {
	actions := middleware.NewActionLogger(d.Events, d.TrackEvents)

	authHandler := handlers.NewAuthHandler(d.Auth, d.Tokens, d.Cookies)
	modelHandler := handlers.NewModelHandler(d.Registry)
	sessionHandler := handlers.NewSessionHandler(d.Sessions)
	eventHandler := handlers.NewEventHandler(d.Events)
	dashboardHandler := handlers.NewDashboardHandler(d.Registry, d.Sessions, d.TrackEvents)

	// Public routes
	g.POST("/login", actions.Wrap(middleware.ActionSpec{EventType: models.EventTypeLogin}, authHandler.Login))
	g.POST("/logout", actions.Wrap(middleware.ActionSpec{EventType: models.EventTypeLogout}, authHandler.Logout))
	g.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := g.Group("")
	protected.Use(middleware.AuthMiddleware(d.Auth))

	protected.GET("/", dashboardHandler.Dashboard)
	protected.GET("/me", authHandler.Me)

	// Model routes
	rowSpec := func(t models.EventType) middleware.ActionSpec {
		return middleware.ActionSpec{
			EventType:        t,
			ResourceTypeFrom: modelHandler.ResourceType,
			ResourceID:       modelHandler.ResourceID,
			Fetch:            modelHandler.Fetch,
		}
	}
	protected.GET("/models", modelHandler.ListModels)
	m := protected.Group("/models/:model")
	m.GET("", modelHandler.List)
	m.POST("", actions.Wrap(middleware.ActionSpec{
		EventType:        models.EventTypeCreate,
		ResourceTypeFrom: modelHandler.ResourceType,
	}, modelHandler.Create))
	m.POST("/bulk-delete", actions.Wrap(middleware.ActionSpec{
		EventType:        models.EventTypeDelete,
		ResourceTypeFrom: modelHandler.ResourceType,
	}, modelHandler.BulkDelete))
	m.GET("/:id", modelHandler.Get)
	m.PATCH("/:id", actions.Wrap(rowSpec(models.EventTypeUpdate), modelHandler.Update))
	m.PUT("/:id", actions.Wrap(rowSpec(models.EventTypeUpdate), modelHandler.Update))
	m.DELETE("/:id", actions.Wrap(rowSpec(models.EventTypeDelete), modelHandler.Delete))

	// Session routes
	protected.GET("/sessions", sessionHandler.List)
	protected.DELETE("/sessions/:session_id", actions.Wrap(middleware.ActionSpec{
		EventType:    models.EventTypeUpdate,
		ResourceType: registry.AdminSessionView,
		ResourceID:   sessionHandler.ResourceID,
		Fetch:        sessionHandler.Fetch,
	}, sessionHandler.Revoke))

	// Event routes
	events := protected.Group("/events")
	events.GET("/users/:user_id", eventHandler.UserActivity)
	events.GET("/users/:user_id/export", eventHandler.ExportUserActivity)
	events.GET("/resources/:type/:id", eventHandler.ResourceHistory)
	events.GET("/resources/:type/:id/export", eventHandler.ExportResourceHistory)
	events.GET("/alerts", eventHandler.SecurityAlerts)
}
