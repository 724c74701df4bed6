package http

import (
	"github.com/gin-gonic/gin"

	"plexward/internal/interfaces/http/handlers"
	"plexward/internal/interfaces/http/middleware"
)

// Router owns the gin engine and route registration.
type Router struct {
	engine    *gin.Engine
	container *Container
}

// NewRouter builds the engine and registers all routes.
func NewRouter(container *Container) *Router {
	switch container.cfg.Server.Mode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger(container.logger))

	r := &Router{
		engine:    engine,
		container: container,
	}
	r.registerRoutes()
	return r
}

// Engine returns the underlying gin engine.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) registerRoutes() {
	c := r.container

	healthHandler := handlers.NewHealthHandler(c.db)
	r.engine.GET("/healthz", healthHandler.Check)

	webhookHandler := handlers.NewWebhookHandler(
		c.paypalClient,
		c.stripeClient,
		c.Reconciler,
		c.events,
		c.logger,
	)

	webhooks := r.engine.Group("/webhook")
	if c.rateLimiter != nil && c.cfg.RateLimit.Enabled && c.cfg.Server.Mode != "test" {
		webhooks.Use(middleware.RateLimit(c.rateLimiter, c.cfg.RateLimit.RequestsPerMinute))
	}
	webhooks.POST("/paypal", webhookHandler.HandlePayPal)
	webhooks.POST("/stripe", webhookHandler.HandleStripe)

	shareHandler := handlers.NewShareHandler(c.shareResolver)
	r.engine.GET("/api/share/:token", shareHandler.Resolve)

	adminHandler := handlers.NewAdminHandler(c.adminService, c.jwtService, c.cfg.Admin.SessionSecret, c.logger)
	authMiddleware := middleware.NewAdminAuthMiddleware(c.jwtService, c.logger)

	r.engine.POST("/api/admin/login", adminHandler.Login)

	adminRoutes := r.engine.Group("/api/admin")
	adminRoutes.Use(authMiddleware.RequireAuth())
	{
		adminRoutes.GET("/donors", adminHandler.ListDonors)
		adminRoutes.GET("/donors/:id", adminHandler.GetDonor)
		adminRoutes.POST("/donors/:id/refresh", adminHandler.RefreshDonor)
		adminRoutes.POST("/donors/:id/invite", adminHandler.ForceInvite)
		adminRoutes.DELETE("/donors/:id", adminHandler.DeleteDonor)

		adminRoutes.POST("/verify/:integration", adminHandler.VerifyIntegration)

		adminRoutes.GET("/settings/:category", adminHandler.GetSettings)
		adminRoutes.PUT("/settings/:category", adminHandler.UpdateSettings)

		adminRoutes.GET("/events", adminHandler.ListEvents)
		adminRoutes.POST("/announcements", adminHandler.SendAnnouncement)

		adminRoutes.POST("/share-links", adminHandler.CreateShareLink)
		adminRoutes.GET("/share-links", adminHandler.ListShareLinks)
		adminRoutes.DELETE("/share-links/:id", adminHandler.DeleteShareLink)
	}
}
