package main

import (
	"family-service/internal/apperror"
	"family-service/internal/handler"
	"family-service/internal/mailer"
	"family-service/internal/middleware"
	"family-service/internal/notify"
	"family-service/internal/permission"
	"family-service/pkg/config"
	"family-service/pkg/database"
	"family-service/pkg/jwtutil"
	"family-service/pkg/logger"
	"family-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting family service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.Initialize(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	db := database.GetDB()
	log.Info("Database connection established and schema migrated")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Seed the built-in role templates and build the services shared by
	// the handlers.
	perms := permission.NewService(db)
	if err := perms.Seed(); err != nil {
		log.Fatal("Failed to seed role templates", zap.Error(err))
	}
	log.Info("Role templates seeded")

	mail := mailer.New(cfg, log)
	notifier := notify.New(db, log)

	authHandler := handler.NewAuthHandler(db, perms, mail, notifier, cfg)
	userHandler := handler.NewUserHandler(db, perms, mail, notifier, cfg)
	memberHandler := handler.NewMemberHandler(db, notifier, cfg)
	eventHandler := handler.NewEventHandler(db, notifier, cfg)
	albumHandler := handler.NewAlbumHandler(db, notifier, cfg)
	adHandler := handler.NewAdvertisementHandler(db, notifier, cfg)
	financialHandler := handler.NewFinancialHandler(db, notifier, cfg)
	notificationHandler := handler.NewNotificationHandler(db)
	permissionHandler := handler.NewPermissionHandler(db, perms)
	healthHandler := handler.NewHealthHandler(db)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperror.ErrorHandler

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))
	e.Static("/uploads", cfg.Upload.Dir)

	api := e.Group("/api/v1")

	// Authentication routes
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)

	// Everything below requires a valid token cookie
	authed := api.Group("", middleware.Auth)

	// User management
	users := authed.Group("/users")
	users.GET("/me", userHandler.GetAuthUser)
	users.GET("/stats", userHandler.Stats)
	users.GET("/roles", userHandler.ListRoles)
	users.POST("", userHandler.Create, middleware.RequirePermission(db, permission.EntityUser, permission.ActionCreate))
	users.GET("", userHandler.List, middleware.RequirePermission(db, permission.EntityUser, permission.ActionView))
	users.GET("/:id", userHandler.Get, middleware.RequirePermission(db, permission.EntityUser, permission.ActionView))
	users.PATCH("/:id", userHandler.Update, middleware.RequirePermission(db, permission.EntityUser, permission.ActionUpdate))
	users.DELETE("/:id", userHandler.Delete, middleware.RequirePermission(db, permission.EntityUser, permission.ActionDelete))
	users.PATCH("/:id/permissions", userHandler.UpdatePermissions, middleware.RequirePermission(db, permission.EntityUser, permission.ActionUpdate))
	users.PATCH("/roles/:role/permissions", userHandler.UpdateRolePermissions, middleware.RequirePermission(db, permission.EntityUser, permission.ActionUpdate))
	users.DELETE("/roles", userHandler.DeleteRoleFromAllUsers, middleware.RequirePermission(db, permission.EntityUser, permission.ActionDelete))

	// Genealogy
	members := authed.Group("/members")
	members.POST("", memberHandler.Create, middleware.RequirePermission(db, permission.EntityMember, permission.ActionCreate))
	members.GET("", memberHandler.List, middleware.RequirePermission(db, permission.EntityMember, permission.ActionView))
	members.GET("/:id", memberHandler.Get, middleware.RequirePermission(db, permission.EntityMember, permission.ActionView))
	members.PATCH("/:id", memberHandler.Update, middleware.RequirePermission(db, permission.EntityMember, permission.ActionUpdate))
	members.DELETE("/:id", memberHandler.Delete, middleware.RequirePermission(db, permission.EntityMember, permission.ActionDelete))

	// Events
	events := authed.Group("/events")
	events.POST("", eventHandler.Create, middleware.RequirePermission(db, permission.EntityEvent, permission.ActionCreate))
	events.GET("", eventHandler.List, middleware.RequirePermission(db, permission.EntityEvent, permission.ActionView))
	events.GET("/:id", eventHandler.Get, middleware.RequirePermission(db, permission.EntityEvent, permission.ActionView))
	events.PATCH("/:id", eventHandler.Update, middleware.RequirePermission(db, permission.EntityEvent, permission.ActionUpdate))
	events.DELETE("/:id", eventHandler.Delete, middleware.RequirePermission(db, permission.EntityEvent, permission.ActionDelete))

	// Albums and images
	albums := authed.Group("/albums")
	albums.POST("", albumHandler.Create, middleware.RequirePermission(db, permission.EntityAlbum, permission.ActionCreate))
	albums.GET("", albumHandler.List, middleware.RequirePermission(db, permission.EntityAlbum, permission.ActionView))
	albums.GET("/:id", albumHandler.Get, middleware.RequirePermission(db, permission.EntityAlbum, permission.ActionView))
	albums.PATCH("/:id", albumHandler.Update, middleware.RequirePermission(db, permission.EntityAlbum, permission.ActionUpdate))
	albums.DELETE("/:id", albumHandler.Delete, middleware.RequirePermission(db, permission.EntityAlbum, permission.ActionDelete))
	albums.POST("/:id/images", albumHandler.AddImage, middleware.RequirePermission(db, permission.EntityAlbum, permission.ActionUpdate))
	albums.DELETE("/:id/images/:imageId", albumHandler.DeleteImage, middleware.RequirePermission(db, permission.EntityAlbum, permission.ActionUpdate))

	// Advertisements
	ads := authed.Group("/advertisements")
	ads.POST("", adHandler.Create, middleware.RequirePermission(db, permission.EntityAdvertisement, permission.ActionCreate))
	ads.GET("", adHandler.List, middleware.RequirePermission(db, permission.EntityAdvertisement, permission.ActionView))
	ads.GET("/:id", adHandler.Get, middleware.RequirePermission(db, permission.EntityAdvertisement, permission.ActionView))
	ads.PATCH("/:id", adHandler.Update, middleware.RequirePermission(db, permission.EntityAdvertisement, permission.ActionUpdate))
	ads.DELETE("/:id", adHandler.Delete, middleware.RequirePermission(db, permission.EntityAdvertisement, permission.ActionDelete))
	ads.DELETE("", adHandler.DeleteAll, middleware.RequirePermission(db, permission.EntityAdvertisement, permission.ActionDelete))

	// Financial ledger
	financial := authed.Group("/financial")
	financial.POST("", financialHandler.Create, middleware.RequirePermission(db, permission.EntityFinancial, permission.ActionCreate))
	financial.GET("", financialHandler.List, middleware.RequirePermission(db, permission.EntityFinancial, permission.ActionView))
	financial.GET("/summary", financialHandler.Summary, middleware.RequirePermission(db, permission.EntityFinancial, permission.ActionView))
	financial.GET("/:id", financialHandler.Get, middleware.RequirePermission(db, permission.EntityFinancial, permission.ActionView))
	financial.PATCH("/:id", financialHandler.Update, middleware.RequirePermission(db, permission.EntityFinancial, permission.ActionUpdate))
	financial.DELETE("/:id", financialHandler.Delete, middleware.RequirePermission(db, permission.EntityFinancial, permission.ActionDelete))
	financial.DELETE("", financialHandler.DeleteAll, middleware.RequirePermission(db, permission.EntityFinancial, permission.ActionDelete))

	// Notifications - always scoped to the caller, no entity gating
	notifications := authed.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.PATCH("/:id/read", notificationHandler.MarkRead)
	notifications.PATCH("/read-all", notificationHandler.MarkAllRead)
	notifications.DELETE("/:id", notificationHandler.Delete)

	// Permission introspection
	permissions := authed.Group("/permissions")
	permissions.POST("/check", permissionHandler.Check)
	permissions.GET("/roles/:role", permissionHandler.Template)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
