package app

import (
	"context"

	"keygate/internal/auth"
	"keygate/internal/auth/credentials"
	"keygate/internal/auth/handler"
	"keygate/internal/config"
	"keygate/internal/directory"
	"keygate/internal/middleware"
	"keygate/internal/reconcile"
	"keygate/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	store := directory.NewPostgresStore(infra.DB)
	sessionStore := session.NewRedisStore(infra.Redis.Client)

	policy := cfg.Policy()
	reconciler := reconcile.New(store, policy)
	authenticator := auth.New(store, reconciler, policy)
	credentialService := credentials.NewService(store)

	authHandler := handler.NewHandler(
		authenticator,
		sessionStore,
		cfg.TokenCookieName,
		cfg.TokenSecret,
		cfg.TokenMaxAge,
	)
	passwordHandler := handler.NewPasswordHandler(credentialService, authHandler)
	profileHandler := handler.NewProfileHandler(reconciler)
	adminHandler := handler.NewAdminHandler(store)

	authMiddleware := middleware.NewAuthMiddleware(sessionStore, store)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CommunityGate(cfg.Restriction, sessionStore))

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)
	passwordHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	api.GET("/me", func(c *gin.Context) {
		accountID, _ := middleware.AccountIDFromContext(c.Request.Context())
		role, _ := middleware.RoleFromContext(c.Request.Context())
		c.JSON(200, gin.H{
			"account_id": accountID,
			"role":       role,
		})
	})

	profileHandler.RegisterRoutes(api)

	// ----------------------------
	// Admin Routes (super only)
	// ----------------------------

	admin := router.Group("/admin")
	admin.Use(middleware.GinRequireAuth(authMiddleware))
	admin.Use(middleware.GinRequireRole(directory.RoleSuper))

	adminHandler.RegisterRoutes(admin)

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		return infra.DB.Close()
	}, nil
}
