// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"merx/internal/domain/auth"
	"merx/internal/domain/cart"
	"merx/internal/domain/ledger"
	"merx/internal/domain/lots"
	"merx/internal/domain/product"
	"merx/internal/domain/valuation"
	"merx/internal/infrastructure/http/v1/handlers"
	"merx/internal/infrastructure/http/v1/middleware"
	"merx/internal/infrastructure/storage/postgres"
	"merx/pkg/logger"
)

// RouterConfig holds the wired services the router exposes.
type RouterConfig struct {
	Pool   *postgres.Pool
	Cache  handlers.Pinger
	Logger *logger.Logger

	TokenValidator middleware.TokenValidator
	AuthService    *auth.Service

	Products  *product.Service
	Valuation *valuation.Service
	Lots      *lots.Service
	Ledger    *ledger.Service
	Cart      *cart.Service
	History   handlers.HistorySource
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Cache)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Public auth endpoints
		authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
		v1.POST("/auth/login", authHandler.Login)

		// Protected endpoints
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.TokenValidator))

		productHandler := handlers.NewProductHandler(baseHandler, cfg.Products, cfg.Valuation)
		lotHandler := handlers.NewLotHandler(baseHandler, cfg.Lots)
		movementHandler := handlers.NewMovementHandler(baseHandler, cfg.Ledger, cfg.History)
		cartHandler := handlers.NewCartHandler(baseHandler, cfg.Cart)

		products := protected.Group("/products")
		{
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
			products.GET("/:id/valuation", productHandler.Valuation)
			products.GET("/:id/lots", lotHandler.ListByProduct)
			products.POST("/:id/lots", lotHandler.Create)
			products.GET("/:id/movements", movementHandler.ListByProduct)
		}

		lotsGroup := protected.Group("/lots")
		{
			lotsGroup.PUT("/:id/quantity", lotHandler.AdjustQuantity)
			lotsGroup.DELETE("/:id", lotHandler.Delete)
		}

		movements := protected.Group("/movements")
		{
			movements.POST("", movementHandler.Record)
			movements.GET("/:id", movementHandler.Get)
			movements.GET("/:id/history", movementHandler.History)
			movements.POST("/:id/status", movementHandler.ChangeStatus)
			movements.DELETE("/:id", movementHandler.Remove)
		}

		cartGroup := protected.Group("/cart")
		{
			cartGroup.GET("", cartHandler.Get)
			cartGroup.PUT("", cartHandler.Save)
			cartGroup.DELETE("", cartHandler.Clear)
			cartGroup.POST("/checkout", cartHandler.Checkout)
		}
	}

	return router
}
