// Package main is the entry point for the merx API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merx/internal/domain/auth"
	"merx/internal/domain/cart"
	"merx/internal/domain/events"
	"merx/internal/domain/ledger"
	"merx/internal/domain/lots"
	"merx/internal/domain/product"
	"merx/internal/domain/valuation"
	v1 "merx/internal/infrastructure/http/v1"
	"merx/internal/infrastructure/storage/postgres"
	redisstore "merx/internal/infrastructure/storage/redis"
	"merx/pkg/logger"
	"merx/pkg/receiptno"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting merx server")

	// --- Database ---
	dsn := mustEnv("DATABASE_URL")
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Cart store (Redis) ---
	redisClient := redisstore.NewClient(
		getEnv("REDIS_ADDR", "localhost:6379"),
		getEnv("REDIS_PASSWORD", ""),
		getEnvInt("REDIS_DB", 0),
	)
	cartStore := redisstore.NewCartStore(redisClient, getEnvDuration("CART_TTL", redisstore.DefaultDraftTTL))
	defer cartStore.Close()

	if err := cartStore.Ping(ctx); err != nil {
		log.Fatalw("failed to ping redis", "error", err)
	}
	log.Info("redis connection established")

	// --- Repositories ---
	productRepo := postgres.NewProductRepo(txManager)
	lotRepo := postgres.NewLotRepo(txManager)
	movementRepo := postgres.NewMovementRepo(txManager)

	// --- Audit trail ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Event notifications ---
	publisher := events.NewPublisher()
	publisher.Subscribe(events.ObserverFunc(func(ctx context.Context, e events.Event) error {
		log.WithContext(ctx).Infow("domain event",
			"type", e.Type,
			"product_id", e.ProductID,
			"message", e.Message,
		)
		return nil
	}))

	// --- Receipt numbering ---
	numbers := receiptno.New(pool.Pool)

	// --- Domain services ---
	productService := product.NewService(productRepo)
	lotService := lots.NewService(lotRepo, productRepo, txManager, publisher, auditService)
	ledgerService := ledger.NewService(movementRepo, productRepo, lotRepo, txManager, numbers, publisher, auditService)
	valuationService := valuation.NewService(ledgerService, productService)
	cartService := cart.NewService(cartStore, ledgerService, publisher, auditService)

	// --- Auth ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	operators, err := auth.ParseOperators(mustEnv("OPERATORS"))
	if err != nil {
		log.Fatalw("failed to parse operators", "error", err)
	}
	authService := auth.NewService(operators, jwtService)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Cache:          cartStore,
		Logger:         log,
		TokenValidator: jwtService,
		AuthService:    authService,
		Products:       productService,
		Valuation:      valuationService,
		Lots:           lotService,
		Ledger:         ledgerService,
		Cart:           cartService,
		History:        auditService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
