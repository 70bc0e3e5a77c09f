// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	appctx "merx/internal/core/context"
	"merx/internal/core/types"
	"merx/internal/domain/audit"
	"merx/internal/domain/events"
	"merx/internal/domain/ledger"
	"merx/internal/domain/lots"
	"merx/internal/domain/product"
	"merx/internal/infrastructure/storage/postgres"
	"merx/pkg/logger"
	"merx/pkg/receiptno"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	// Print a bcrypt hash for the demo operator so it can be copied into
	// the OPERATORS variable, then seed catalog data.
	if password := os.Getenv("OPERATOR_PASSWORD"); password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalw("failed to hash operator password", "error", err)
		}
		fmt.Printf("operator password hash: %s\n", string(hash))
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, pool, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	// Align the movement sequence when migrating from a prior numbering
	// system so new numbers continue where the old ones stopped.
	if start := os.Getenv("MOVEMENT_SEQ_START"); start != "" {
		value, err := strconv.ParseInt(start, 10, 64)
		if err != nil || value < 0 {
			log.Fatalw("invalid MOVEMENT_SEQ_START", "value", start)
		}
		numbers := receiptno.New(pool.Pool)
		if err := numbers.SetNextNumber(ctx, receiptno.DefaultConfig(ledger.NumberPrefix), time.Now(), value); err != nil {
			log.Fatalw("failed to set movement sequence", "error", err)
		}
		log.Infow("movement sequence set", "value", value)
	}

	log.Info("seeding completed successfully")
}

// seedDemoData creates a couple of products with receipts and lots so a
// fresh install has something to sell.
func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	txManager := postgres.NewTxManager(pool)
	productRepo := postgres.NewProductRepo(txManager)
	lotRepo := postgres.NewLotRepo(txManager)
	movementRepo := postgres.NewMovementRepo(txManager)
	publisher := events.NewPublisher()
	numbers := receiptno.New(pool.Pool)

	ledgerService := ledger.NewService(movementRepo, productRepo, lotRepo, txManager, numbers, publisher, audit.Noop{})
	lotService := lots.NewService(lotRepo, productRepo, txManager, publisher, audit.Noop{})
	productService := product.NewService(productRepo)

	// Mutating services require an operator identity.
	ctx = appctx.WithOperator(ctx, &appctx.OperatorContext{
		OperatorID: "seed",
		Username:   "seed",
		Role:       "admin",
	})

	type demoProduct struct {
		name      string
		sku       string
		unit      string
		managed   bool
		salePrice string
		receiptQ  int64
		costPrice string
	}

	demo := []demoProduct{
		{"Espresso Beans 1kg", "COF-001", "bag", true, "24.90", 40, "14.50"},
		{"Oat Milk 1L", "MLK-010", "carton", true, "3.20", 60, "1.85"},
		{"Paper Cups 250ml", "SUP-120", "pack", false, "6.00", 100, "3.10"},
	}

	for _, d := range demo {
		if _, err := productRepo.GetBySKU(ctx, d.sku); err == nil {
			log.Infow("product already exists, skipping", "sku", d.sku)
			continue
		}

		p := product.New(d.name, d.sku, d.unit, d.managed, types.MustMoney(d.salePrice))
		if err := productService.Create(ctx, p); err != nil {
			return fmt.Errorf("create product %s: %w", d.sku, err)
		}

		receipt := ledger.NewReceipt(p.ID, d.receiptQ, types.MustMoney(d.costPrice), "initial stock")
		if _, err := ledgerService.Record(ctx, receipt, nil); err != nil {
			return fmt.Errorf("record receipt for %s: %w", d.sku, err)
		}

		if d.managed {
			expiry := time.Now().AddDate(0, 6, 0)
			lot := lots.New(p.ID, "L-2026-001", d.receiptQ, nil, &expiry)
			if err := lotService.Create(ctx, lot); err != nil {
				return fmt.Errorf("create lot for %s: %w", d.sku, err)
			}
		}

		log.Infow("seeded product", "sku", d.sku, "stock", d.receiptQ)
	}

	return nil
}
