package lots

import (
	"context"

	"merx/internal/core/id"
)

// Repository defines persistence operations for lots.
// Implemented by infrastructure/storage/postgres.
type Repository interface {
	GetByID(ctx context.Context, lotID id.ID) (*Lot, error)

	// GetByIDForUpdate locks the lot row for the current transaction.
	GetByIDForUpdate(ctx context.Context, lotID id.ID) (*Lot, error)

	// GetByNumber finds a lot by its per-product number.
	// Returns CodeNotFound when absent.
	GetByNumber(ctx context.Context, productID id.ID, lotNumber string) (*Lot, error)

	// ListByProduct returns a product's lots ordered by creation.
	// With onlyAvailable, lots with zero quantity are skipped.
	ListByProduct(ctx context.Context, productID id.ID, onlyAvailable bool) ([]*Lot, error)

	// ListByProductForUpdate locks and returns all of a product's lots,
	// including empty ones, for in-transaction restoration.
	ListByProductForUpdate(ctx context.Context, productID id.ID) ([]*Lot, error)

	// SumQuantities returns Σ quantity over the product's lots.
	SumQuantities(ctx context.Context, productID id.ID) (int64, error)

	Create(ctx context.Context, lot *Lot) error

	// UpdateQuantity sets the stored quantity using the lot's version for
	// optimistic locking. Returns CodeConcurrentModification on a stale
	// version. Increments the version on success.
	UpdateQuantity(ctx context.Context, lot *Lot, newQuantity int64) error

	Delete(ctx context.Context, lotID id.ID) error
}
