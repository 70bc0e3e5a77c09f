package product

import (
	"context"

	"merx/internal/core/id"
)

// ListFilter narrows product listings.
type ListFilter struct {
	Search        string // matches name or SKU, case-insensitive
	ManagedByLots *bool
	Limit         int
	Offset        int
}

// Repository defines persistence operations for products.
// Implemented by infrastructure/storage/postgres.
type Repository interface {
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	List(ctx context.Context, filter ListFilter) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error

	// GetForUpdate locks the product row for the current transaction.
	// Callers re-validate stock against the returned state before writing.
	GetForUpdate(ctx context.Context, productID id.ID) (*Product, error)

	// ApplyStockDelta adds delta (possibly negative) to the cached stock
	// total with a conditional update that fails instead of going below
	// zero. Returns apperror.CodeInsufficientStock on violation.
	ApplyStockDelta(ctx context.Context, productID id.ID, delta int64) error
}
