package ledger

import (
	"context"
	"time"

	"merx/internal/core/id"
)

// ListFilter narrows movement history queries.
type ListFilter struct {
	Kind   Kind
	Status Status
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Repository defines persistence operations for movements.
// Implemented by infrastructure/storage/postgres.
type Repository interface {
	Create(ctx context.Context, m *Movement) error

	// CreateAllocations bulk-inserts the per-lot breakdown of an exit.
	CreateAllocations(ctx context.Context, movementID id.ID, allocations []LotAllocation) error

	GetByID(ctx context.Context, movementID id.ID) (*Movement, error)
	GetAllocations(ctx context.Context, movementID id.ID) ([]LotAllocation, error)

	// UpdateStatus performs an optimistic-locked status change.
	UpdateStatus(ctx context.Context, m *Movement, to Status) error

	Delete(ctx context.Context, movementID id.ID) error

	// ListByProduct returns movements ordered by date descending.
	ListByProduct(ctx context.Context, productID id.ID, filter ListFilter) ([]*Movement, error)

	// ListReceipts returns confirmed receipt movements ascending by date,
	// the valuation input.
	ListReceipts(ctx context.Context, productID id.ID) ([]*Movement, error)
}
