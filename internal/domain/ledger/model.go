// Package ledger provides the movement ledger: an append-style record of
// stock-affecting events that is the source of truth for product stock.
package ledger

import (
	"context"
	"time"

	"merx/internal/core/apperror"
	"merx/internal/core/entity"
	"merx/internal/core/id"
	"merx/internal/core/types"
)

// Kind discriminates movement variants. Each kind has its own stock sign
// and validation; optional fields never leak across kinds.
type Kind string

const (
	KindReceipt    Kind = "receipt"
	KindExit       Kind = "exit"
	KindAdjustment Kind = "adjustment"
)

// Direction applies to adjustments only.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Status applies to exits; receipts and adjustments are implicitly confirmed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// LotAllocation is the persisted per-lot breakdown of an exit, recorded so
// cancellation can reverse exactly what was deducted instead of guessing.
type LotAllocation struct {
	MovementID id.ID `db:"movement_id" json:"-"`
	LotID      id.ID `db:"lot_id" json:"lotId"`
	Quantity   int64 `db:"quantity" json:"quantity"`
}

// Movement is one ledger entry. Immutable once written except Status;
// removal is a compensating action, not an edit.
type Movement struct {
	entity.BaseRecord

	Kind      Kind      `db:"kind" json:"kind"`
	Direction Direction `db:"direction" json:"direction,omitempty"`
	ProductID id.ID     `db:"product_id" json:"productId"`

	Quantity  int64       `db:"quantity" json:"quantity"`
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
	Total     types.Money `db:"total" json:"total"`

	Date          time.Time `db:"date" json:"date"`
	Status        Status    `db:"status" json:"status"`
	ReceiptNumber string    `db:"receipt_number" json:"receiptNumber"`
	Description   string    `db:"description" json:"description,omitempty"`

	// Allocations is populated for lot-backed exits.
	Allocations []LotAllocation `db:"-" json:"allocations,omitempty"`
}

// NewReceipt builds an inbound movement at acquisition cost.
func NewReceipt(productID id.ID, quantity int64, unitPrice types.Money, description string) *Movement {
	return newMovement(KindReceipt, productID, quantity, unitPrice, description)
}

// NewExit builds an outbound sale movement at the applied (post-discount) price.
func NewExit(productID id.ID, quantity int64, unitPrice types.Money, description string) *Movement {
	return newMovement(KindExit, productID, quantity, unitPrice, description)
}

// NewAdjustment builds a manual correction in the given direction.
func NewAdjustment(productID id.ID, direction Direction, quantity int64, description string) *Movement {
	m := newMovement(KindAdjustment, productID, quantity, types.Zero(), description)
	m.Direction = direction
	return m
}

func newMovement(kind Kind, productID id.ID, quantity int64, unitPrice types.Money, description string) *Movement {
	return &Movement{
		BaseRecord:  entity.NewBaseRecord(),
		Kind:        kind,
		ProductID:   productID,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       types.MoneyFromUnits(unitPrice, quantity),
		Date:        time.Now().UTC(),
		Status:      StatusConfirmed,
		Description: description,
	}
}

// SignedQuantity returns the movement's effect on product stock.
func (m *Movement) SignedQuantity() int64 {
	switch m.Kind {
	case KindReceipt:
		return m.Quantity
	case KindExit:
		return -m.Quantity
	case KindAdjustment:
		if m.Direction == DirectionOut {
			return -m.Quantity
		}
		return m.Quantity
	default:
		return 0
	}
}

// IsExit reports whether the movement deducts stock on record.
func (m *Movement) IsExit() bool {
	return m.SignedQuantity() < 0
}

// AllocatedTotal sums the recorded per-lot deductions.
func (m *Movement) AllocatedTotal() int64 {
	var total int64
	for _, a := range m.Allocations {
		total += a.Quantity
	}
	return total
}

// Validate checks movement invariants.
func (m *Movement) Validate(ctx context.Context) error {
	switch m.Kind {
	case KindReceipt, KindExit:
		if m.Direction != "" {
			return apperror.NewValidation("direction is only valid for adjustments")
		}
	case KindAdjustment:
		if m.Direction != DirectionIn && m.Direction != DirectionOut {
			return apperror.NewValidation("adjustment direction must be in or out")
		}
	default:
		return apperror.NewValidation("unknown movement kind")
	}

	if id.IsNil(m.ProductID) {
		return apperror.NewValidation("movement product_id is required")
	}
	if m.Quantity <= 0 {
		return apperror.NewValidation("movement quantity must be positive")
	}
	if m.UnitPrice.IsNegative() {
		return apperror.NewValidation("movement unit price cannot be negative")
	}
	if m.Status != StatusPending && m.Status != StatusConfirmed && m.Status != StatusCancelled {
		return apperror.NewValidation("unknown movement status")
	}
	if m.Kind != KindExit && m.Status != StatusConfirmed {
		return apperror.NewValidation("only exits carry a pending or cancelled status")
	}
	if len(m.Allocations) > 0 {
		if m.Kind != KindExit {
			return apperror.NewValidation("only exits carry lot allocations")
		}
		if m.AllocatedTotal() != m.Quantity {
			return apperror.NewValidation("lot allocations must sum to the movement quantity")
		}
	}
	return nil
}
