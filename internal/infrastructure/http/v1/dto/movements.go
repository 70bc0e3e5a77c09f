package dto

import (
	"time"

	"merx/internal/core/apperror"
	"merx/internal/core/id"
	"merx/internal/core/types"
	"merx/internal/domain/ledger"
)

// AllocationLine is one lot selection within an exit request.
type AllocationLine struct {
	LotID    string `json:"lotId" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
}

// RecordMovementRequest is the payload for POST /movements.
type RecordMovementRequest struct {
	Kind        string           `json:"kind" binding:"required"`
	ProductID   string           `json:"productId" binding:"required"`
	Quantity    int64            `json:"quantity"`
	UnitPrice   string           `json:"unitPrice"`
	Direction   string           `json:"direction"`
	Date        *time.Time       `json:"date"`
	Description string           `json:"description"`
	Allocations []AllocationLine `json:"allocations"`
}

// ToMovement builds the domain movement from the request.
func (r RecordMovementRequest) ToMovement() (*ledger.Movement, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return nil, apperror.NewValidation("invalid product id")
	}

	price := types.Zero()
	if r.UnitPrice != "" {
		price, err = types.NewMoneyFromString(r.UnitPrice)
		if err != nil {
			return nil, apperror.NewValidation("invalid unit price")
		}
	}

	var m *ledger.Movement
	switch ledger.Kind(r.Kind) {
	case ledger.KindReceipt:
		m = ledger.NewReceipt(productID, r.Quantity, price, r.Description)
	case ledger.KindExit:
		m = ledger.NewExit(productID, r.Quantity, price, r.Description)
	case ledger.KindAdjustment:
		m = ledger.NewAdjustment(productID, ledger.Direction(r.Direction), r.Quantity, r.Description)
	default:
		return nil, apperror.NewValidation("kind must be receipt, exit or adjustment")
	}

	if r.Date != nil {
		m.Date = *r.Date
	}

	return m, nil
}

// AuditEntryResponse is one recorded action in GET /movements/:id/history.
type AuditEntryResponse struct {
	Operator   string    `json:"operator"`
	Action     string    `json:"action"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ChangeStatusRequest is the payload for POST /movements/:id/status.
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// MovementQuery narrows GET /products/:id/movements.
type MovementQuery struct {
	Kind   string `form:"kind"`
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// ToFilter converts the query to the repository filter.
func (q MovementQuery) ToFilter() ledger.ListFilter {
	return ledger.ListFilter{
		Kind:   ledger.Kind(q.Kind),
		Status: ledger.Status(q.Status),
		Limit:  q.Limit,
		Offset: q.Offset,
	}
}
