package dto

import (
	"time"

	"merx/internal/core/id"
	"merx/internal/domain/lots"
)

// CreateLotRequest is the payload for POST /products/:id/lots.
type CreateLotRequest struct {
	LotNumber       string     `json:"lotNumber" binding:"required"`
	Quantity        int64      `json:"quantity"`
	ManufactureDate *time.Time `json:"manufactureDate"`
	ExpiryDate      *time.Time `json:"expiryDate"`
}

// ToLot builds a domain lot for the given product.
func (r CreateLotRequest) ToLot(productID id.ID) *lots.Lot {
	return lots.New(productID, r.LotNumber, r.Quantity, r.ManufactureDate, r.ExpiryDate)
}

// AdjustLotRequest is the payload for PUT /lots/:id/quantity.
type AdjustLotRequest struct {
	Quantity int64 `json:"quantity"`
}
