// Package lots provides the per-product lot registry: named, dated
// subdivisions of a product's stock that sales are allocated against.
package lots

import (
	"context"
	"math"
	"strings"
	"time"

	"merx/internal/core/apperror"
	"merx/internal/core/entity"
	"merx/internal/core/id"
)

// ExpiryStatus classifies a lot at read time. Never stored.
type ExpiryStatus string

const (
	StatusExpired      ExpiryStatus = "expired"
	StatusExpiringSoon ExpiryStatus = "expiring_soon"
	StatusOK           ExpiryStatus = "ok"
	StatusUnmanaged    ExpiryStatus = "unmanaged"
)

// ExpiringSoonDays is the window within which a lot counts as expiring soon.
const ExpiringSoonDays = 30

// Lot is one dated subdivision of a product's stock.
// Quantity is the remaining amount and is mutated in place by every
// allocation and restoration touching the lot.
type Lot struct {
	entity.BaseEntity

	ProductID       id.ID      `db:"product_id" json:"productId"`
	LotNumber       string     `db:"lot_number" json:"lotNumber"`
	Quantity        int64      `db:"quantity" json:"quantity"`
	ManufactureDate *time.Time `db:"manufacture_date" json:"manufactureDate,omitempty"`
	ExpiryDate      *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

// New creates a lot with a generated ID.
func New(productID id.ID, lotNumber string, quantity int64, manufactureDate, expiryDate *time.Time) *Lot {
	return &Lot{
		BaseEntity:      entity.NewBaseEntity(),
		ProductID:       productID,
		LotNumber:       lotNumber,
		Quantity:        quantity,
		ManufactureDate: manufactureDate,
		ExpiryDate:      expiryDate,
		CreatedAt:       time.Now().UTC(),
	}
}

// Validate checks lot invariants.
func (l *Lot) Validate(ctx context.Context) error {
	if id.IsNil(l.ProductID) {
		return apperror.NewValidation("lot product_id is required")
	}
	if strings.TrimSpace(l.LotNumber) == "" {
		return apperror.NewValidation("lot number is required")
	}
	if l.Quantity < 0 {
		return apperror.NewValidation("lot quantity cannot be negative")
	}
	if l.ManufactureDate != nil && l.ExpiryDate != nil && l.ExpiryDate.Before(*l.ManufactureDate) {
		return apperror.NewValidation("lot expiry date cannot precede manufacture date")
	}
	return nil
}

// DaysUntilExpiry returns whole days from now until the expiry date,
// rounded down so a lot expired less than a day ago still reads negative.
// Zero when no expiry date is set; callers must check ExpiryDate != nil
// first.
func (l *Lot) DaysUntilExpiry(now time.Time) int {
	if l.ExpiryDate == nil {
		return 0
	}
	return int(math.Floor(l.ExpiryDate.Sub(now).Hours() / 24))
}

// IsExpired reports whether the lot's expiry date has passed.
func (l *Lot) IsExpired(now time.Time) bool {
	return l.ExpiryDate != nil && l.DaysUntilExpiry(now) < 0
}

// Status derives the expiry classification for reporting.
// Recomputed on every access, never cached.
func (l *Lot) Status(now time.Time) ExpiryStatus {
	if l.ExpiryDate == nil {
		return StatusUnmanaged
	}
	days := l.DaysUntilExpiry(now)
	switch {
	case days < 0:
		return StatusExpired
	case days <= ExpiringSoonDays:
		return StatusExpiringSoon
	default:
		return StatusOK
	}
}
