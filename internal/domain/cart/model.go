// Package cart provides the sale aggregator: a persisted draft of line
// items that checkout turns into ledger movements sharing one receipt
// number, with a cart-level discount redistributed across lines.
package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"merx/internal/core/apperror"
	"merx/internal/core/id"
	"merx/internal/core/types"
	"merx/internal/domain/allocation"
)

// Line is one draft sale line.
type Line struct {
	ProductID   id.ID             `json:"productId"`
	ProductName string            `json:"productName"`
	Quantity    int64             `json:"quantity"`
	UnitPrice   types.Money       `json:"unitPrice"`
	Allocations []allocation.Line `json:"allocations,omitempty"`
}

// Subtotal returns quantity x unit price for the line.
func (l Line) Subtotal() types.Money {
	return types.MoneyFromUnits(l.UnitPrice, l.Quantity)
}

// Draft is the held cart: local state only, nothing in the ledger yet.
// It survives reloads through the draft store and is keyed by operator.
type Draft struct {
	Lines          []Line      `json:"lines"`
	Discount       types.Money `json:"discount"`
	AmountReceived types.Money `json:"amountReceived"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Subtotal sums all line subtotals.
func (d *Draft) Subtotal() types.Money {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Total applies the cart-level discount, floored at zero.
func (d *Draft) Total() types.Money {
	return types.ClampNonNegative(d.Subtotal().Sub(d.Discount))
}

// Validate checks draft invariants before checkout.
func (d *Draft) Validate(ctx context.Context) error {
	if len(d.Lines) == 0 {
		return apperror.NewValidation("cart is empty")
	}
	if d.Discount.IsNegative() {
		return apperror.NewValidation("cart discount cannot be negative")
	}
	for i, l := range d.Lines {
		if id.IsNil(l.ProductID) {
			return apperror.NewValidation("cart line product is required").WithDetail("line", i)
		}
		if l.Quantity <= 0 {
			return apperror.NewValidation("cart line quantity must be positive").WithDetail("line", i)
		}
		if l.UnitPrice.IsNegative() {
			return apperror.NewValidation("cart line unit price cannot be negative").WithDetail("line", i)
		}
		// The ledger deducts the allocation total, so a diverging line
		// quantity would misprice the receipt.
		if len(l.Allocations) > 0 && allocationTotal(l.Allocations) != l.Quantity {
			return apperror.NewValidation("cart line quantity must equal its lot allocation total").WithDetail("line", i)
		}
	}
	// A discount above the subtotal would push per-line prices negative.
	if d.Discount.GreaterThan(d.Subtotal()) {
		return apperror.NewValidation("cart discount cannot exceed the subtotal")
	}
	return nil
}

func allocationTotal(lines []allocation.Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

// DistributeDiscount redistributes the cart discount proportionally onto
// each line and returns the final unit price per line, index-aligned with
// Lines. With a zero subtotal no split is computed and original unit
// prices are kept.
func (d *Draft) DistributeDiscount() []types.Money {
	prices := make([]types.Money, len(d.Lines))
	subtotal := d.Subtotal()

	if subtotal.IsZero() || d.Discount.IsZero() {
		for i, l := range d.Lines {
			prices[i] = l.UnitPrice
		}
		return prices
	}

	ratio := d.Discount.Div(subtotal)
	for i, l := range d.Lines {
		lineSubtotal := l.Subtotal()
		lineDiscount := lineSubtotal.Mul(ratio)
		prices[i] = lineSubtotal.Sub(lineDiscount).Div(decimal.NewFromInt(l.Quantity))
	}
	return prices
}

// Store persists held carts per operator.
// Implemented by infrastructure/storage/redis.
type Store interface {
	Get(ctx context.Context, operatorID string) (*Draft, error)
	Save(ctx context.Context, operatorID string, draft *Draft) error
	Clear(ctx context.Context, operatorID string) error
}
