// Package valuation derives acquisition cost, effective sale price and
// margins from a product's receipt history.
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"merx/internal/core/apperror"
	"merx/internal/core/id"
	"merx/internal/core/types"
)

// Receipt is one inbound movement relevant for cost derivation.
type Receipt struct {
	Quantity  int64
	UnitPrice types.Money
	Date      time.Time
}

// EffectiveSalePrice returns the price to charge for one unit.
// An explicit positive sale price wins; otherwise the weighted-average
// cost of all receipts is used; with no receipts the price is zero.
func EffectiveSalePrice(salePrice types.Money, receipts []Receipt) types.Money {
	if salePrice.IsPositive() {
		return salePrice
	}
	return WeightedAverageCost(receipts)
}

// WeightedAverageCost computes Σ(qty × price) / Σ(qty) over receipts.
// Zero-quantity receipts contribute nothing; an empty history yields zero.
func WeightedAverageCost(receipts []Receipt) types.Money {
	var totalQty int64
	totalValue := decimal.Zero
	for _, r := range receipts {
		if r.Quantity <= 0 {
			continue
		}
		totalQty += r.Quantity
		totalValue = totalValue.Add(types.MoneyFromUnits(r.UnitPrice, r.Quantity))
	}
	if totalQty == 0 {
		return decimal.Zero
	}
	return totalValue.Div(decimal.NewFromInt(totalQty))
}

// AcquisitionCost returns the unit price of the most recent receipt.
// Margin reporting deliberately uses the latest cost, not the weighted
// average, so current margins reflect what replacement stock costs today.
func AcquisitionCost(receipts []Receipt) types.Money {
	var latest *Receipt
	for i := range receipts {
		r := &receipts[i]
		if latest == nil || r.Date.After(latest.Date) {
			latest = r
		}
	}
	if latest == nil {
		return decimal.Zero
	}
	return latest.UnitPrice
}

// DiscountedPrice applies a percentage discount in [0, 100].
// Out-of-range values are rejected, never clamped.
func DiscountedPrice(basePrice types.Money, discountPercent types.Money) (types.Money, error) {
	hundred := decimal.NewFromInt(100)
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return decimal.Zero, apperror.NewValidation(
			fmt.Sprintf("discount percent must be between 0 and 100, got %s", discountPercent))
	}
	factor := decimal.NewFromInt(1).Sub(discountPercent.Div(hundred))
	return basePrice.Mul(factor), nil
}

// Margin holds profit figures for one sale line.
type Margin struct {
	Profit  types.Money
	Percent types.Money
}

// ComputeMargin derives profit and margin percent for quantity units sold at
// priceAfterDiscount with the given acquisition cost.
// A zero denominator (zero price or quantity) yields a zero margin percent.
func ComputeMargin(priceAfterDiscount, acquisitionCost types.Money, quantity int64) Margin {
	profit := priceAfterDiscount.Sub(acquisitionCost).Mul(decimal.NewFromInt(quantity))
	revenue := types.MoneyFromUnits(priceAfterDiscount, quantity)
	if revenue.IsZero() {
		return Margin{Profit: profit, Percent: decimal.Zero}
	}
	percent := profit.Div(revenue).Mul(decimal.NewFromInt(100))
	return Margin{Profit: profit, Percent: percent}
}

// ReceiptSource supplies a product's receipt history, ascending by date.
type ReceiptSource interface {
	ReceiptsByProduct(ctx context.Context, productID id.ID) ([]Receipt, error)
}

// ProductSource supplies the catalog fields valuation needs.
type ProductSource interface {
	SalePriceAndStock(ctx context.Context, productID id.ID) (salePrice types.Money, stock int64, err error)
}

// Service computes valuations against live ledger data.
type Service struct {
	receipts ReceiptSource
	products ProductSource
}

// NewService creates a valuation service.
func NewService(receipts ReceiptSource, products ProductSource) *Service {
	return &Service{receipts: receipts, products: products}
}

// ProductValuation is the full valuation snapshot for one product.
type ProductValuation struct {
	ProductID          id.ID       `json:"productId"`
	EffectiveSalePrice types.Money `json:"effectiveSalePrice"`
	AcquisitionCost    types.Money `json:"acquisitionCost"`
	StockValue         types.Money `json:"stockValue"`
	Margin             Margin      `json:"margin"`
}

// ForProduct computes the valuation snapshot for productID.
// StockValue is current stock priced at acquisition cost.
func (s *Service) ForProduct(ctx context.Context, productID id.ID) (*ProductValuation, error) {
	salePrice, stock, err := s.products.SalePriceAndStock(ctx, productID)
	if err != nil {
		return nil, err
	}

	receipts, err := s.receipts.ReceiptsByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load receipts: %w", err)
	}

	effective := EffectiveSalePrice(salePrice, receipts)
	cost := AcquisitionCost(receipts)

	return &ProductValuation{
		ProductID:          productID,
		EffectiveSalePrice: effective,
		AcquisitionCost:    cost,
		StockValue:         types.MoneyFromUnits(cost, stock),
		Margin:             ComputeMargin(effective, cost, 1),
	}, nil
}
