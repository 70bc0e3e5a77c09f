// Package product provides read access to the catalog and stock mutation.
// The inventory core never creates or deletes products through the API;
// a minimal create/update exists for seeding and tests.
package product

import (
	"context"
	"strings"

	"merx/internal/core/apperror"
	"merx/internal/core/entity"
	"merx/internal/core/types"
)

// Product is a catalog item with its cached stock total.
// For lot-managed products Stock always equals the sum of lot quantities.
type Product struct {
	entity.BaseRecord

	Name          string      `db:"name" json:"name"`
	SKU           string      `db:"sku" json:"sku"`
	Unit          string      `db:"unit" json:"unit"`
	ManagedByLots bool        `db:"managed_by_lots" json:"managedByLots"`
	Stock         int64       `db:"stock" json:"stock"`
	SalePrice     types.Money `db:"sale_price" json:"salePrice"`
}

// New creates a product with a generated ID.
func New(name, sku, unit string, managedByLots bool, salePrice types.Money) *Product {
	return &Product{
		BaseRecord:    entity.NewBaseRecord(),
		Name:          name,
		SKU:           sku,
		Unit:          unit,
		ManagedByLots: managedByLots,
		SalePrice:     salePrice,
	}
}

// Validate checks product invariants.
func (p *Product) Validate(ctx context.Context) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("product name is required")
	}
	if strings.TrimSpace(p.SKU) == "" {
		return apperror.NewValidation("product SKU is required")
	}
	if p.Stock < 0 {
		return apperror.NewValidation("product stock cannot be negative")
	}
	if p.SalePrice.IsNegative() {
		return apperror.NewValidation("product sale price cannot be negative")
	}
	return nil
}
