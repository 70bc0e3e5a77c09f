package product

import (
	"context"

	"merx/internal/core/id"
	"merx/internal/core/types"
	"merx/pkg/logger"
)

// Service provides catalog read operations for the inventory core.
type Service struct {
	repo Repository
}

// NewService creates a product service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetByID retrieves one product.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// GetBySKU retrieves one product by its SKU.
func (s *Service) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	return s.repo.GetBySKU(ctx, sku)
}

// List retrieves products matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Product, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Create stores a new product. Used by the seed tool, not exposed on the API.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	logger.Info(ctx, "product created", "id", p.ID, "sku", p.SKU)
	return nil
}

// SalePriceAndStock implements valuation.ProductSource.
func (s *Service) SalePriceAndStock(ctx context.Context, productID id.ID) (types.Money, int64, error) {
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return types.Zero(), 0, err
	}
	return p.SalePrice, p.Stock, nil
}
