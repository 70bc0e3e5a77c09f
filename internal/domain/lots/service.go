package lots

import (
	"context"
	"fmt"
	"time"

	"merx/internal/core/apperror"
	appctx "merx/internal/core/context"
	"merx/internal/core/id"
	"merx/internal/core/tx"
	"merx/internal/domain/audit"
	"merx/internal/domain/events"
	"merx/internal/domain/product"
	"merx/pkg/logger"
)

// Service provides business operations for the lot registry.
type Service struct {
	repo      Repository
	products  product.Repository
	txManager tx.Manager
	publisher *events.Publisher
	audit     audit.Recorder
}

// NewService creates a lot registry service.
func NewService(
	repo Repository,
	products product.Repository,
	txManager tx.Manager,
	publisher *events.Publisher,
	auditRec audit.Recorder,
) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		txManager: txManager,
		publisher: publisher,
		audit:     auditRec,
	}
}

func requireOperator(ctx context.Context) (*appctx.OperatorContext, error) {
	op := appctx.GetOperator(ctx)
	if op == nil {
		return nil, apperror.NewNotAuthenticated("operator context required")
	}
	return op, nil
}

// WithStatus pairs a lot with its derived expiry classification.
type WithStatus struct {
	*Lot
	Status          ExpiryStatus `json:"status"`
	DaysUntilExpiry *int         `json:"daysUntilExpiry,omitempty"`
}

// ListAvailable returns the product's lots with remaining quantity,
// used to populate allocation choices.
func (s *Service) ListAvailable(ctx context.Context, productID id.ID) ([]*Lot, error) {
	return s.repo.ListByProduct(ctx, productID, true)
}

// List returns all of the product's lots with derived expiry status.
func (s *Service) List(ctx context.Context, productID id.ID) ([]WithStatus, error) {
	found, err := s.repo.ListByProduct(ctx, productID, false)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := make([]WithStatus, 0, len(found))
	for _, l := range found {
		ws := WithStatus{Lot: l, Status: l.Status(now)}
		if l.ExpiryDate != nil {
			days := l.DaysUntilExpiry(now)
			ws.DaysUntilExpiry = &days
		}
		result = append(result, ws)
	}
	return result, nil
}

// GetByID retrieves one lot.
func (s *Service) GetByID(ctx context.Context, lotID id.ID) (*Lot, error) {
	return s.repo.GetByID(ctx, lotID)
}

// Create registers a new lot for a product.
// Fails with DuplicateLot when the number is taken within the product and
// with ExceedsAvailableStock when the quantity would push the lot sum above
// the product's recorded stock.
func (s *Service) Create(ctx context.Context, lot *Lot) error {
	op, err := requireOperator(ctx)
	if err != nil {
		return err
	}
	if err := lot.Validate(ctx); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetForUpdate(ctx, lot.ProductID)
		if err != nil {
			return err
		}
		if !p.ManagedByLots {
			return apperror.NewValidation("product is not lot-managed")
		}

		if existing, err := s.repo.GetByNumber(ctx, lot.ProductID, lot.LotNumber); err != nil {
			if !apperror.IsNotFound(err) {
				return err
			}
		} else if existing != nil {
			return apperror.NewDuplicateLot(lot.ProductID.String(), lot.LotNumber)
		}

		allocated, err := s.repo.SumQuantities(ctx, lot.ProductID)
		if err != nil {
			return fmt.Errorf("sum lot quantities: %w", err)
		}
		if allocated+lot.Quantity > p.Stock {
			return apperror.NewExceedsAvailableStock(
				lot.ProductID.String(), lot.Quantity, p.Stock-allocated)
		}

		return s.repo.Create(ctx, lot)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, op.Username, "lot.create", lot.ID, lot)
	s.publisher.Publish(ctx, events.NewEvent(events.TypeLotCreated, lot.ProductID, "",
		lot.Quantity, "lot %s created with %d units", lot.LotNumber, lot.Quantity))
	logger.Info(ctx, "lot created", "id", lot.ID, "lot_number", lot.LotNumber, "quantity", lot.Quantity)
	return nil
}

// AdjustQuantity sets a lot's stored quantity directly.
// Negative values are always rejected; raising a quantity is additionally
// checked against the product's unallocated stock.
func (s *Service) AdjustQuantity(ctx context.Context, lotID id.ID, newQuantity int64) (*Lot, error) {
	op, err := requireOperator(ctx)
	if err != nil {
		return nil, err
	}
	if newQuantity < 0 {
		return nil, apperror.NewValidation("lot quantity cannot be negative")
	}

	var lot *Lot
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lot, err = s.repo.GetByIDForUpdate(ctx, lotID)
		if err != nil {
			return err
		}

		if newQuantity > lot.Quantity {
			p, err := s.products.GetForUpdate(ctx, lot.ProductID)
			if err != nil {
				return err
			}
			allocated, err := s.repo.SumQuantities(ctx, lot.ProductID)
			if err != nil {
				return fmt.Errorf("sum lot quantities: %w", err)
			}
			if allocated-lot.Quantity+newQuantity > p.Stock {
				return apperror.NewExceedsAvailableStock(
					lot.ProductID.String(), newQuantity, p.Stock-(allocated-lot.Quantity))
			}
		}

		return s.repo.UpdateQuantity(ctx, lot, newQuantity)
	})
	if err != nil {
		return nil, err
	}

	previous := lot.Quantity
	lot.Quantity = newQuantity

	s.recordAudit(ctx, op.Username, "lot.adjust", lot.ID, map[string]any{
		"from": previous, "to": newQuantity,
	})
	s.publisher.Publish(ctx, events.NewEvent(events.TypeLotAdjusted, lot.ProductID, "",
		newQuantity, "lot %s adjusted from %d to %d units", lot.LotNumber, previous, newQuantity))
	return lot, nil
}

// Delete removes a lot. Only empty lots can be deleted.
func (s *Service) Delete(ctx context.Context, lotID id.ID) error {
	op, err := requireOperator(ctx)
	if err != nil {
		return err
	}

	var lot *Lot
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lot, err = s.repo.GetByIDForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if lot.Quantity != 0 {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				fmt.Sprintf("lot %s still holds %d units", lot.LotNumber, lot.Quantity))
		}
		return s.repo.Delete(ctx, lotID)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, op.Username, "lot.delete", lotID, lot)
	logger.Info(ctx, "lot deleted", "id", lotID, "lot_number", lot.LotNumber)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, operator, action string, entityID id.ID, payload any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, audit.Entry{
		Operator:   operator,
		Action:     action,
		EntityType: "lot",
		EntityID:   entityID,
		Payload:    payload,
	})
	if err != nil {
		logger.Warn(ctx, "audit record failed", "action", action, "error", err)
	}
}
