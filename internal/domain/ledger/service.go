package ledger

import (
	"context"
	"fmt"
	"time"

	"merx/internal/core/apperror"
	appctx "merx/internal/core/context"
	"merx/internal/core/id"
	"merx/internal/core/tx"
	"merx/internal/domain/allocation"
	"merx/internal/domain/audit"
	"merx/internal/domain/events"
	"merx/internal/domain/lots"
	"merx/internal/domain/product"
	"merx/internal/domain/valuation"
	"merx/pkg/logger"
	"merx/pkg/receiptno"
)

// NumberPrefix is used for standalone movements recorded outside a checkout.
const NumberPrefix = "MOV"

// Service provides business operations for the movement ledger, including
// the status transition machine for recorded exits.
type Service struct {
	repo      Repository
	products  product.Repository
	lots      lots.Repository
	txManager tx.Manager
	numbers   *receiptno.Service
	publisher *events.Publisher
	audit     audit.Recorder
}

// NewService creates a ledger service.
func NewService(
	repo Repository,
	products product.Repository,
	lotRepo lots.Repository,
	txManager tx.Manager,
	numbers *receiptno.Service,
	publisher *events.Publisher,
	auditRec audit.Recorder,
) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		lots:      lotRepo,
		txManager: txManager,
		numbers:   numbers,
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

// Record appends one movement and atomically applies its stock effect.
// For lot-managed exits, alloc carries the lot selection; it is re-validated
// against freshly locked lot rows inside the transaction, never against the
// snapshot the caller selected from. Nothing is written on rejection.
//
// A domain notification event is published after commit; its failure never
// affects the recorded movement.
func (s *Service) Record(ctx context.Context, m *Movement, alloc *allocation.Allocation) (id.ID, error) {
	op, err := requireOperator(ctx)
	if err != nil {
		return id.Nil(), err
	}
	if err := m.Validate(ctx); err != nil {
		return id.Nil(), err
	}
	m.CreatedBy = op.Username
	m.UpdatedBy = op.Username

	// Number assignment happens outside the transaction; gaps are acceptable
	// for movement references.
	if m.ReceiptNumber == "" && s.numbers != nil {
		number, err := s.numbers.GetNextNumber(ctx, receiptno.DefaultConfig(NumberPrefix),
			&receiptno.Options{Strategy: receiptno.StrategyCached}, time.Now())
		if err != nil {
			return id.Nil(), fmt.Errorf("generate movement number: %w", err)
		}
		m.ReceiptNumber = number
	}

	var productName string
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetForUpdate(ctx, m.ProductID)
		if err != nil {
			return err
		}
		productName = p.Name

		if m.IsExit() {
			if p.ManagedByLots && m.Kind == KindExit {
				if err := s.deductFromAllocation(ctx, m, alloc); err != nil {
					return err
				}
			}
			if m.Quantity > p.Stock {
				return apperror.NewInsufficientStock(p.ID.String(), m.Quantity, p.Stock)
			}
			// Adjustments bypass lots, so the remaining stock must still
			// cover the lot total.
			if p.ManagedByLots && m.Kind == KindAdjustment {
				if err := s.checkLotCeiling(ctx, p, m.Quantity); err != nil {
					return err
				}
			}
		}

		if err := s.products.ApplyStockDelta(ctx, m.ProductID, m.SignedQuantity()); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, m); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}
		if len(m.Allocations) > 0 {
			if err := s.repo.CreateAllocations(ctx, m.ID, m.Allocations); err != nil {
				return fmt.Errorf("save allocations: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return id.Nil(), err
	}

	s.recordAudit(ctx, op.Username, "movement.record", m.ID, m)
	s.publisher.Publish(ctx, events.NewEvent(events.TypeMovementRecorded, m.ProductID, productName,
		m.Quantity, "%s of %d x %s recorded", m.Kind, m.Quantity, productName))
	logger.Info(ctx, "movement recorded",
		"id", m.ID, "kind", m.Kind, "quantity", m.Quantity, "receipt_number", m.ReceiptNumber)
	return m.ID, nil
}

// deductFromAllocation validates alloc against locked lot rows and applies
// the per-lot deductions. The movement quantity must equal the allocation
// sum so the ledger entry always equals what was taken from lots.
func (s *Service) deductFromAllocation(ctx context.Context, m *Movement, alloc *allocation.Allocation) error {
	if alloc == nil {
		if len(m.Allocations) == 0 {
			return apperror.NewValidation("lot-managed exit requires a lot allocation")
		}
		lines := make([]allocation.Line, 0, len(m.Allocations))
		for _, a := range m.Allocations {
			lines = append(lines, allocation.Line{LotID: a.LotID, Quantity: a.Quantity})
		}
		alloc = allocation.FromLines(m.ProductID, lines)
	}

	if m.Quantity != alloc.Total() {
		return apperror.NewValidation("movement quantity must equal the lot allocation total")
	}

	locked, err := s.lots.ListByProductForUpdate(ctx, m.ProductID)
	if err != nil {
		return fmt.Errorf("lock lots: %w", err)
	}

	if err := alloc.Validate(locked); err != nil {
		return err
	}

	byID := make(map[id.ID]*lots.Lot, len(locked))
	for _, l := range locked {
		byID[l.ID] = l
	}

	m.Allocations = m.Allocations[:0]
	for _, line := range alloc.Lines() {
		if line.Quantity == 0 {
			continue
		}
		lot := byID[line.LotID]
		if err := s.lots.UpdateQuantity(ctx, lot, lot.Quantity-line.Quantity); err != nil {
			return err
		}
		m.Allocations = append(m.Allocations, LotAllocation{
			MovementID: m.ID,
			LotID:      line.LotID,
			Quantity:   line.Quantity,
		})
	}

	return alloc.MarkCommitted()
}

// ValidateExit checks an exit line against current (unlocked) state without
// writing anything. Used by checkout to validate every line before any
// movement is committed. The commit path re-validates under locks.
func (s *Service) ValidateExit(ctx context.Context, productID id.ID, quantity int64, selected []allocation.Line) error {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}

	if p.ManagedByLots {
		available, err := s.lots.ListByProduct(ctx, productID, true)
		if err != nil {
			return err
		}
		alloc := allocation.FromLines(productID, selected)
		if err := alloc.Validate(available); err != nil {
			return err
		}
		quantity = alloc.Total()
	} else if quantity <= 0 {
		return apperror.NewNoQuantitySelected()
	}

	if quantity > p.Stock {
		return apperror.NewInsufficientStock(p.ID.String(), quantity, p.Stock)
	}
	return nil
}

// Remove reverses the stock effect of a single movement and deletes it.
// Lot-backed exits restore their recorded per-lot breakdown; a cancelled
// exit has no standing effect and is deleted as-is.
func (s *Service) Remove(ctx context.Context, movementID id.ID) error {
	op, err := requireOperator(ctx)
	if err != nil {
		return err
	}

	var (
		m           *Movement
		productName string
	)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err = s.getWithAllocations(ctx, movementID)
		if err != nil {
			return err
		}

		p, err := s.products.GetForUpdate(ctx, m.ProductID)
		if err != nil {
			return err
		}
		productName = p.Name

		// A cancelled exit's stock effect was already reversed by the
		// transition; only the row goes away.
		if m.Kind == KindExit && m.Status == StatusCancelled {
			return s.repo.Delete(ctx, movementID)
		}

		if m.IsExit() && p.ManagedByLots && m.Kind == KindExit {
			if err := s.restoreLots(ctx, m); err != nil {
				return err
			}
		}

		reversal := -m.SignedQuantity()
		if reversal < 0 {
			if m.Quantity > p.Stock {
				return apperror.NewInsufficientStock(p.ID.String(), m.Quantity, p.Stock)
			}
			// Removing a receipt or adjustment-in lowers stock without
			// touching lots; the lot total must still fit.
			if p.ManagedByLots {
				if err := s.checkLotCeiling(ctx, p, m.Quantity); err != nil {
					return err
				}
			}
		}
		if err := s.products.ApplyStockDelta(ctx, m.ProductID, reversal); err != nil {
			return err
		}

		return s.repo.Delete(ctx, movementID)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, op.Username, "movement.remove", movementID, m)
	s.publisher.Publish(ctx, events.NewEvent(events.TypeMovementRemoved, m.ProductID, productName,
		m.Quantity, "%s of %d x %s removed, stock effect reversed", m.Kind, m.Quantity, productName))
	logger.Info(ctx, "movement removed", "id", movementID, "kind", m.Kind)
	return nil
}

// ChangeStatus drives the pending/confirmed/cancelled machine for exits.
// Entering cancelled restores lot quantities and stock; leaving cancelled
// re-deducts them; pending <-> confirmed changes the label only.
func (s *Service) ChangeStatus(ctx context.Context, movementID id.ID, to Status) (*Movement, error) {
	op, err := requireOperator(ctx)
	if err != nil {
		return nil, err
	}

	var (
		m           *Movement
		from        Status
		productName string
		effect      StockEffect
	)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err = s.getWithAllocations(ctx, movementID)
		if err != nil {
			return err
		}
		if m.Kind != KindExit {
			return apperror.NewValidation("only exits have a mutable status")
		}
		from = m.Status
		if err := CheckTransition(from, to); err != nil {
			return err
		}

		p, err := s.products.GetForUpdate(ctx, m.ProductID)
		if err != nil {
			return err
		}
		productName = p.Name
		effect = TransitionEffect(from, to)

		switch effect {
		case EffectRestore:
			if p.ManagedByLots {
				if err := s.restoreLots(ctx, m); err != nil {
					return err
				}
			}
			if err := s.products.ApplyStockDelta(ctx, m.ProductID, m.Quantity); err != nil {
				return err
			}
		case EffectRededuct:
			if p.ManagedByLots {
				if err := s.redeductLots(ctx, m); err != nil {
					return err
				}
			}
			if m.Quantity > p.Stock {
				return apperror.NewInsufficientStock(p.ID.String(), m.Quantity, p.Stock)
			}
			if err := s.products.ApplyStockDelta(ctx, m.ProductID, -m.Quantity); err != nil {
				return err
			}
		}

		return s.repo.UpdateStatus(ctx, m, to)
	})
	if err != nil {
		return nil, err
	}

	m.Status = to
	s.recordAudit(ctx, op.Username, "movement.status", m.ID, map[string]any{"from": from, "to": to})
	s.publisher.Publish(ctx, statusEvent(m, productName, from, to, effect))
	logger.Info(ctx, "movement status changed", "id", m.ID, "from", from, "to", to)
	return m, nil
}

func statusEvent(m *Movement, productName string, from, to Status, effect StockEffect) events.Event {
	switch effect {
	case EffectRestore:
		return events.NewEvent(events.TypeStatusChanged, m.ProductID, productName, m.Quantity,
			"sale %s cancelled, %d x %s returned to stock", m.ReceiptNumber, m.Quantity, productName)
	case EffectRededuct:
		return events.NewEvent(events.TypeStatusChanged, m.ProductID, productName, m.Quantity,
			"sale %s %s, %d x %s deducted from stock", m.ReceiptNumber, to, m.Quantity, productName)
	default:
		return events.NewEvent(events.TypeStatusChanged, m.ProductID, productName, m.Quantity,
			"sale %s marked %s", m.ReceiptNumber, to)
	}
}

// restoreLots puts a movement's deducted quantity back onto lots.
// The recorded breakdown is the exact inverse; movements without one (or
// whose lots were deleted since) fall back to proportional restoration
// across the product's remaining lots, an approximation that can drift from
// the original allocation.
func (s *Service) restoreLots(ctx context.Context, m *Movement) error {
	locked, err := s.lots.ListByProductForUpdate(ctx, m.ProductID)
	if err != nil {
		return fmt.Errorf("lock lots: %w", err)
	}
	if len(locked) == 0 {
		return apperror.NewRestorationUnavailable(m.ID.String(), "product has no lots left to restore")
	}

	byID := make(map[id.ID]*lots.Lot, len(locked))
	for _, l := range locked {
		byID[l.ID] = l
	}

	if len(m.Allocations) > 0 {
		allFound := true
		for _, a := range m.Allocations {
			if _, ok := byID[a.LotID]; !ok {
				allFound = false
				break
			}
		}
		if allFound {
			for _, a := range m.Allocations {
				lot := byID[a.LotID]
				if err := s.lots.UpdateQuantity(ctx, lot, lot.Quantity+a.Quantity); err != nil {
					return err
				}
			}
			return nil
		}
	}

	// Proportional fallback: even share per lot, capped at the movement total.
	remaining := m.Quantity
	share := ceilDiv(m.Quantity, int64(len(locked)))
	for _, lot := range locked {
		if remaining == 0 {
			break
		}
		give := share
		if give > remaining {
			give = remaining
		}
		if err := s.lots.UpdateQuantity(ctx, lot, lot.Quantity+give); err != nil {
			return err
		}
		remaining -= give
	}
	if remaining > 0 {
		return apperror.NewRestorationUnavailable(m.ID.String(),
			fmt.Sprintf("%d units could not be distributed across lots", remaining))
	}
	return nil
}

// redeductLots takes a previously restored quantity back out of lots when an
// exit leaves cancelled. The recorded breakdown is preferred when every lot
// still holds enough; otherwise the proportional strategy runs, with a
// greedy sweep for any remainder.
func (s *Service) redeductLots(ctx context.Context, m *Movement) error {
	locked, err := s.lots.ListByProductForUpdate(ctx, m.ProductID)
	if err != nil {
		return fmt.Errorf("lock lots: %w", err)
	}
	if len(locked) == 0 {
		return apperror.NewRestorationUnavailable(m.ID.String(), "product has no lots left to deduct from")
	}

	byID := make(map[id.ID]*lots.Lot, len(locked))
	var totalAvailable int64
	for _, l := range locked {
		byID[l.ID] = l
		totalAvailable += l.Quantity
	}
	if totalAvailable < m.Quantity {
		return apperror.NewInsufficientStock(m.ProductID.String(), m.Quantity, totalAvailable)
	}

	if len(m.Allocations) > 0 {
		exact := true
		for _, a := range m.Allocations {
			lot, ok := byID[a.LotID]
			if !ok || lot.Quantity < a.Quantity {
				exact = false
				break
			}
		}
		if exact {
			for _, a := range m.Allocations {
				lot := byID[a.LotID]
				if err := s.lots.UpdateQuantity(ctx, lot, lot.Quantity-a.Quantity); err != nil {
					return err
				}
			}
			return nil
		}
	}

	remaining := m.Quantity
	share := ceilDiv(m.Quantity, int64(len(locked)))
	for _, lot := range locked {
		if remaining == 0 {
			break
		}
		take := share
		if take > lot.Quantity {
			take = lot.Quantity
		}
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		if err := s.lots.UpdateQuantity(ctx, lot, lot.Quantity-take); err != nil {
			return err
		}
		remaining -= take
	}
	// Even shares can leave a remainder when some lots ran short.
	for _, lot := range locked {
		if remaining == 0 {
			break
		}
		if lot.Quantity == 0 {
			continue
		}
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}
		if err := s.lots.UpdateQuantity(ctx, lot, lot.Quantity-take); err != nil {
			return err
		}
		remaining -= take
	}
	if remaining > 0 {
		return apperror.NewInsufficientStock(m.ProductID.String(), m.Quantity, m.Quantity-remaining)
	}
	return nil
}

// checkLotCeiling rejects a stock decrease on a lot-managed product when the
// remaining stock would no longer cover the lot total.
func (s *Service) checkLotCeiling(ctx context.Context, p *product.Product, decrease int64) error {
	lotSum, err := s.lots.SumQuantities(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("sum lot quantities: %w", err)
	}
	if lotSum > p.Stock-decrease {
		return apperror.NewExceedsAvailableStock(p.ID.String(), decrease, p.Stock-lotSum)
	}
	return nil
}

// GetByID retrieves a movement with its allocation breakdown.
func (s *Service) GetByID(ctx context.Context, movementID id.ID) (*Movement, error) {
	return s.getWithAllocations(ctx, movementID)
}

func (s *Service) getWithAllocations(ctx context.Context, movementID id.ID) (*Movement, error) {
	m, err := s.repo.GetByID(ctx, movementID)
	if err != nil {
		return nil, err
	}
	allocations, err := s.repo.GetAllocations(ctx, movementID)
	if err != nil {
		return nil, fmt.Errorf("get allocations: %w", err)
	}
	m.Allocations = allocations
	return m, nil
}

// ListByProduct returns a product's movement history, newest first.
func (s *Service) ListByProduct(ctx context.Context, productID id.ID, filter ListFilter) ([]*Movement, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListByProduct(ctx, productID, filter)
}

// ReceiptsByProduct implements valuation.ReceiptSource.
func (s *Service) ReceiptsByProduct(ctx context.Context, productID id.ID) ([]valuation.Receipt, error) {
	movements, err := s.repo.ListReceipts(ctx, productID)
	if err != nil {
		return nil, err
	}
	receipts := make([]valuation.Receipt, 0, len(movements))
	for _, m := range movements {
		receipts = append(receipts, valuation.Receipt{
			Quantity:  m.Quantity,
			UnitPrice: m.UnitPrice,
			Date:      m.Date,
		})
	}
	return receipts, nil
}

func (s *Service) recordAudit(ctx context.Context, operator, action string, entityID id.ID, payload any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, audit.Entry{
		Operator:   operator,
		Action:     action,
		EntityType: "movement",
		EntityID:   entityID,
		Payload:    payload,
	})
	if err != nil {
		logger.Warn(ctx, "audit record failed", "action", action, "error", err)
	}
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
