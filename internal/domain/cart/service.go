package cart

import (
	"context"
	"fmt"
	"time"

	"merx/internal/core/apperror"
	appctx "merx/internal/core/context"
	"merx/internal/core/id"
	"merx/internal/core/types"
	"merx/internal/domain/allocation"
	"merx/internal/domain/audit"
	"merx/internal/domain/events"
	"merx/internal/domain/ledger"
	"merx/pkg/logger"
	"merx/pkg/receiptno"
)

// ReceiptPrefix identifies checkout receipts.
const ReceiptPrefix = "RCP"

// Ledger is the slice of the movement ledger checkout needs.
type Ledger interface {
	ValidateExit(ctx context.Context, productID id.ID, quantity int64, selected []allocation.Line) error
	Record(ctx context.Context, m *ledger.Movement, alloc *allocation.Allocation) (id.ID, error)
}

// LineStatus reports what happened to one line during checkout.
type LineStatus string

const (
	LineCommitted    LineStatus = "committed"
	LineFailed       LineStatus = "failed"
	LineNotAttempted LineStatus = "not_attempted"
)

// LineOutcome is the per-line checkout report. After the first write begins
// the checkout never rolls back; the operator corrects failed lines by hand
// using this report.
type LineOutcome struct {
	Index      int        `json:"index"`
	ProductID  id.ID      `json:"productId"`
	Status     LineStatus `json:"status"`
	MovementID id.ID      `json:"movementId,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// CheckoutResult summarizes a completed (possibly partially) checkout.
type CheckoutResult struct {
	ReceiptNumber string        `json:"receiptNumber"`
	Subtotal      types.Money   `json:"subtotal"`
	Discount      types.Money   `json:"discount"`
	Total         types.Money   `json:"total"`
	Change        types.Money   `json:"change"`
	Lines         []LineOutcome `json:"lines"`
	AllCommitted  bool          `json:"allCommitted"`
}

// Service provides held-cart editing and checkout.
type Service struct {
	store     Store
	ledger    Ledger
	publisher *events.Publisher
	audit     audit.Recorder
}

// NewService creates a cart service.
func NewService(store Store, ledgerSvc Ledger, publisher *events.Publisher, auditRec audit.Recorder) *Service {
	return &Service{
		store:     store,
		ledger:    ledgerSvc,
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

// Get returns the operator's held cart, empty when none is stored.
func (s *Service) Get(ctx context.Context) (*Draft, error) {
	op, err := requireOperator(ctx)
	if err != nil {
		return nil, err
	}
	draft, err := s.store.Get(ctx, op.OperatorID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		draft = &Draft{}
	}
	return draft, nil
}

// Save replaces the operator's held cart.
func (s *Service) Save(ctx context.Context, draft *Draft) error {
	op, err := requireOperator(ctx)
	if err != nil {
		return err
	}
	if draft.Discount.IsNegative() {
		return apperror.NewValidation("cart discount cannot be negative")
	}
	draft.UpdatedAt = time.Now().UTC()
	return s.store.Save(ctx, op.OperatorID, draft)
}

// Clear discards the operator's draft lines and resets discount and
// amount-received. Pure local-state reset, no ledger effect.
func (s *Service) Clear(ctx context.Context) error {
	op, err := requireOperator(ctx)
	if err != nil {
		return err
	}
	return s.store.Clear(ctx, op.OperatorID)
}

// Checkout commits the held cart to the ledger under one receipt number.
//
// Every line is validated against current stock and lot state before any
// movement is written; a validation failure aborts the whole checkout
// naming the line. Once the first write has begun, the remaining lines are
// still attempted and per-line outcomes are collected instead of rolling
// back what already committed.
func (s *Service) Checkout(ctx context.Context) (*CheckoutResult, error) {
	op, err := requireOperator(ctx)
	if err != nil {
		return nil, err
	}

	draft, err := s.store.Get(ctx, op.OperatorID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, apperror.NewValidation("cart is empty")
	}
	if err := draft.Validate(ctx); err != nil {
		return nil, err
	}

	// Validate-all-before-write: nothing is committed if any line fails.
	for i, line := range draft.Lines {
		if err := s.ledger.ValidateExit(ctx, line.ProductID, line.Quantity, line.Allocations); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("line", i)
			}
			return nil, fmt.Errorf("validate line %d: %w", i, err)
		}
	}

	receipt := receiptno.NewToken(ReceiptPrefix)
	finalPrices := draft.DistributeDiscount()

	result := &CheckoutResult{
		ReceiptNumber: receipt,
		Subtotal:      draft.Subtotal(),
		Discount:      draft.Discount,
		Total:         draft.Total(),
		Change:        types.ClampNonNegative(draft.AmountReceived.Sub(draft.Total())),
		Lines:         make([]LineOutcome, len(draft.Lines)),
		AllCommitted:  true,
	}

	writing := true
	for i, line := range draft.Lines {
		outcome := LineOutcome{Index: i, ProductID: line.ProductID, Status: LineNotAttempted}

		if !writing || ctx.Err() != nil {
			result.AllCommitted = false
			result.Lines[i] = outcome
			continue
		}

		m := ledger.NewExit(line.ProductID, line.Quantity, finalPrices[i], line.ProductName)
		m.ReceiptNumber = receipt

		var alloc *allocation.Allocation
		if len(line.Allocations) > 0 {
			alloc = allocation.FromLines(line.ProductID, line.Allocations)
		}

		movementID, err := s.ledger.Record(ctx, m, alloc)
		if err != nil {
			outcome.Status = LineFailed
			outcome.Error = err.Error()
			result.AllCommitted = false
			if ctx.Err() != nil {
				writing = false
			}
		} else {
			outcome.Status = LineCommitted
			outcome.MovementID = movementID
		}
		result.Lines[i] = outcome
	}

	if result.AllCommitted {
		if err := s.store.Clear(ctx, op.OperatorID); err != nil {
			logger.Warn(ctx, "clear held cart failed", "error", err)
		}
	}

	s.recordAudit(ctx, op.Username, result)
	s.publisher.Publish(ctx, events.Event{
		Type:          events.TypeCheckout,
		ReceiptNumber: receipt,
		Quantity:      totalQuantity(draft.Lines),
		Message: fmt.Sprintf("checkout %s: %d lines, total %s",
			receipt, len(draft.Lines), result.Total),
		OccurredAt: time.Now().UTC(),
	})
	logger.Info(ctx, "checkout completed",
		"receipt_number", receipt, "lines", len(draft.Lines), "all_committed", result.AllCommitted)
	return result, nil
}

func totalQuantity(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

func (s *Service) recordAudit(ctx context.Context, operator string, payload any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, audit.Entry{
		Operator:   operator,
		Action:     "cart.checkout",
		EntityType: "receipt",
		Payload:    payload,
	})
	if err != nil {
		logger.Warn(ctx, "audit record failed", "action", "cart.checkout", "error", err)
	}
}
