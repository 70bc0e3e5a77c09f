package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"merx/internal/core/apperror"
	"merx/internal/core/id"
	"merx/internal/domain/ledger"
)

const (
	movementsTable   = "reg_movements"
	allocationsTable = "reg_movement_allocations"
)

var movementColumns = []string{
	"id", "version", "created_at", "updated_at", "created_by", "updated_by",
	"kind", "direction", "product_id", "quantity", "unit_price", "total",
	"date", "status", "receipt_number", "description",
}

// MovementRepo implements ledger.Repository.
type MovementRepo struct {
	txManager *TxManager
	inserter  *BatchInserter
	builder   squirrel.StatementBuilderType
}

var _ ledger.Repository = (*MovementRepo)(nil)

// NewMovementRepo creates a new movement repository.
func NewMovementRepo(txManager *TxManager) *MovementRepo {
	return &MovementRepo{
		txManager: txManager,
		inserter:  NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *MovementRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(movementColumns...).From(movementsTable)
}

// Create inserts a new movement.
func (r *MovementRepo) Create(ctx context.Context, m *ledger.Movement) error {
	q := r.builder.Insert(movementsTable).
		Columns(movementColumns...).
		Values(
			m.ID, m.Version, m.CreatedAt, m.UpdatedAt, m.CreatedBy, m.UpdatedBy,
			m.Kind, m.Direction, m.ProductID, m.Quantity, m.UnitPrice, m.Total,
			m.Date, m.Status, m.ReceiptNumber, m.Description,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}

	return nil
}

// CreateAllocations bulk-inserts the per-lot breakdown via COPY when inside
// a transaction, falling back to a multi-row INSERT otherwise.
func (r *MovementRepo) CreateAllocations(ctx context.Context, movementID id.ID, allocations []ledger.LotAllocation) error {
	if len(allocations) == 0 {
		return nil
	}

	columns := []string{"movement_id", "lot_id", "quantity"}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		rows := make([][]any, 0, len(allocations))
		for _, a := range allocations {
			rows = append(rows, []any{movementID, a.LotID, a.Quantity})
		}
		if _, err := r.inserter.CopyFromSlice(ctx, allocationsTable, columns, rows); err != nil {
			return fmt.Errorf("copy allocations: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(allocationsTable).Columns(columns...)
	for _, a := range allocations {
		q = q.Values(movementID, a.LotID, a.Quantity)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert allocations: %w", err)
	}

	return nil
}

// GetByID retrieves a movement by ID.
func (r *MovementRepo) GetByID(ctx context.Context, movementID id.ID) (*ledger.Movement, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": movementID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var m ledger.Movement
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("movement", movementID.String())
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}

	return &m, nil
}

// GetAllocations retrieves the per-lot breakdown of a movement.
func (r *MovementRepo) GetAllocations(ctx context.Context, movementID id.ID) ([]ledger.LotAllocation, error) {
	q := r.builder.Select("movement_id", "lot_id", "quantity").
		From(allocationsTable).
		Where(squirrel.Eq{"movement_id": movementID}).
		OrderBy("lot_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var allocations []ledger.LotAllocation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &allocations, sql, args...); err != nil {
		return nil, fmt.Errorf("select allocations: %w", err)
	}

	return allocations, nil
}

// UpdateStatus performs an optimistic-locked status change.
func (r *MovementRepo) UpdateStatus(ctx context.Context, m *ledger.Movement, to ledger.Status) error {
	q := r.builder.Update(movementsTable).
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": m.ID}).
		Where(squirrel.Eq{"version": m.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update movement status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("movement", m.ID)
	}

	m.Status = to
	m.Touch()
	return nil
}

// Delete removes a movement and its allocation rows.
func (r *MovementRepo) Delete(ctx context.Context, movementID id.ID) error {
	querier := r.txManager.GetQuerier(ctx)

	delAllocs, args, err := r.builder.Delete(allocationsTable).
		Where(squirrel.Eq{"movement_id": movementID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, delAllocs, args...); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}

	delMovement, args, err := r.builder.Delete(movementsTable).
		Where(squirrel.Eq{"id": movementID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := querier.Exec(ctx, delMovement, args...)
	if err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("movement", movementID.String())
	}

	return nil
}

// ListByProduct returns movements ordered by date descending.
func (r *MovementRepo) ListByProduct(ctx context.Context, productID id.ID, filter ledger.ListFilter) ([]*ledger.Movement, error) {
	q := r.baseSelect().Where(squirrel.Eq{"product_id": productID})

	if filter.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": filter.Kind})
	}

	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}

	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}

	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.To})
	}

	q = q.OrderBy("date DESC", "created_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []*ledger.Movement
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	return movements, nil
}

// ListReceipts returns confirmed receipt movements ascending by date.
func (r *MovementRepo) ListReceipts(ctx context.Context, productID id.ID) ([]*ledger.Movement, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"kind": ledger.KindReceipt}).
		Where(squirrel.Eq{"status": ledger.StatusConfirmed}).
		OrderBy("date", "created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []*ledger.Movement
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select receipts: %w", err)
	}

	return movements, nil
}
