package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"merx/internal/core/apperror"
	"merx/internal/core/id"
	"merx/internal/domain/lots"
)

const lotsTable = "reg_lots"

var lotColumns = []string{
	"id", "version", "product_id", "lot_number", "quantity",
	"manufacture_date", "expiry_date", "created_at",
}

// LotRepo implements lots.Repository.
type LotRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

var _ lots.Repository = (*LotRepo)(nil)

// NewLotRepo creates a new lot repository.
func NewLotRepo(txManager *TxManager) *LotRepo {
	return &LotRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LotRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(lotColumns...).From(lotsTable)
}

// GetByID retrieves a lot by ID.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": lotID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lot lots.Lot
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &lot, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}

	return &lot, nil
}

// GetByIDForUpdate locks the lot row for the current transaction.
func (r *LotRepo) GetByIDForUpdate(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	sql := `
		SELECT id, version, product_id, lot_number, quantity,
			   manufacture_date, expiry_date, created_at
		FROM reg_lots
		WHERE id = $1
		FOR UPDATE
	`

	var lot lots.Lot
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &lot, sql, lotID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, fmt.Errorf("get lot for update: %w", err)
	}

	return &lot, nil
}

// GetByNumber finds a lot by its per-product number.
func (r *LotRepo) GetByNumber(ctx context.Context, productID id.ID, lotNumber string) (*lots.Lot, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"lot_number": lotNumber}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lot lots.Lot
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &lot, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", lotNumber)
		}
		return nil, fmt.Errorf("get lot by number: %w", err)
	}

	return &lot, nil
}

// ListByProduct returns a product's lots ordered by creation.
func (r *LotRepo) ListByProduct(ctx context.Context, productID id.ID, onlyAvailable bool) ([]*lots.Lot, error) {
	q := r.baseSelect().Where(squirrel.Eq{"product_id": productID})

	if onlyAvailable {
		q = q.Where(squirrel.Gt{"quantity": int64(0)})
	}

	q = q.OrderBy("created_at", "lot_number")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var result []*lots.Lot
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &result, sql, args...); err != nil {
		return nil, fmt.Errorf("select lots: %w", err)
	}

	return result, nil
}

// ListByProductForUpdate locks and returns all of a product's lots.
// Ordered by id to keep lock acquisition order stable across callers.
func (r *LotRepo) ListByProductForUpdate(ctx context.Context, productID id.ID) ([]*lots.Lot, error) {
	sql := `
		SELECT id, version, product_id, lot_number, quantity,
			   manufacture_date, expiry_date, created_at
		FROM reg_lots
		WHERE product_id = $1
		ORDER BY id
		FOR UPDATE
	`

	var result []*lots.Lot
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &result, sql, productID); err != nil {
		return nil, fmt.Errorf("select lots for update: %w", err)
	}

	return result, nil
}

// SumQuantities returns the total remaining quantity over a product's lots.
func (r *LotRepo) SumQuantities(ctx context.Context, productID id.ID) (int64, error) {
	sql := `SELECT COALESCE(SUM(quantity), 0) FROM reg_lots WHERE product_id = $1`

	var total int64
	querier := r.txManager.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, productID).Scan(&total)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("sum lot quantities: %w", err)
	}

	return total, nil
}

// Create inserts a new lot.
func (r *LotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	q := r.builder.Insert(lotsTable).
		Columns(lotColumns...).
		Values(
			lot.ID, lot.Version, lot.ProductID, lot.LotNumber, lot.Quantity,
			lot.ManufactureDate, lot.ExpiryDate, lot.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}

	return nil
}

// UpdateQuantity sets the stored quantity with optimistic locking.
func (r *LotRepo) UpdateQuantity(ctx context.Context, lot *lots.Lot, newQuantity int64) error {
	q := r.builder.Update(lotsTable).
		Set("quantity", newQuantity).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": lot.ID}).
		Where(squirrel.Eq{"version": lot.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update lot quantity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("lot", lot.ID)
	}

	lot.Quantity = newQuantity
	lot.Touch()
	return nil
}

// Delete removes a lot row.
func (r *LotRepo) Delete(ctx context.Context, lotID id.ID) error {
	q := r.builder.Delete(lotsTable).Where(squirrel.Eq{"id": lotID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete lot: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("lot", lotID.String())
	}

	return nil
}
