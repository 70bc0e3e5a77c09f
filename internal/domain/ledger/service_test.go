package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merx/internal/core/apperror"
	"merx/internal/core/entity"
	"merx/internal/core/id"
	"merx/internal/core/types"
	"merx/internal/domain/allocation"
	"merx/internal/domain/lots"
	"merx/internal/domain/product"
)

func newProduct(name string, managedByLots bool, stock int64) *product.Product {
	p := product.New(name, "SKU-"+name, "pcs", managedByLots, types.MustMoney("10.00"))
	p.Stock = stock
	return p
}

func newLot(productID id.ID, number string, quantity int64) *lots.Lot {
	return &lots.Lot{
		BaseEntity: entity.NewBaseEntity(),
		ProductID:  productID,
		LotNumber:  number,
		Quantity:   quantity,
	}
}

func TestRecord_RequiresOperator(t *testing.T) {
	p := newProduct("P", false, 100)
	svc := newTestService(newFakeProductRepo(p), newFakeLotRepo(), newFakeMovementRepo())

	_, err := svc.Record(context.Background(), NewExit(p.ID, 1, types.MustMoney("10.00"), ""), nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotAuthenticated))
}

func TestRecord_SimpleExit(t *testing.T) {
	// Stock 100, exit of 30 at 10.00: stock 70, total 300.
	p := newProduct("P", false, 100)
	products := newFakeProductRepo(p)
	movements := newFakeMovementRepo()
	svc := newTestService(products, newFakeLotRepo(), movements)
	ctx := operatorContext()

	m := NewExit(p.ID, 30, types.MustMoney("10.00"), "walk-in sale")
	movementID, err := svc.Record(ctx, m, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(70), p.Stock)
	stored, err := movements.GetByID(ctx, movementID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(types.MustMoney("300.00")), "total %s", stored.Total)
	assert.Equal(t, StatusConfirmed, stored.Status)
	assert.Equal(t, "tester", stored.CreatedBy)
}

func TestRecord_InsufficientStockLeavesStateUnchanged(t *testing.T) {
	p := newProduct("P", false, 5)
	products := newFakeProductRepo(p)
	movements := newFakeMovementRepo()
	svc := newTestService(products, newFakeLotRepo(), movements)

	_, err := svc.Record(operatorContext(), NewExit(p.ID, 6, types.MustMoney("10.00"), ""), nil)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(6), appErr.Details["requested"])
	assert.Equal(t, int64(5), appErr.Details["available"])

	assert.Equal(t, int64(5), p.Stock)
	assert.Empty(t, movements.movements)
}

func TestRecord_LotManagedExit(t *testing.T) {
	// Lots A(5), B(3); allocate A:5, B:2 -> A 0, B 1, movement quantity 7.
	p := newProduct("P", true, 8)
	lotA := newLot(p.ID, "A", 5)
	lotB := newLot(p.ID, "B", 3)
	products := newFakeProductRepo(p)
	lotRepo := newFakeLotRepo(lotA, lotB)
	movements := newFakeMovementRepo()
	svc := newTestService(products, lotRepo, movements)
	ctx := operatorContext()

	alloc := allocation.New(p.ID)
	alloc.SetLine(lotA.ID, 5)
	alloc.SetLine(lotB.ID, 2)

	m := NewExit(p.ID, 7, types.MustMoney("10.00"), "")
	movementID, err := svc.Record(ctx, m, alloc)
	require.NoError(t, err)

	assert.Equal(t, int64(0), lotA.Quantity)
	assert.Equal(t, int64(1), lotB.Quantity)
	assert.Equal(t, int64(1), p.Stock)

	stored, err := svc.GetByID(ctx, movementID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.Quantity)
	assert.Equal(t, int64(7), stored.AllocatedTotal())

	// Lot-sum invariant after commit.
	sum, _ := lotRepo.SumQuantities(ctx, p.ID)
	assert.Equal(t, p.Stock, sum)
}

func TestRecord_QuantityMustMatchAllocationTotal(t *testing.T) {
	// Declared quantity 5 with an allocation of 3 must be rejected, not
	// silently recorded as 3.
	p := newProduct("P", true, 10)
	lotA := newLot(p.ID, "A", 10)
	movements := newFakeMovementRepo()
	svc := newTestService(newFakeProductRepo(p), newFakeLotRepo(lotA), movements)

	alloc := allocation.New(p.ID)
	alloc.SetLine(lotA.ID, 3)

	_, err := svc.Record(operatorContext(), NewExit(p.ID, 5, types.MustMoney("10.00"), ""), alloc)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	assert.Equal(t, int64(10), p.Stock)
	assert.Equal(t, int64(10), lotA.Quantity)
	assert.Empty(t, movements.movements)
}

func TestRecord_LotManagedExitOverallocationRejected(t *testing.T) {
	p := newProduct("P", true, 5)
	lotA := newLot(p.ID, "A", 5)
	lotRepo := newFakeLotRepo(lotA)
	movements := newFakeMovementRepo()
	svc := newTestService(newFakeProductRepo(p), lotRepo, movements)

	alloc := allocation.New(p.ID)
	alloc.SetLine(lotA.ID, 6)

	_, err := svc.Record(operatorContext(), NewExit(p.ID, 6, types.MustMoney("10.00"), ""), alloc)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeExceedsLotStock))

	assert.Equal(t, int64(5), lotA.Quantity)
	assert.Equal(t, int64(5), p.Stock)
	assert.Empty(t, movements.movements)
}

func TestRecord_AdjustmentOutRespectsLotTotal(t *testing.T) {
	// Stock 10, one lot of 10: an adjustment-out of 4 would leave stock 6
	// below the lot total, so it must be rejected.
	p := newProduct("P", true, 10)
	lotA := newLot(p.ID, "A", 10)
	movements := newFakeMovementRepo()
	svc := newTestService(newFakeProductRepo(p), newFakeLotRepo(lotA), movements)
	ctx := operatorContext()

	_, err := svc.Record(ctx, NewAdjustment(p.ID, DirectionOut, 4, "damaged"), nil)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeExceedsAvailableStock))
	assert.Equal(t, int64(10), p.Stock)
	assert.Equal(t, int64(10), lotA.Quantity)
	assert.Empty(t, movements.movements)

	// With lot headroom the same adjustment goes through.
	lotA.Quantity = 6
	_, err = svc.Record(ctx, NewAdjustment(p.ID, DirectionOut, 4, "damaged"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), p.Stock)
}

func TestRemove_ReceiptRespectsLotTotal(t *testing.T) {
	// Receipt of 4 brings stock to 14 and the lot grows to match. Removing
	// the receipt would drop stock to 10 below the lot total of 14.
	p := newProduct("P", true, 10)
	lotA := newLot(p.ID, "A", 10)
	movements := newFakeMovementRepo()
	svc := newTestService(newFakeProductRepo(p), newFakeLotRepo(lotA), movements)
	ctx := operatorContext()

	movementID, err := svc.Record(ctx, NewReceipt(p.ID, 4, types.MustMoney("5.00"), ""), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(14), p.Stock)
	lotA.Quantity = 14

	err = svc.Remove(ctx, movementID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeExceedsAvailableStock))
	assert.Equal(t, int64(14), p.Stock)

	// Shrinking the lot first clears the removal.
	lotA.Quantity = 10
	require.NoError(t, svc.Remove(ctx, movementID))
	assert.Equal(t, int64(10), p.Stock)
	assert.Empty(t, movements.movements)
}

func TestRecord_StockConservation(t *testing.T) {
	// Receipts + adjustments in, minus exits and adjustments out.
	p := newProduct("P", false, 0)
	products := newFakeProductRepo(p)
	svc := newTestService(products, newFakeLotRepo(), newFakeMovementRepo())
	ctx := operatorContext()

	steps := []*Movement{
		NewReceipt(p.ID, 50, types.MustMoney("4.00"), ""),
		NewReceipt(p.ID, 25, types.MustMoney("5.00"), ""),
		NewExit(p.ID, 30, types.MustMoney("9.00"), ""),
		NewAdjustment(p.ID, DirectionIn, 10, "found in back room"),
		NewAdjustment(p.ID, DirectionOut, 5, "damaged"),
		NewExit(p.ID, 20, types.MustMoney("9.00"), ""),
	}
	for _, m := range steps {
		_, err := svc.Record(ctx, m, nil)
		require.NoError(t, err)
	}

	// 50 + 25 - 30 + 10 - 5 - 20 = 30
	assert.Equal(t, int64(30), p.Stock)
}

func TestRemove_ReversesStockEffect(t *testing.T) {
	p := newProduct("P", false, 100)
	products := newFakeProductRepo(p)
	movements := newFakeMovementRepo()
	svc := newTestService(products, newFakeLotRepo(), movements)
	ctx := operatorContext()

	movementID, err := svc.Record(ctx, NewExit(p.ID, 30, types.MustMoney("10.00"), ""), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(70), p.Stock)

	require.NoError(t, svc.Remove(ctx, movementID))
	assert.Equal(t, int64(100), p.Stock)
	assert.Empty(t, movements.movements)
}

func TestRemove_LotBackedExitRestoresLots(t *testing.T) {
	p := newProduct("P", true, 8)
	lotA := newLot(p.ID, "A", 5)
	lotB := newLot(p.ID, "B", 3)
	lotRepo := newFakeLotRepo(lotA, lotB)
	svc := newTestService(newFakeProductRepo(p), lotRepo, newFakeMovementRepo())
	ctx := operatorContext()

	alloc := allocation.New(p.ID)
	alloc.SetLine(lotA.ID, 4)
	alloc.SetLine(lotB.ID, 2)
	movementID, err := svc.Record(ctx, NewExit(p.ID, 6, types.MustMoney("10.00"), ""), alloc)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lotA.Quantity)
	assert.Equal(t, int64(1), lotB.Quantity)

	require.NoError(t, svc.Remove(ctx, movementID))
	assert.Equal(t, int64(5), lotA.Quantity)
	assert.Equal(t, int64(3), lotB.Quantity)
	assert.Equal(t, int64(8), p.Stock)
}

func TestChangeStatus_CancelRestoreRoundTrip(t *testing.T) {
	// Single lot of 10, exit of 10, cancel -> 10, re-confirm -> 0.
	p := newProduct("P", true, 10)
	lotA := newLot(p.ID, "A", 10)
	lotRepo := newFakeLotRepo(lotA)
	svc := newTestService(newFakeProductRepo(p), lotRepo, newFakeMovementRepo())
	ctx := operatorContext()

	alloc := allocation.New(p.ID)
	alloc.SetLine(lotA.ID, 10)
	movementID, err := svc.Record(ctx, NewExit(p.ID, 10, types.MustMoney("10.00"), ""), alloc)
	require.NoError(t, err)
	assert.Equal(t, int64(0), lotA.Quantity)
	assert.Equal(t, int64(0), p.Stock)

	m, err := svc.ChangeStatus(ctx, movementID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, m.Status)
	assert.Equal(t, int64(10), lotA.Quantity)
	assert.Equal(t, int64(10), p.Stock)

	m, err = svc.ChangeStatus(ctx, movementID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, m.Status)
	assert.Equal(t, int64(0), lotA.Quantity)
	assert.Equal(t, int64(0), p.Stock)
}

func TestChangeStatus_LabelOnlyBetweenPendingAndConfirmed(t *testing.T) {
	p := newProduct("P", false, 100)
	svc := newTestService(newFakeProductRepo(p), newFakeLotRepo(), newFakeMovementRepo())
	ctx := operatorContext()

	movementID, err := svc.Record(ctx, NewExit(p.ID, 10, types.MustMoney("10.00"), ""), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(90), p.Stock)

	_, err = svc.ChangeStatus(ctx, movementID, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(90), p.Stock)

	_, err = svc.ChangeStatus(ctx, movementID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, int64(90), p.Stock)
}

func TestChangeStatus_ProportionalFallbackWithoutBreakdown(t *testing.T) {
	// Movement with no recorded breakdown: cancel distributes ceil(q/lots)
	// per lot, capped at the movement total.
	p := newProduct("P", true, 0)
	lotA := newLot(p.ID, "A", 0)
	lotB := newLot(p.ID, "B", 0)
	lotRepo := newFakeLotRepo(lotA, lotB)
	movements := newFakeMovementRepo()
	svc := newTestService(newFakeProductRepo(p), lotRepo, movements)
	ctx := operatorContext()

	m := NewExit(p.ID, 5, types.MustMoney("10.00"), "")
	require.NoError(t, movements.Create(ctx, m))

	_, err := svc.ChangeStatus(ctx, m.ID, StatusCancelled)
	require.NoError(t, err)

	// ceil(5/2) = 3 to lot A, remaining 2 to lot B.
	assert.Equal(t, int64(3), lotA.Quantity)
	assert.Equal(t, int64(2), lotB.Quantity)
	assert.Equal(t, int64(5), p.Stock)
}

func TestChangeStatus_RestorationUnavailableWithoutLots(t *testing.T) {
	p := newProduct("P", true, 0)
	movements := newFakeMovementRepo()
	svc := newTestService(newFakeProductRepo(p), newFakeLotRepo(), movements)
	ctx := operatorContext()

	m := NewExit(p.ID, 5, types.MustMoney("10.00"), "")
	require.NoError(t, movements.Create(ctx, m))

	_, err := svc.ChangeStatus(ctx, m.ID, StatusCancelled)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeRestorationUnavailable))
}

func TestChangeStatus_RejectsSameStatus(t *testing.T) {
	p := newProduct("P", false, 100)
	svc := newTestService(newFakeProductRepo(p), newFakeLotRepo(), newFakeMovementRepo())
	ctx := operatorContext()

	movementID, err := svc.Record(ctx, NewExit(p.ID, 1, types.MustMoney("10.00"), ""), nil)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, movementID, StatusConfirmed)
	assert.Error(t, err)
}

func TestValidateExit(t *testing.T) {
	p := newProduct("P", false, 10)
	lotP := newProduct("Q", true, 5)
	lotA := newLot(lotP.ID, "A", 5)
	svc := newTestService(newFakeProductRepo(p, lotP), newFakeLotRepo(lotA), newFakeMovementRepo())
	ctx := operatorContext()

	assert.NoError(t, svc.ValidateExit(ctx, p.ID, 10, nil))
	assert.True(t, apperror.HasCode(
		svc.ValidateExit(ctx, p.ID, 11, nil), apperror.CodeInsufficientStock))

	ok := []allocation.Line{{LotID: lotA.ID, Quantity: 5}}
	assert.NoError(t, svc.ValidateExit(ctx, lotP.ID, 5, ok))

	over := []allocation.Line{{LotID: lotA.ID, Quantity: 6}}
	assert.True(t, apperror.HasCode(
		svc.ValidateExit(ctx, lotP.ID, 6, over), apperror.CodeExceedsLotStock))
}

func TestMovementValidate(t *testing.T) {
	p := id.New()

	bad := NewExit(p, 0, types.MustMoney("1.00"), "")
	assert.Error(t, bad.Validate(context.Background()))

	adj := NewAdjustment(p, Direction("sideways"), 1, "")
	assert.Error(t, adj.Validate(context.Background()))

	rec := NewReceipt(p, 1, types.MustMoney("1.00"), "")
	rec.Status = StatusPending
	assert.Error(t, rec.Validate(context.Background()))

	good := NewExit(p, 2, types.MustMoney("1.00"), "")
	good.Allocations = []LotAllocation{{LotID: id.New(), Quantity: 1}}
	assert.Error(t, good.Validate(context.Background())) // sum 1 != quantity 2
	good.Allocations = append(good.Allocations, LotAllocation{LotID: id.New(), Quantity: 1})
	assert.NoError(t, good.Validate(context.Background()))
}
