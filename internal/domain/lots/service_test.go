package lots

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merx/internal/core/apperror"
	appctx "merx/internal/core/context"
	"merx/internal/core/id"
	"merx/internal/core/types"
	"merx/internal/domain/audit"
	"merx/internal/domain/events"
	"merx/internal/domain/product"
)

type fakeLotRepo struct {
	lots map[id.ID]*Lot
}

func newFakeLotRepo(items ...*Lot) *fakeLotRepo {
	r := &fakeLotRepo{lots: make(map[id.ID]*Lot)}
	for _, l := range items {
		r.lots[l.ID] = l
	}
	return r
}

func (r *fakeLotRepo) GetByID(ctx context.Context, lotID id.ID) (*Lot, error) {
	l, ok := r.lots[lotID]
	if !ok {
		return nil, apperror.NewNotFound("lot", lotID)
	}
	return l, nil
}

func (r *fakeLotRepo) GetByIDForUpdate(ctx context.Context, lotID id.ID) (*Lot, error) {
	return r.GetByID(ctx, lotID)
}

func (r *fakeLotRepo) GetByNumber(ctx context.Context, productID id.ID, lotNumber string) (*Lot, error) {
	for _, l := range r.lots {
		if l.ProductID == productID && l.LotNumber == lotNumber {
			return l, nil
		}
	}
	return nil, apperror.NewNotFound("lot", lotNumber)
}

func (r *fakeLotRepo) ListByProduct(ctx context.Context, productID id.ID, onlyAvailable bool) ([]*Lot, error) {
	var out []*Lot
	for _, l := range r.lots {
		if l.ProductID != productID {
			continue
		}
		if onlyAvailable && l.Quantity <= 0 {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotNumber < out[j].LotNumber })
	return out, nil
}

func (r *fakeLotRepo) ListByProductForUpdate(ctx context.Context, productID id.ID) ([]*Lot, error) {
	return r.ListByProduct(ctx, productID, false)
}

func (r *fakeLotRepo) SumQuantities(ctx context.Context, productID id.ID) (int64, error) {
	var sum int64
	for _, l := range r.lots {
		if l.ProductID == productID {
			sum += l.Quantity
		}
	}
	return sum, nil
}

func (r *fakeLotRepo) Create(ctx context.Context, lot *Lot) error {
	r.lots[lot.ID] = lot
	return nil
}

func (r *fakeLotRepo) UpdateQuantity(ctx context.Context, lot *Lot, newQuantity int64) error {
	if newQuantity < 0 {
		return apperror.NewValidation("lot quantity cannot be negative")
	}
	stored, ok := r.lots[lot.ID]
	if !ok {
		return apperror.NewNotFound("lot", lot.ID)
	}
	stored.Quantity = newQuantity
	stored.Touch()
	return nil
}

func (r *fakeLotRepo) Delete(ctx context.Context, lotID id.ID) error {
	delete(r.lots, lotID)
	return nil
}

type fakeProductRepo struct {
	products map[id.ID]*product.Product
}

func newFakeProductRepo(items ...*product.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[id.ID]*product.Product)}
	for _, p := range items {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := r.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	return p, nil
}

func (r *fakeProductRepo) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	return nil, apperror.NewNotFound("product", sku)
}

func (r *fakeProductRepo) List(ctx context.Context, filter product.ListFilter) ([]*product.Product, error) {
	return nil, nil
}

func (r *fakeProductRepo) Create(ctx context.Context, p *product.Product) error {
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) Update(ctx context.Context, p *product.Product) error {
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.GetByID(ctx, productID)
}

func (r *fakeProductRepo) ApplyStockDelta(ctx context.Context, productID id.ID, delta int64) error {
	p, ok := r.products[productID]
	if !ok {
		return apperror.NewNotFound("product", productID)
	}
	if p.Stock+delta < 0 {
		return apperror.NewInsufficientStock(productID.String(), -delta, p.Stock)
	}
	p.Stock += delta
	return nil
}

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func operatorContext() context.Context {
	return appctx.WithOperator(context.Background(), &appctx.OperatorContext{
		OperatorID: "op-1",
		Username:   "tester",
	})
}

func lotManagedProduct(stock int64) *product.Product {
	p := product.New("Beans", "SKU-1", "bag", true, types.Zero())
	p.Stock = stock
	return p
}

func newTestService(lotRepo *fakeLotRepo, products *fakeProductRepo) *Service {
	return NewService(lotRepo, products, fakeTxManager{}, events.NewPublisher(), audit.Noop{})
}

func TestCreate_DuplicateLotWithinProduct(t *testing.T) {
	p := lotManagedProduct(100)
	lotRepo := newFakeLotRepo()
	svc := newTestService(lotRepo, newFakeProductRepo(p))
	ctx := operatorContext()

	first := New(p.ID, "L-100", 10, nil, nil)
	require.NoError(t, svc.Create(ctx, first))

	second := New(p.ID, "L-100", 5, nil, nil)
	err := svc.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateLot))
}

func TestCreate_SameNumberDifferentProductAllowed(t *testing.T) {
	p1 := lotManagedProduct(100)
	p2 := lotManagedProduct(100)
	lotRepo := newFakeLotRepo()
	svc := newTestService(lotRepo, newFakeProductRepo(p1, p2))
	ctx := operatorContext()

	require.NoError(t, svc.Create(ctx, New(p1.ID, "L-100", 10, nil, nil)))
	require.NoError(t, svc.Create(ctx, New(p2.ID, "L-100", 10, nil, nil)))
}

func TestCreate_ExceedsAvailableStock(t *testing.T) {
	p := lotManagedProduct(10)
	existing := New(p.ID, "L-1", 7, nil, nil)
	lotRepo := newFakeLotRepo(existing)
	svc := newTestService(lotRepo, newFakeProductRepo(p))
	ctx := operatorContext()

	err := svc.Create(ctx, New(p.ID, "L-2", 4, nil, nil))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeExceedsAvailableStock))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(4), appErr.Details["requested"])
	assert.Equal(t, int64(3), appErr.Details["available"])

	// Exactly filling the unallocated stock is fine.
	require.NoError(t, svc.Create(ctx, New(p.ID, "L-2", 3, nil, nil)))
}

func TestCreate_RejectsNonLotManagedProduct(t *testing.T) {
	p := product.New("Loose", "SKU-2", "pcs", false, types.Zero())
	p.Stock = 50
	svc := newTestService(newFakeLotRepo(), newFakeProductRepo(p))

	err := svc.Create(operatorContext(), New(p.ID, "L-1", 5, nil, nil))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreate_RequiresOperator(t *testing.T) {
	p := lotManagedProduct(10)
	svc := newTestService(newFakeLotRepo(), newFakeProductRepo(p))

	err := svc.Create(context.Background(), New(p.ID, "L-1", 5, nil, nil))
	assert.True(t, apperror.HasCode(err, apperror.CodeNotAuthenticated))
}

func TestAdjustQuantity(t *testing.T) {
	p := lotManagedProduct(10)
	lot := New(p.ID, "L-1", 5, nil, nil)
	lotRepo := newFakeLotRepo(lot)
	svc := newTestService(lotRepo, newFakeProductRepo(p))
	ctx := operatorContext()

	_, err := svc.AdjustQuantity(ctx, lot.ID, -1)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, int64(5), lot.Quantity)

	updated, err := svc.AdjustQuantity(ctx, lot.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Quantity)

	// Raising beyond the product's unallocated stock is rejected.
	_, err = svc.AdjustQuantity(ctx, lot.ID, 11)
	assert.True(t, apperror.HasCode(err, apperror.CodeExceedsAvailableStock))
}

func TestDelete_OnlyEmptyLots(t *testing.T) {
	p := lotManagedProduct(10)
	lot := New(p.ID, "L-1", 5, nil, nil)
	lotRepo := newFakeLotRepo(lot)
	svc := newTestService(lotRepo, newFakeProductRepo(p))
	ctx := operatorContext()

	err := svc.Delete(ctx, lot.ID)
	require.Error(t, err)

	_, err = svc.AdjustQuantity(ctx, lot.ID, 0)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, lot.ID))

	_, err = svc.GetByID(ctx, lot.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestList_AttachesDerivedStatus(t *testing.T) {
	p := lotManagedProduct(10)
	noExpiry := New(p.ID, "A", 3, nil, nil)
	lotRepo := newFakeLotRepo(noExpiry)
	svc := newTestService(lotRepo, newFakeProductRepo(p))

	listed, err := svc.List(operatorContext(), p.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, StatusUnmanaged, listed[0].Status)
	assert.Nil(t, listed[0].DaysUntilExpiry)
}

func TestListAvailable_SkipsEmptyLots(t *testing.T) {
	p := lotManagedProduct(10)
	full := New(p.ID, "A", 3, nil, nil)
	empty := New(p.ID, "B", 0, nil, nil)
	lotRepo := newFakeLotRepo(full, empty)
	svc := newTestService(lotRepo, newFakeProductRepo(p))

	available, err := svc.ListAvailable(operatorContext(), p.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "A", available[0].LotNumber)
}
