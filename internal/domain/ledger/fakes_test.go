package ledger

import (
	"context"
	"sort"

	"merx/internal/core/apperror"
	appctx "merx/internal/core/context"
	"merx/internal/core/id"
	"merx/internal/domain/audit"
	"merx/internal/domain/events"
	"merx/internal/domain/lots"
	"merx/internal/domain/product"
)

// In-memory fakes. Single-goroutine test use only.

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
	for _, p := range r.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, apperror.NewNotFound("product", sku)
}

func (r *fakeProductRepo) List(ctx context.Context, filter product.ListFilter) ([]*product.Product, error) {
	out := make([]*product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
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

type fakeLotRepo struct {
	lots map[id.ID]*lots.Lot
}

func newFakeLotRepo(items ...*lots.Lot) *fakeLotRepo {
	r := &fakeLotRepo{lots: make(map[id.ID]*lots.Lot)}
	for _, l := range items {
		r.lots[l.ID] = l
	}
	return r
}

func (r *fakeLotRepo) GetByID(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	l, ok := r.lots[lotID]
	if !ok {
		return nil, apperror.NewNotFound("lot", lotID)
	}
	return l, nil
}

func (r *fakeLotRepo) GetByIDForUpdate(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	return r.GetByID(ctx, lotID)
}

func (r *fakeLotRepo) GetByNumber(ctx context.Context, productID id.ID, lotNumber string) (*lots.Lot, error) {
	for _, l := range r.lots {
		if l.ProductID == productID && l.LotNumber == lotNumber {
			return l, nil
		}
	}
	return nil, apperror.NewNotFound("lot", lotNumber)
}

func (r *fakeLotRepo) ListByProduct(ctx context.Context, productID id.ID, onlyAvailable bool) ([]*lots.Lot, error) {
	var out []*lots.Lot
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

func (r *fakeLotRepo) ListByProductForUpdate(ctx context.Context, productID id.ID) ([]*lots.Lot, error) {
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

func (r *fakeLotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	r.lots[lot.ID] = lot
	return nil
}

func (r *fakeLotRepo) UpdateQuantity(ctx context.Context, lot *lots.Lot, newQuantity int64) error {
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

type fakeMovementRepo struct {
	movements   map[id.ID]*Movement
	allocations map[id.ID][]LotAllocation
}

func newFakeMovementRepo() *fakeMovementRepo {
	return &fakeMovementRepo{
		movements:   make(map[id.ID]*Movement),
		allocations: make(map[id.ID][]LotAllocation),
	}
}

func (r *fakeMovementRepo) Create(ctx context.Context, m *Movement) error {
	r.movements[m.ID] = m
	return nil
}

func (r *fakeMovementRepo) CreateAllocations(ctx context.Context, movementID id.ID, allocations []LotAllocation) error {
	r.allocations[movementID] = append([]LotAllocation(nil), allocations...)
	return nil
}

func (r *fakeMovementRepo) GetByID(ctx context.Context, movementID id.ID) (*Movement, error) {
	m, ok := r.movements[movementID]
	if !ok {
		return nil, apperror.NewNotFound("movement", movementID)
	}
	return m, nil
}

func (r *fakeMovementRepo) GetAllocations(ctx context.Context, movementID id.ID) ([]LotAllocation, error) {
	return r.allocations[movementID], nil
}

func (r *fakeMovementRepo) UpdateStatus(ctx context.Context, m *Movement, to Status) error {
	stored, ok := r.movements[m.ID]
	if !ok {
		return apperror.NewNotFound("movement", m.ID)
	}
	stored.Status = to
	stored.Touch()
	return nil
}

func (r *fakeMovementRepo) Delete(ctx context.Context, movementID id.ID) error {
	delete(r.movements, movementID)
	delete(r.allocations, movementID)
	return nil
}

func (r *fakeMovementRepo) ListByProduct(ctx context.Context, productID id.ID, filter ListFilter) ([]*Movement, error) {
	var out []*Movement
	for _, m := range r.movements {
		if m.ProductID != productID {
			continue
		}
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *fakeMovementRepo) ListReceipts(ctx context.Context, productID id.ID) ([]*Movement, error) {
	var out []*Movement
	for _, m := range r.movements {
		if m.ProductID == productID && m.Kind == KindReceipt && m.Status == StatusConfirmed {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func operatorContext() context.Context {
	return appctx.WithOperator(context.Background(), &appctx.OperatorContext{
		OperatorID: id.New().String(),
		Username:   "tester",
		Role:       "operator",
	})
}

func newTestService(products *fakeProductRepo, lotRepo *fakeLotRepo, movements *fakeMovementRepo) *Service {
	return NewService(movements, products, lotRepo, fakeTxManager{}, nil, events.NewPublisher(), audit.Noop{})
}
