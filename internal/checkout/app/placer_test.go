package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-checkout/internal/checkout/domain"
	"github.com/jcmexdev/storefront-checkout/internal/checkout/ports"
)

// fakeRepo is an in-memory ports.Repository. A single mutex held from
// Begin to Commit/Rollback plays the role of the database write lock, so
// concurrent placements serialize exactly like they do against SQLite.
type fakeRepo struct {
	mu       sync.Mutex
	stores   map[int64]domain.Store
	products map[int64]domain.Product
	vouchers map[string]domain.Voucher
	orders   map[string]domain.Order // keyed by number

	lockedProducts []int64 // order FindProductForUpdate was called in
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		stores:   make(map[int64]domain.Store),
		products: make(map[int64]domain.Product),
		vouchers: make(map[string]domain.Voucher),
		orders:   make(map[string]domain.Order),
	}
}

func (r *fakeRepo) Begin(ctx context.Context) (ports.Tx, error) {
	r.mu.Lock()
	working := make(map[int64]domain.Product, len(r.products))
	for id, p := range r.products {
		working[id] = p
	}
	return &fakeTx{repo: r, products: working}, nil
}

func (r *fakeRepo) FindOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[number]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *fakeRepo) IncrementVoucherUsage(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vouchers[code]
	v.UsedCount++
	r.vouchers[code] = v
	return nil
}

type fakeTx struct {
	repo     *fakeRepo
	products map[int64]domain.Product
	pending  []domain.Order
	done     bool
}

func (t *fakeTx) FindActiveStore(ctx context.Context, id int64) (*domain.Store, error) {
	s, ok := t.repo.stores[id]
	if !ok || !s.Active {
		return nil, nil
	}
	return &s, nil
}

func (t *fakeTx) FindProductForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	t.repo.lockedProducts = append(t.repo.lockedProducts, id)
	p, ok := t.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *fakeTx) FindVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	v, ok := t.repo.vouchers[code]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (t *fakeTx) OrderNumberExists(ctx context.Context, code string) (bool, error) {
	if _, ok := t.repo.orders[code]; ok {
		return true, nil
	}
	for _, o := range t.pending {
		if o.Number == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	cp.History = append([]domain.StatusChange(nil), o.History...)
	t.pending = append(t.pending, cp)
	return nil
}

func (t *fakeTx) UpdateProductStock(ctx context.Context, productID, stock, soldCount int64) error {
	p := t.products[productID]
	p.Stock = stock
	p.SoldCount = soldCount
	t.products[productID] = p
	return nil
}

func (t *fakeTx) Commit() error {
	t.repo.products = t.products
	for _, o := range t.pending {
		t.repo.orders[o.Number] = o
	}
	t.done = true
	t.repo.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.mu.Unlock()
	return nil
}

func setup(t *testing.T) (*fakeRepo, *Placer) {
	t.Helper()
	repo := newFakeRepo()
	repo.stores[1] = domain.Store{ID: 1, Name: "Centro", Active: true}
	repo.products[10] = domain.Product{ID: 10, StoreID: 1, Name: "Cafe de Olla", SKU: "CAF-250", Price: 100000, Discount: 10, Stock: 5}
	repo.products[20] = domain.Product{ID: 20, StoreID: 1, Name: "Pan Dulce", SKU: "PAN-BOX", Price: 80000, Stock: 2}
	return repo, NewPlacer(repo)
}

func validInput() PlaceOrderInput {
	return PlaceOrderInput{
		StoreID:       1,
		CustomerName:  "Ana",
		CustomerPhone: "+5215512345678",
		CustomerEmail: "ana@example.com",
		Items:         []CartLine{{ProductID: 10, Quantity: 2}},
	}
}

func TestPlaceOrder_EndToEnd(t *testing.T) {
	repo, placer := setup(t)

	result, err := placer.PlaceOrder(context.Background(), validInput())
	require.NoError(t, err)

	// Snapshot price is the discounted catalog price at placement time.
	assert.Equal(t, int64(180000), result.Subtotal)
	assert.Zero(t, result.Discount)
	assert.Equal(t, int64(180000), result.Total)
	assert.Regexp(t, `^[0-9A-Z]{4}-[0-9A-Z]{4}-[0-9A-Z]{4}$`, result.OrderNumber)
	assert.NotEmpty(t, result.OrderID)

	p := repo.products[10]
	assert.Equal(t, int64(3), p.Stock)
	assert.Equal(t, int64(2), p.SoldCount)

	order, err := placer.GetOrder(context.Background(), result.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(90000), order.Items[0].UnitPrice)
	require.Len(t, order.History, 1)
	assert.Equal(t, domain.StatusPending, order.History[0].Status)
}

func TestPlaceOrder_StoreNotFound(t *testing.T) {
	_, placer := setup(t)

	in := validInput()
	in.StoreID = 99
	_, err := placer.PlaceOrder(context.Background(), in)

	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestPlaceOrder_InactiveStoreRejected(t *testing.T) {
	repo, placer := setup(t)
	repo.stores[2] = domain.Store{ID: 2, Name: "Cerrada", Active: false}

	in := validInput()
	in.StoreID = 2
	_, err := placer.PlaceOrder(context.Background(), in)

	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	_, placer := setup(t)

	in := validInput()
	in.Items = []CartLine{{ProductID: 404, Quantity: 1}}
	_, err := placer.PlaceOrder(context.Background(), in)

	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	repo, placer := setup(t)

	in := validInput()
	in.Items = []CartLine{{ProductID: 10, Quantity: 6}}
	_, err := placer.PlaceOrder(context.Background(), in)

	require.Equal(t, domain.KindInsufficientStock, domain.KindOf(err))
	assert.Contains(t, err.Error(), "Cafe de Olla")
	assert.Contains(t, err.Error(), "5 available, 6 requested")

	// Nothing happened.
	assert.Equal(t, int64(5), repo.products[10].Stock)
	assert.Empty(t, repo.orders)
}

func TestPlaceOrder_AtomicWhenSecondLineFails(t *testing.T) {
	repo, placer := setup(t)

	in := validInput()
	in.Items = []CartLine{
		{ProductID: 10, Quantity: 1}, // fine
		{ProductID: 20, Quantity: 3}, // only 2 in stock
	}
	_, err := placer.PlaceOrder(context.Background(), in)

	require.Equal(t, domain.KindInsufficientStock, domain.KindOf(err))
	assert.Equal(t, int64(5), repo.products[10].Stock)
	assert.Equal(t, int64(2), repo.products[20].Stock)
	assert.Zero(t, repo.products[10].SoldCount)
	assert.Empty(t, repo.orders)
}

func TestPlaceOrder_LocksInAscendingProductOrder(t *testing.T) {
	repo, placer := setup(t)

	in := validInput()
	in.Items = []CartLine{
		{ProductID: 20, Quantity: 1},
		{ProductID: 10, Quantity: 1},
	}
	_, err := placer.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 20}, repo.lockedProducts)
}

func TestPlaceOrder_MergesDuplicateLines(t *testing.T) {
	repo, placer := setup(t)

	in := validInput()
	in.Items = []CartLine{
		{ProductID: 10, Quantity: 1},
		{ProductID: 10, Quantity: 2},
	}
	result, err := placer.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	order, err := placer.GetOrder(context.Background(), result.OrderNumber)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(3), order.Items[0].Quantity)
	assert.Equal(t, int64(2), repo.products[10].Stock)
}

func TestPlaceOrder_VoucherApplied(t *testing.T) {
	repo, placer := setup(t)
	repo.vouchers["VERANO20"] = domain.Voucher{
		ID: 1, Code: "VERANO20", Type: domain.VoucherPercentage,
		Discount: 20, MaxDiscount: 40000, Status: domain.VoucherActive,
	}

	in := validInput()
	in.VoucherCode = "VERANO20"
	result, err := placer.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	// 20% of 180000 = 36000, under the cap.
	assert.Equal(t, int64(36000), result.Discount)
	assert.Equal(t, int64(144000), result.Total)

	// Redemption ran after commit.
	assert.Equal(t, int64(1), repo.vouchers["VERANO20"].UsedCount)
}

func TestPlaceOrder_InvalidVoucherAbortsWholeOrder(t *testing.T) {
	repo, placer := setup(t)
	repo.vouchers["GRANDE"] = domain.Voucher{
		ID: 1, Code: "GRANDE", Type: domain.VoucherFixed,
		Discount: 50000, MinPurchase: 500000, Status: domain.VoucherActive,
	}

	in := validInput()
	in.VoucherCode = "GRANDE"
	_, err := placer.PlaceOrder(context.Background(), in)

	require.Equal(t, domain.KindInvalidVoucher, domain.KindOf(err))
	assert.Contains(t, err.Error(), "minimum purchase")

	// No partial order, no stock movement, no redemption.
	assert.Empty(t, repo.orders)
	assert.Equal(t, int64(5), repo.products[10].Stock)
	assert.Zero(t, repo.vouchers["GRANDE"].UsedCount)
}

func TestPlaceOrder_UnknownVoucherCode(t *testing.T) {
	_, placer := setup(t)

	in := validInput()
	in.VoucherCode = "NADA"
	_, err := placer.PlaceOrder(context.Background(), in)

	require.Equal(t, domain.KindInvalidVoucher, domain.KindOf(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestPlaceOrder_PriceSnapshotImmutable(t *testing.T) {
	repo, placer := setup(t)

	result, err := placer.PlaceOrder(context.Background(), validInput())
	require.NoError(t, err)

	// Catalog price changes after the fact.
	p := repo.products[10]
	p.Price = 999999
	p.Discount = 0
	repo.products[10] = p

	order, err := placer.GetOrder(context.Background(), result.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), order.Items[0].UnitPrice)
	assert.Equal(t, int64(180000), order.Total)
}

func TestPlaceOrder_ConcurrentNoOversell(t *testing.T) {
	repo, placer := setup(t)
	// Stock 5, everyone wants 2: at most 2 placements can succeed.

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validInput()
			in.CustomerPhone = in.CustomerPhone + string(rune('0'+i))
			_, err := placer.PlaceOrder(context.Background(), in)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var succeeded, outOfStock int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case domain.KindOf(err) == domain.KindInsufficientStock:
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, n-2, outOfStock)
	assert.Equal(t, int64(1), repo.products[10].Stock)
	assert.Equal(t, int64(4), repo.products[10].SoldCount)

	// Every committed order got a distinct number.
	assert.Len(t, repo.orders, 2)
}

func TestPlaceOrder_EmptyCartRejected(t *testing.T) {
	_, placer := setup(t)

	in := validInput()
	in.Items = nil
	_, err := placer.PlaceOrder(context.Background(), in)

	require.Error(t, err)
}

func TestGetOrder_UnknownNumber(t *testing.T) {
	_, placer := setup(t)

	_, err := placer.GetOrder(context.Background(), "ZZZZ-ZZZZ-ZZZZ")

	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestPlacerClockInjection(t *testing.T) {
	repo := newFakeRepo()
	repo.stores[1] = domain.Store{ID: 1, Name: "Centro", Active: true}
	repo.products[10] = domain.Product{ID: 10, Name: "Cafe", SKU: "CAF", Price: 1000, Stock: 1}

	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	placer := NewPlacerWithClock(repo, func() time.Time { return fixed })

	in := validInput()
	in.Items = []CartLine{{ProductID: 10, Quantity: 1}}
	result, err := placer.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	order, err := placer.GetOrder(context.Background(), result.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, fixed, order.CreatedAt)
}
