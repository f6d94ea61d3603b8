// Package app contains the order placement orchestrator: the one write
// path of this service. Everything between Begin and Commit is a single
// unit of work — a failed step leaves no order, no items, and no stock
// mutation behind.
package app

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-checkout/internal/checkout/domain"
	"github.com/jcmexdev/storefront-checkout/internal/checkout/ordernum"
	"github.com/jcmexdev/storefront-checkout/internal/checkout/ports"
)

// CartLine is one requested line of the incoming cart.
type CartLine struct {
	ProductID int64
	Quantity  int64
}

// PlaceOrderInput is everything the storefront submits for one purchase.
type PlaceOrderInput struct {
	StoreID       int64
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string
	VoucherCode   string
	Items         []CartLine
}

// PlacementResult is returned to the caller once the order is committed.
type PlacementResult struct {
	OrderID     string
	OrderNumber string
	Subtotal    int64
	Discount    int64
	Total       int64
}

// Placer runs the placement transaction.
type Placer struct {
	repo ports.Repository
	gen  *ordernum.Generator
	now  func() time.Time
}

func NewPlacer(repo ports.Repository) *Placer {
	return &Placer{repo: repo, gen: ordernum.New(), now: time.Now}
}

// NewPlacerWithClock pins the clock; used by tests.
func NewPlacerWithClock(repo ports.Repository, now func() time.Time) *Placer {
	return &Placer{repo: repo, gen: ordernum.NewWithClock(now), now: now}
}

// pricedLine is a cart line after the lock-and-validate pass: the product
// is held under the transaction's lock and UnitPrice is the frozen
// snapshot that will be written onto the order item.
type pricedLine struct {
	Product   *domain.Product
	Quantity  int64
	UnitPrice int64
}

// PlaceOrder executes the whole placement as one transaction:
//
//	resolve store → lock+validate+price every line → evaluate voucher →
//	mint order number → persist order+items → decrement stock → commit
//
// and, after a successful commit, increments the voucher usage counter as
// an independent step whose failure is logged but never undoes the order.
func (p *Placer) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlacementResult, error) {
	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, err
	}

	tx, err := p.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	// Rollback is a no-op after Commit.
	defer func() { _ = tx.Rollback() }()

	store, err := tx.FindActiveStore(ctx, in.StoreID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, domain.NotFound("store")
	}

	// Lock pass: each product row is locked exactly once, at first touch,
	// and stays locked until Commit/Rollback. mergeLines sorted the ids
	// ascending so two concurrent carts always lock in the same order.
	var subtotal int64
	priced := make([]pricedLine, 0, len(lines))
	skus := make([]string, 0, len(lines))
	for _, line := range lines {
		product, err := tx.FindProductForUpdate(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, domain.NotFound("product")
		}
		if product.Stock < line.Quantity {
			return nil, domain.InsufficientStock(product.Name, product.Stock, line.Quantity)
		}
		priced = append(priced, pricedLine{
			Product:   product,
			Quantity:  line.Quantity,
			UnitPrice: product.UnitPrice(),
		})
		subtotal += product.UnitPrice() * line.Quantity
		skus = append(skus, product.SKU)
	}

	var discount int64
	if in.VoucherCode != "" {
		voucher, err := tx.FindVoucherByCode(ctx, in.VoucherCode)
		if err != nil {
			return nil, err
		}
		eval := domain.EvaluateVoucher(voucher, subtotal, p.now())
		if !eval.Valid {
			return nil, domain.InvalidVoucher(eval.Message)
		}
		discount = eval.Discount
	}
	total := subtotal - discount

	number, err := p.gen.Generate(ctx, in.CustomerPhone, in.CustomerEmail, skus, tx.OrderNumberExists)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	order := &domain.Order{
		ID:            uuid.NewString(),
		Number:        number,
		StoreID:       store.ID,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		CustomerEmail: in.CustomerEmail,
		Notes:         in.Notes,
		Status:        domain.StatusPending,
		Subtotal:      subtotal,
		Discount:      discount,
		Total:         total,
		VoucherCode:   in.VoucherCode,
		CreatedAt:     now,
		History: []domain.StatusChange{
			{Status: domain.StatusPending, Note: "order placed", Actor: "customer", At: now},
		},
	}
	for _, line := range priced {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			SKU:       line.Product.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	// Decrement pass. The rows have been locked since the pass above, so
	// stock cannot have moved; the re-check is an invariant guard, not a
	// second validation.
	for _, line := range priced {
		if line.Product.Stock < line.Quantity {
			return nil, domain.Internal("stock changed under an exclusive lock")
		}
		err := tx.UpdateProductStock(ctx,
			line.Product.ID,
			line.Product.Stock-line.Quantity,
			line.Product.SoldCount+line.Quantity,
		)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// Redemption happens outside the transaction: a failure here must not
	// take down an order that is already committed and valid.
	if in.VoucherCode != "" {
		if err := p.repo.IncrementVoucherUsage(ctx, in.VoucherCode); err != nil {
			slog.ErrorContext(ctx, "voucher usage increment failed after commit",
				"order_number", order.Number,
				"voucher_code", in.VoucherCode,
				"error", err,
			)
		}
	}

	return &PlacementResult{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Subtotal:    subtotal,
		Discount:    discount,
		Total:       total,
	}, nil
}

// GetOrder loads a committed order by its human-readable number.
func (p *Placer) GetOrder(ctx context.Context, number string) (*domain.Order, error) {
	order, err := p.repo.FindOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.NotFound("order")
	}
	return order, nil
}

// mergeLines collapses duplicate product ids into one line and returns the
// result sorted by product id ascending — the canonical lock order.
func mergeLines(items []CartLine) ([]CartLine, error) {
	if len(items) == 0 {
		return nil, &domain.PlacementError{Kind: domain.KindInternal, Message: "empty cart"}
	}
	byProduct := make(map[int64]int64, len(items))
	for _, it := range items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return nil, &domain.PlacementError{Kind: domain.KindInternal, Message: "invalid cart line"}
		}
		byProduct[it.ProductID] += it.Quantity
	}
	merged := make([]CartLine, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, CartLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}
