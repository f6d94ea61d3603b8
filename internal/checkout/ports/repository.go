// Package ports defines the persistence interfaces the checkout core
// depends on. The core never talks to a database directly; a concrete
// store (SQLite in this repo) implements these so the transaction
// discipline can be swapped for a row-locking backend without touching
// the orchestration logic.
package ports

import (
	"context"

	"github.com/jcmexdev/storefront-checkout/internal/checkout/domain"
)

// Repository is the non-transactional surface: reads that do not need the
// placement lock, plus the post-commit voucher redemption side effect.
type Repository interface {
	// Begin opens a write transaction. The returned Tx holds the write
	// lock for its whole lifetime; exactly one of Commit or Rollback must
	// be called.
	Begin(ctx context.Context) (Tx, error)

	// FindOrderByNumber loads a committed order with its items and status
	// history. Returns (nil, nil) when no such order exists.
	FindOrderByNumber(ctx context.Context, number string) (*domain.Order, error)

	// IncrementVoucherUsage bumps the voucher's used counter. Called after
	// commit, outside the placement transaction.
	IncrementVoucherUsage(ctx context.Context, code string) error
}

// Tx is the transactional surface used while placing one order. Lookups
// named ForUpdate acquire (or, on backends without row locks, rely on the
// transaction's) exclusive access to the row until Commit/Rollback.
type Tx interface {
	FindActiveStore(ctx context.Context, id int64) (*domain.Store, error)
	FindProductForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	FindVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error)
	OrderNumberExists(ctx context.Context, code string) (bool, error)

	// InsertOrder persists the order, its items, and its initial status
	// history entry.
	InsertOrder(ctx context.Context, o *domain.Order) error

	// UpdateProductStock writes the new stock and sold counters for one
	// product row.
	UpdateProductStock(ctx context.Context, productID, stock, soldCount int64) error

	Commit() error
	Rollback() error
}
