package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jcmexdev/storefront-checkout/internal/checkout/domain"
	"github.com/jcmexdev/storefront-checkout/internal/checkout/ports"
)

// Tx implements ports.Tx on one SQLite write transaction. Because the
// transaction was opened IMMEDIATE, this process already holds the
// database write lock; the ForUpdate lookups are plain SELECTs that the
// lock makes exclusive.
type Tx struct {
	tx *sql.Tx
}

var _ ports.Tx = (*Tx)(nil)

func (t *Tx) FindActiveStore(ctx context.Context, id int64) (*domain.Store, error) {
	const q = `SELECT id, name, address, active FROM stores WHERE id = ? AND active = 1`

	var s domain.Store
	err := t.tx.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.Name, &s.Address, &s.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("find store", err)
	}
	return &s, nil
}

func (t *Tx) FindProductForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	const q = `
		SELECT id, store_id, name, sku, price, discount, stock, sold_count
		FROM   products
		WHERE  id = ?`

	var p domain.Product
	err := t.tx.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.StoreID, &p.Name, &p.SKU, &p.Price, &p.Discount, &p.Stock, &p.SoldCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("find product", err)
	}
	return &p, nil
}

func (t *Tx) FindVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	const q = `
		SELECT id, code, type, discount, max_discount, min_purchase, max_uses,
		       used_count, expires_at, status
		FROM   vouchers
		WHERE  code = ?`

	var v domain.Voucher
	var expiresAt sql.NullString
	err := t.tx.QueryRowContext(ctx, q, code).Scan(
		&v.ID, &v.Code, &v.Type, &v.Discount, &v.MaxDiscount, &v.MinPurchase,
		&v.MaxUses, &v.UsedCount, &expiresAt, &v.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("find voucher", err)
	}
	if expiresAt.Valid {
		ts, err := parseRFC3339(expiresAt.String)
		if err != nil {
			return nil, err
		}
		v.ExpiresAt = &ts
	}
	return &v, nil
}

func (t *Tx) OrderNumberExists(ctx context.Context, code string) (bool, error) {
	const q = `SELECT 1 FROM orders WHERE number = ?`

	var one int
	err := t.tx.QueryRowContext(ctx, q, code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapError("check order number", err)
	}
	return true, nil
}

// InsertOrder writes the order row, its items, and its initial status
// history entries in one go. All of it sits inside the surrounding
// transaction, so a failure anywhere leaves nothing behind.
func (t *Tx) InsertOrder(ctx context.Context, o *domain.Order) error {
	const orderQ = `
		INSERT INTO orders
			(id, number, store_id, customer_name, customer_phone, customer_email,
			 notes, status, subtotal, discount, total, voucher_code, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.tx.ExecContext(ctx, orderQ,
		o.ID, o.Number, o.StoreID, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.Notes, string(o.Status), o.Subtotal, o.Discount, o.Total,
		nullableString(o.VoucherCode),
		formatRFC3339(o.CreatedAt),
	)
	if err != nil {
		return mapError("insert order", err)
	}

	const itemQ = `
		INSERT INTO order_items (order_id, product_id, name, sku, quantity, unit_price)
		VALUES (?, ?, ?, ?, ?, ?)`

	for _, it := range o.Items {
		_, err := t.tx.ExecContext(ctx, itemQ, o.ID, it.ProductID, it.Name, it.SKU, it.Quantity, it.UnitPrice)
		if err != nil {
			return mapError("insert order item", err)
		}
	}

	const historyQ = `
		INSERT INTO order_status_history (order_id, status, note, actor, created_at)
		VALUES (?, ?, ?, ?, ?)`

	for _, h := range o.History {
		_, err := t.tx.ExecContext(ctx, historyQ, o.ID, string(h.Status), h.Note, h.Actor, formatRFC3339(h.At))
		if err != nil {
			return mapError("insert status history", err)
		}
	}
	return nil
}

func (t *Tx) UpdateProductStock(ctx context.Context, productID, stock, soldCount int64) error {
	const q = `UPDATE products SET stock = ?, sold_count = ? WHERE id = ?`

	res, err := t.tx.ExecContext(ctx, q, stock, soldCount, productID)
	if err != nil {
		return mapError("update product stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update product stock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: product %d vanished mid-transaction", productID)
	}
	return nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return mapError("commit", err)
	}
	return nil
}

func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func formatRFC3339(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999999Z")
}
