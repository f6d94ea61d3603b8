// Package sqlite provides the SQLite-backed implementation of
// ports.Repository and ports.Tx.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — important because order lookups run while placements are
// committing. Write transactions are opened IMMEDIATE (via the _txlock DSN
// parameter), so the write lock is acquired at Begin rather than at the
// first write: SQLite has no row-level locks, and taking the database
// write lock up front is the strictly coarser equivalent of the per-row
// exclusive locks a server database would use. Every availability
// guarantee the placement flow needs (no oversell, block-then-recheck)
// follows from it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jcmexdev/storefront-checkout/internal/checkout/domain"
	"github.com/jcmexdev/storefront-checkout/internal/checkout/ports"

	// Register the pure-Go SQLite driver.
	// We use modernc.org/sqlite instead of mattn/go-sqlite3 to avoid CGO
	// requirements, making it easier to build and run in Docker (Alpine).
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. Monetary columns are
// INTEGER minor currency units; timestamps are RFC3339 TEXT (SQLite has
// no native datetime type).
const schema = `
CREATE TABLE IF NOT EXISTS stores (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    name     TEXT    NOT NULL,
    address  TEXT    NOT NULL DEFAULT '',
    active   INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS products (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    store_id    INTEGER NOT NULL REFERENCES stores(id),
    name        TEXT    NOT NULL,
    sku         TEXT    NOT NULL UNIQUE,
    price       INTEGER NOT NULL,
    discount    INTEGER NOT NULL DEFAULT 0,

    -- The CHECK is a backstop: the placement flow validates under its
    -- transaction before every decrement, so a violation here means a bug.
    stock       INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
    sold_count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS vouchers (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    code          TEXT    NOT NULL UNIQUE,
    type          TEXT    NOT NULL,
    discount      INTEGER NOT NULL,
    max_discount  INTEGER NOT NULL DEFAULT 0,
    min_purchase  INTEGER NOT NULL DEFAULT 0,
    max_uses      INTEGER NOT NULL DEFAULT 0,
    used_count    INTEGER NOT NULL DEFAULT 0,
    expires_at    TEXT,
    status        TEXT    NOT NULL DEFAULT 'ACTIVE'
);

CREATE TABLE IF NOT EXISTS orders (
    -- Internal id: a UUID minted by the orchestrator.
    id              TEXT    PRIMARY KEY,

    -- Human-readable identifier, XXXX-XXXX-XXXX. The UNIQUE index is the
    -- final line of defence behind the in-transaction existence checks.
    number          TEXT    NOT NULL UNIQUE,

    store_id        INTEGER NOT NULL REFERENCES stores(id),
    customer_name   TEXT    NOT NULL,
    customer_phone  TEXT    NOT NULL,
    customer_email  TEXT    NOT NULL DEFAULT '',
    notes           TEXT    NOT NULL DEFAULT '',
    status          TEXT    NOT NULL,
    subtotal        INTEGER NOT NULL,
    discount        INTEGER NOT NULL DEFAULT 0,
    total           INTEGER NOT NULL,
    voucher_code    TEXT,
    created_at      TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    TEXT    NOT NULL REFERENCES orders(id),
    product_id  INTEGER NOT NULL,
    name        TEXT    NOT NULL,
    sku         TEXT    NOT NULL,
    quantity    INTEGER NOT NULL,

    -- Price snapshot at purchase time. Deliberately NOT a foreign-key
    -- lookup into products: later catalog changes must never rewrite
    -- history.
    unit_price  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS order_status_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    TEXT    NOT NULL REFERENCES orders(id),
    status      TEXT    NOT NULL,
    note        TEXT    NOT NULL DEFAULT '',
    actor       TEXT    NOT NULL DEFAULT '',
    created_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
CREATE INDEX IF NOT EXISTS idx_order_status_history_order_id ON order_status_history(order_id, created_at);
`

// Store implements ports.Repository on SQLite.
type Store struct {
	db *sql.DB
}

var _ ports.Repository = (*Store)(nil)

// Open opens (or creates) the SQLite database at the given path and
// applies the schema.
//
//	store, err := sqlite.Open("./data/checkout.db")
func Open(path string) (*Store, error) {
	// The pure-Go driver uses _pragma query parameters to configure connection state.
	// WAL enables concurrent readers. foreign_keys=on enforces integrity.
	// busy_timeout waits for locks instead of failing immediately — this is
	// the "lock-wait timeout" of the placement flow: a transaction that
	// cannot get the write lock within it fails with SQLITE_BUSY, surfaced
	// to callers as the retryable conflict error.
	// _txlock=immediate makes BeginTx take the write lock up front.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// Use "sqlite", not "sqlite3" for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection. Placement
	// transactions therefore queue on the pool before they ever see
	// SQLITE_BUSY, which keeps contention failures rare.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin opens the placement write transaction.
func (s *Store) Begin(ctx context.Context) (ports.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("begin", err)
	}
	return &Tx{tx: tx}, nil
}

// FindOrderByNumber loads a committed order with items and history.
// Returns (nil, nil) when the number is unknown.
func (s *Store) FindOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	const q = `
		SELECT id, number, store_id, customer_name, customer_phone, customer_email,
		       notes, status, subtotal, discount, total, COALESCE(voucher_code, ''), created_at
		FROM   orders
		WHERE  number = ?`

	var o domain.Order
	var createdAt string
	err := s.db.QueryRowContext(ctx, q, number).Scan(
		&o.ID, &o.Number, &o.StoreID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.Notes, &o.Status, &o.Subtotal, &o.Discount, &o.Total, &o.VoucherCode, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("find order", err)
	}
	if o.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}

	if o.Items, err = s.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.History, err = s.loadHistory(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// IncrementVoucherUsage bumps used_count by one. It runs on its own
// connection, outside any placement transaction — see the orchestrator for
// why redemption is deliberately non-transactional.
func (s *Store) IncrementVoucherUsage(ctx context.Context, code string) error {
	const q = `UPDATE vouchers SET used_count = used_count + 1 WHERE code = ?`
	res, err := s.db.ExecContext(ctx, q, code)
	if err != nil {
		return mapError("increment voucher usage", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: increment voucher usage: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: voucher %q not found", code)
	}
	return nil
}

func (s *Store) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	const q = `
		SELECT id, product_id, name, sku, quantity, unit_price
		FROM   order_items
		WHERE  order_id = ?
		ORDER  BY id`

	rows, err := s.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, mapError("load order items", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.SKU, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("sqlite: scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) loadHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	const q = `
		SELECT status, note, actor, created_at
		FROM   order_status_history
		WHERE  order_id = ?
		ORDER  BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, mapError("load status history", err)
	}
	defer rows.Close()

	var history []domain.StatusChange
	for rows.Next() {
		var h domain.StatusChange
		var at string
		if err := rows.Scan(&h.Status, &h.Note, &h.Actor, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan status history: %w", err)
		}
		if h.At, err = parseRFC3339(at); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// mapError wraps driver errors, translating lock-wait timeouts into the
// retryable conflict kind so the HTTP layer can answer 503 + Retry-After.
// The modernc driver exposes busy conditions only through the error text,
// hence the substring checks.
func mapError(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return domain.Conflict("store is busy, please retry")
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

// nullableString returns nil for empty strings so SQLite stores NULL
// instead of an empty TEXT.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
