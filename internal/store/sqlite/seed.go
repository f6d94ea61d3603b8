package sqlite

import (
	"context"
	"fmt"
)

// Seed loads a small demo catalog for local development. It is a no-op
// when the stores table already has rows, so restarting with -seed is
// safe.
func (s *Store) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stores`).Scan(&count); err != nil {
		return fmt.Errorf("sqlite: seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	stmts := []string{
		`INSERT INTO stores (name, address, active) VALUES ('Centro', 'Av. Principal 123', 1)`,
		`INSERT INTO products (store_id, name, sku, price, discount, stock) VALUES
			(1, 'Cafe de Olla 250g', 'CAF-250', 120000, 0, 40),
			(1, 'Pan Dulce Box', 'PAN-BOX', 80000, 10, 25),
			(1, 'Chocolate Artesanal', 'CHO-ART', 150000, 0, 12)`,
		`INSERT INTO vouchers (code, type, discount, max_discount, min_purchase, max_uses, status) VALUES
			('BIENVENIDO', 'FIXED', 50000, 0, 200000, 0, 'ACTIVE'),
			('VERANO20', 'PERCENTAGE', 20, 40000, 0, 100, 'ACTIVE')`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlite: seed: %w", err)
		}
	}
	return nil
}
