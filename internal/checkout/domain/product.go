package domain

// Product is the transient view of a catalog record this core works with
// while it holds the row locked: enough to price a line and mutate stock.
// The catalog itself is owned elsewhere.
type Product struct {
	ID        int64
	StoreID   int64
	Name      string
	SKU       string
	Price     int64
	Discount  int // percentage, 0-100
	Stock     int64
	SoldCount int64
}

// UnitPrice returns the price a buyer pays for one unit right now, with
// the product-level percentage discount applied. This is the value frozen
// onto OrderItem.UnitPrice at placement.
func (p Product) UnitPrice() int64 {
	if p.Discount > 0 {
		return p.Price - p.Price*int64(p.Discount)/100
	}
	return p.Price
}
