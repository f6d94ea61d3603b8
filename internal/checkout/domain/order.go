package domain

import "time"

// OrderStatus is the closed set of states an order moves through.
// Transitions outside the table below are rejected at validation time.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusReceived  OrderStatus = "RECEIVED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusReturned  OrderStatus = "RETURNED"
)

// transitions is the allowed next-state table. Cancellation is reachable
// while the order is still in the shop's hands; returns only after pickup.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusReceived},
	StatusReceived:  {StatusReturned},
	StatusCancelled: {},
	StatusReturned:  {},
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// StatusChange is one append-only entry in an order's history log.
type StatusChange struct {
	Status OrderStatus
	Note   string
	Actor  string
	At     time.Time
}

// OrderItem is one purchased line. UnitPrice is the snapshot taken at
// placement time; later catalog price changes never touch it.
type OrderItem struct {
	ID        int64
	ProductID int64
	Name      string
	SKU       string
	Quantity  int64
	UnitPrice int64
}

func (i OrderItem) Subtotal() int64 {
	return i.UnitPrice * i.Quantity
}

// Order is one purchase transaction. Number is the store-assigned
// human-readable identifier (XXXX-XXXX-XXXX); ID is the internal one.
// All monetary fields are in minor currency units.
type Order struct {
	ID            string
	Number        string
	StoreID       int64
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string
	Status        OrderStatus
	Subtotal      int64
	Discount      int64
	Total         int64
	VoucherCode   string
	Items         []OrderItem
	History       []StatusChange
	CreatedAt     time.Time
}

// Store is a pickup location. Only active stores accept orders.
type Store struct {
	ID      int64
	Name    string
	Address string
	Active  bool
}
