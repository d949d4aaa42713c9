package domain

import "context"

// OrderRepository is the persistence boundary of the order-processing layer.
// The core reads orders through it and writes back status fields only.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrderByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus persists order/item statuses and appends new history entries.
	UpdateStatus(ctx context.Context, o *Order) error
}
