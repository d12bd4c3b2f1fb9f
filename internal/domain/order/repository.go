package order

import "context"

// Repository persists orders. Implementations must return detached copies;
// callers never observe shared mutable state.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// ListByCustomer returns the customer's orders, most recent first.
	ListByCustomer(ctx context.Context, customerID int64) ([]*Order, error)
	FindByIdempotency(ctx context.Context, customerID int64, key string) (*Order, error)
	// Mutate runs fn on the stored order under the store's write lock and
	// persists the result when fn returns nil. The callback is the
	// transactional boundary for status transitions: everything fn does is
	// applied atomically or not at all.
	Mutate(ctx context.Context, id string, fn func(*Order) error) (*Order, error)
}
