package inventory

import "context"

// Line pairs a product with a quantity for multi-row ledger operations.
type Line struct {
	ProductID int64
	Quantity  int
}

// Ledger is the single gate for stock mutation.
//
// ReserveAndDecrement evaluates every line against current stock and
// either decrements all of them or none: on shortage it returns a
// *ShortageError listing the failing products and leaves every counter
// untouched. Restore is the cancellation path; it credits back exactly
// the quantities a prior ReserveAndDecrement removed for one order.
type Ledger interface {
	CheckAvailability(ctx context.Context, productID int64, quantity int) (bool, error)
	ReserveAndDecrement(ctx context.Context, lines []Line) error
	Restore(ctx context.Context, lines []Line) error
}
