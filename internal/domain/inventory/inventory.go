package inventory

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInactive          = errors.New("inventory: product is not active")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrConflict          = errors.New("inventory: contention exhausted retries")
)

// ShortageError reports every requested line that current stock cannot
// cover. It unwraps to ErrInsufficientStock so callers can match either.
type ShortageError struct {
	ProductIDs []int64
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %d product(s) %v", len(e.ProductIDs), e.ProductIDs)
}

func (e *ShortageError) Unwrap() error { return ErrInsufficientStock }

// Record is the authoritative stock counter for one product.
// Quantity never goes negative: it is decremented only through a
// successful reservation and credited back only by cancellation.
type Record struct {
	ProductID int64
	Quantity  int
	Active    bool
	UpdatedAt time.Time
}

func NewRecord(productID int64, quantity int, active bool) (*Record, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Record{
		ProductID: productID,
		Quantity:  quantity,
		Active:    active,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Deduct removes stock, rejecting any request the counter cannot cover.
func (r *Record) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !r.Active {
		return ErrInactive
	}
	if quantity > r.Quantity {
		return ErrInsufficientStock
	}
	r.Quantity -= quantity
	r.touch()
	return nil
}

// Restore credits back previously deducted stock.
func (r *Record) Restore(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	r.Quantity += quantity
	r.touch()
	return nil
}

func (r *Record) touch() {
	r.UpdatedAt = time.Now().UTC()
}
