package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: already exists")
	ErrInvalidState    = errors.New("order: invalid state transition")
	ErrNoLines         = errors.New("order: at least one line is required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount   = errors.New("order: amount must be zero or greater")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Line is the permanent record of one fulfilled cart line. UnitPrice is
// the price captured when the product entered the cart and survives later
// catalog price changes or product deletion.
type Line struct {
	ProductID int64
	Quantity  int
	UnitPrice int64
}

// Order is immutable after creation except for status transitions.
// TotalAmount is fixed from the cart snapshot and never recomputed.
type Order struct {
	ID             string
	CustomerID     int64
	IdempotencyKey string
	Status         Status
	TotalAmount    int64
	PaymentMethod  string
	Lines          []Line
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func New(id string, customerID int64, idempotencyKey, paymentMethod string, lines []Line, totalAmount int64) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	if totalAmount < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Order{
		ID:             id,
		CustomerID:     customerID,
		IdempotencyKey: idempotencyKey,
		Status:         StatusPending,
		TotalAmount:    totalAmount,
		PaymentMethod:  paymentMethod,
		Lines:          append([]Line(nil), lines...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Cancel moves the order to its cancelled terminal state.
func (o *Order) Cancel() error {
	return o.apply(func(s state) (state, error) { return s.cancel(o) })
}

// Complete moves the order to its completed terminal state.
func (o *Order) Complete() error {
	return o.apply(func(s state) (state, error) { return s.complete(o) })
}

func (o *Order) apply(transition func(state) (state, error)) error {
	current, err := stateFor(o.Status)
	if err != nil {
		return err
	}
	next, err := transition(current)
	if err != nil {
		return err
	}
	o.Status = next.status()
	o.touch()
	return nil
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy so repository callers never share line slices.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]Line(nil), o.Lines...)
	return &clone
}
