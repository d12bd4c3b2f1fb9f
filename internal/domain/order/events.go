package order

import "time"

// OrderPlacedEvent is emitted after checkout commits the order and the
// stock decrement together.
type OrderPlacedEvent struct {
	OrderID     string
	CustomerID  int64
	TotalAmount int64
	LineCount   int
	OccurredAt  time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount,
		LineCount:   len(o.Lines),
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after a cancellation has restored stock
// and flipped the order to its cancelled state.
type OrderCancelledEvent struct {
	OrderID       string
	CustomerID    int64
	RestoredUnits int
	OccurredAt    time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	units := 0
	for _, l := range o.Lines {
		units += l.Quantity
	}
	return OrderCancelledEvent{
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		RestoredUnits: units,
		OccurredAt:    time.Now().UTC(),
	}
}

// OrderConfirmRequestedEvent asks the fulfillment collaborator to confirm
// a pending order. Completion happens outside the checkout path.
type OrderConfirmRequestedEvent struct {
	OrderID    string
	OccurredAt time.Time
}

func (OrderConfirmRequestedEvent) EventName() string { return "order.confirm_requested" }

func NewOrderConfirmRequestedEvent(orderID string) OrderConfirmRequestedEvent {
	return OrderConfirmRequestedEvent{
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCompletedEvent is emitted once the fulfillment collaborator has
// confirmed an order.
type OrderCompletedEvent struct {
	OrderID    string
	OccurredAt time.Time
}

func (OrderCompletedEvent) EventName() string { return "order.completed" }

func NewOrderCompletedEvent(o *Order) OrderCompletedEvent {
	return OrderCompletedEvent{
		OrderID:    o.ID,
		OccurredAt: time.Now().UTC(),
	}
}
