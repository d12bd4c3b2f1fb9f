package fulfillment

import (
	"context"
	"fmt"

	apporder "github.com/toystore/fulfillment/internal/application/order"
	domorder "github.com/toystore/fulfillment/internal/domain/order"
	domoutbox "github.com/toystore/fulfillment/internal/domain/outbox"
	"github.com/toystore/fulfillment/internal/observability"
)

const componentFulfillment = "fulfillment_worker"

// Worker stands in for the external fulfillment-confirmation system: it
// consumes confirmation requests from the bus and moves orders from
// pending to completed. Once it has run, cancellation is no longer
// possible for that order.
type Worker struct {
	orders     *apporder.Service
	subscriber domoutbox.Subscriber
	log        observability.Logger
}

func New(orders *apporder.Service, subscriber domoutbox.Subscriber, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		orders:     orders,
		subscriber: subscriber,
		log:        logger.With(observability.F("component", componentFulfillment)),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.orders == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderConfirmRequestedEvent{}.EventName(), w.handleConfirmRequested)
}

func (w *Worker) handleConfirmRequested(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderConfirmRequestedEvent)
	if !ok {
		return nil
	}

	if err := w.orders.Complete(ctx, evt.OrderID); err != nil {
		w.log.Warn("order_confirm_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("error", err.Error()),
		)
		return fmt.Errorf("fulfillment worker: complete order: %w", err)
	}

	w.log.Info("order_confirmed",
		observability.F("order_id", evt.OrderID),
	)
	return nil
}
