package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	dominv "github.com/toystore/fulfillment/internal/domain/inventory"
	domain "github.com/toystore/fulfillment/internal/domain/order"
	domoutbox "github.com/toystore/fulfillment/internal/domain/outbox"
	"github.com/toystore/fulfillment/internal/observability"
	"github.com/toystore/fulfillment/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	orderService    = "order-service"
	useCaseCancel   = "order.cancel"
	useCaseComplete = "order.complete"
	spanPrefix      = "UC."
	publishTimeout  = 300 * time.Millisecond
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidState = domain.ErrInvalidState
	ErrRepository   = errors.New("order: repository failure")
)

// Service answers order queries and runs the post-creation lifecycle.
// Cancellation restores stock and flips the status inside one repository
// mutation, so neither effect is ever observable without the other.
type Service struct {
	repo      domain.Repository
	ledger    dominv.Ledger
	publisher domoutbox.Publisher
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewService(repo domain.Repository, ledger dominv.Ledger, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Service{
		repo:         repo,
		ledger:       ledger,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", orderService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

// Get returns the order only to its owner. Foreign orders and missing
// orders are indistinguishable to the caller.
func (s *Service) Get(ctx context.Context, orderID string, customerID int64) (*domain.Order, error) {
	if orderID == "" || customerID <= 0 {
		return nil, domain.ErrNotFound
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// ListByCustomer returns the customer's orders, most recent first.
func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Order, error) {
	if customerID <= 0 {
		return nil, nil
	}
	orders, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return orders, nil
}

// Cancel moves a pending order to cancelled and credits its lines back to
// the ledger. Both happen under the repository's mutation lock: a second
// cancel finds the order already cancelled and gets ErrInvalidState, which
// is what keeps the restore idempotent per order.
func (s *Service) Cancel(ctx context.Context, orderID string, customerID int64) (err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseCancel))

	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"CancelOrder",
		attribute.String("use_case", useCaseCancel),
		attribute.String("order.id", orderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}
		s.reqCounter.Add(1,
			observability.L("use_case", useCaseCancel),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCaseCancel),
		)

		fields := []observability.Field{
			observability.F("order_id", orderID),
			observability.F("outcome", outcome),
			observability.F("status", statusText),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if orderID == "" || customerID <= 0 {
		outcome, statusText = "error", "NOT_FOUND"
		return domain.ErrNotFound
	}

	cancelled, err := s.repo.Mutate(ctx, orderID, func(o *domain.Order) error {
		if o.CustomerID != customerID {
			// Ownership mismatch looks identical to a missing order.
			return domain.ErrNotFound
		}
		if err := o.Cancel(); err != nil {
			return err
		}
		lines := make([]dominv.Line, 0, len(o.Lines))
		for _, l := range o.Lines {
			lines = append(lines, dominv.Line{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		if err := s.ledger.Restore(ctx, lines); err != nil {
			return fmt.Errorf("order: restore stock: %w", err)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			outcome, statusText = "error", "NOT_FOUND"
		case errors.Is(err, domain.ErrInvalidState):
			outcome, statusText = "error", "INVALID_STATE"
		default:
			outcome, statusText = "error", "CANCEL_FAILED"
		}
		return err
	}

	s.publishEvent(ctx, logger, domain.NewOrderCancelledEvent(cancelled))
	return nil
}

// Complete finalises a pending order. It is driven by the fulfillment
// confirmation collaborator, never by the customer-facing flow, and there
// is no way back out of it.
func (s *Service) Complete(ctx context.Context, orderID string) error {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseComplete))

	completed, err := s.repo.Mutate(ctx, orderID, func(o *domain.Order) error {
		return o.Complete()
	})
	if err != nil {
		return err
	}

	logger.Info("order_completed", observability.F("order_id", orderID))
	s.publishEvent(ctx, logger, domain.NewOrderCompletedEvent(completed))
	return nil
}

// RequestConfirmation hands a pending order over to the confirmation
// collaborator via the event bus. Ownership rules match Get.
func (s *Service) RequestConfirmation(ctx context.Context, orderID string, customerID int64) error {
	o, err := s.Get(ctx, orderID, customerID)
	if err != nil {
		return err
	}
	if o.Status != domain.StatusPending {
		return domain.ErrInvalidState
	}
	logger := logctx.FromOr(ctx, s.log)
	s.publishEvent(ctx, logger, domain.NewOrderConfirmRequestedEvent(o.ID))
	return nil
}

func (s *Service) publishEvent(ctx context.Context, logger observability.Logger, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
