package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcart "github.com/toystore/fulfillment/internal/domain/cart"
	dominv "github.com/toystore/fulfillment/internal/domain/inventory"
	domorder "github.com/toystore/fulfillment/internal/domain/order"
	domoutbox "github.com/toystore/fulfillment/internal/domain/outbox"
	"github.com/toystore/fulfillment/internal/domain/session"
	"github.com/toystore/fulfillment/internal/observability"
	"github.com/toystore/fulfillment/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	checkoutService      = "checkout-service"
	useCaseCheckout      = "checkout.place_order"
	spanPrefix           = "UC."
	publishPeer          = "outbox"
	publishEndpoint      = "order.placed"
	publishTimeout       = 300 * time.Millisecond
	defaultPaymentMethod = "COD"
)

var (
	ErrEmptyCart       = errors.New("checkout: cart is empty")
	ErrUnauthenticated = errors.New("checkout: customer is not authenticated")
	ErrRepository      = errors.New("checkout: repository failure")
)

type IDGenerator interface {
	NewID() string
}

// UseCase turns a session's cart into a committed order. The stock
// decrement and the order insert form one unit of work: an insert failure
// compensates the decrement before the error surfaces, so stock is never
// short without a matching order.
type UseCase struct {
	orders    domorder.Repository
	ledger    dominv.Ledger
	sessions  session.Store
	idGen     IDGenerator
	publisher domoutbox.Publisher
	tel       observability.Observability

	// Base logger with fixed fields prebound (vendor must remain hidden).
	log observability.Logger
	// RED metrics (supplied via DI; do not instantiate inside methods).
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

// NewUseCase wires the dependencies required to execute checkout.
func NewUseCase(
	orders domorder.Repository,
	ledger dominv.Ledger,
	sessions session.Store,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *UseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLog := tel.Logger().With(
		observability.F("service", checkoutService),
	)

	metrics := tel.Metrics()
	return &UseCase{
		orders:       orders,
		ledger:       ledger,
		sessions:     sessions,
		idGen:        idGen,
		publisher:    publisher,
		tel:          tel,
		log:          baseLog,
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

type Input struct {
	CustomerID     int64
	SessionKey     string
	PaymentMethod  string
	IdempotencyKey string
}

type Result struct {
	OrderID     string
	Status      domorder.Status
	TotalAmount int64
}

// Checkout validates the cart snapshot, reserves stock, persists the order
// and clears the cart, in that order. A rejected checkout leaves ledger
// and cart exactly as they were.
func (uc *UseCase) Checkout(ctx context.Context, input Input) (_ *Result, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseCheckout))

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"Checkout",
		attribute.String("use_case", useCaseCheckout),
		attribute.Int64("order.customer_id", input.CustomerID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var orderID string
	var publishErr error

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseCheckout),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseCheckout),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}

		logger.Info("use_case_done", fields...)
	}()

	if input.CustomerID <= 0 {
		outcome, statusText = "error", "UNAUTHENTICATED"
		return nil, ErrUnauthenticated
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	// A resubmitted request replays the prior result instead of touching
	// stock again.
	if input.IdempotencyKey != "" {
		existing, repoErr := uc.orders.FindByIdempotency(ctx, input.CustomerID, input.IdempotencyKey)
		switch {
		case repoErr == nil:
			orderID = existing.ID
			statusText = "IDEMPOTENT_REPLAY"
			span.AddEvent("order.idempotent_replay",
				trace.WithAttributes(attribute.String("order.id", orderID)),
			)
			return &Result{OrderID: existing.ID, Status: existing.Status, TotalAmount: existing.TotalAmount}, nil
		case errors.Is(repoErr, domorder.ErrNotFound):
			// continue
		default:
			outcome, statusText = "error", "IDEMPOTENCY_LOOKUP_FAILED"
			return nil, fmt.Errorf("%w: %w", ErrRepository, repoErr)
		}
	}

	snapshot, err := uc.loadSnapshot(ctx, input.SessionKey)
	if err != nil {
		outcome, statusText = "error", "SESSION_LOAD_FAILED"
		return nil, err
	}
	if len(snapshot) == 0 {
		outcome, statusText = "error", "EMPTY_CART"
		return nil, ErrEmptyCart
	}

	reserve := make([]dominv.Line, 0, len(snapshot))
	orderLines := make([]domorder.Line, 0, len(snapshot))
	var total int64
	for _, l := range snapshot {
		reserve = append(reserve, dominv.Line{ProductID: l.ProductID, Quantity: l.Quantity})
		orderLines = append(orderLines, domorder.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
		total += l.Subtotal()
	}

	if err := uc.ledger.ReserveAndDecrement(ctx, reserve); err != nil {
		var shortage *dominv.ShortageError
		if errors.As(err, &shortage) {
			outcome, statusText = "error", "INSUFFICIENT_STOCK"
			span.AddEvent("checkout.shortage",
				trace.WithAttributes(attribute.Int("shortage.products", len(shortage.ProductIDs))),
			)
			return nil, err
		}
		outcome, statusText = "error", "RESERVE_FAILED"
		return nil, fmt.Errorf("checkout: reserve stock: %w", err)
	}

	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = defaultPaymentMethod
	}

	orderID = uc.idGen.NewID()
	entity, err := domorder.New(orderID, input.CustomerID, input.IdempotencyKey, paymentMethod, orderLines, total)
	if err != nil {
		uc.compensate(ctx, logger, reserve)
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("checkout: construct order: %w", err)
	}

	if err := uc.orders.Insert(ctx, entity); err != nil {
		// The decrement already happened; roll it back before reporting,
		// whatever the outcome of the conflict handling below.
		uc.compensate(ctx, logger, reserve)

		if errors.Is(err, domorder.ErrConflict) && input.IdempotencyKey != "" {
			if existing, lookupErr := uc.orders.FindByIdempotency(ctx, input.CustomerID, input.IdempotencyKey); lookupErr == nil {
				orderID = existing.ID
				statusText = "IDEMPOTENT_REPLAY"
				span.AddEvent("order.idempotent_replay",
					trace.WithAttributes(attribute.String("order.id", orderID)),
				)
				return &Result{OrderID: existing.ID, Status: existing.Status, TotalAmount: existing.TotalAmount}, nil
			}
		}
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	// The combined commit succeeded; only now does the cart go away. A
	// failed session save is logged but does not undo the order.
	if clearErr := uc.sessions.Save(ctx, input.SessionKey, domcart.New().Encode()); clearErr != nil {
		logger.Warn("cart_clear_failed",
			observability.F("order_id", orderID),
			observability.F("error", clearErr.Error()),
		)
	}

	publishErr = uc.publish(ctx, domorder.NewOrderPlacedEvent(entity))
	if publishErr != nil {
		statusText = "EVENT_PUBLISH_FAILED"
	}

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.placed",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)

	return &Result{OrderID: entity.ID, Status: entity.Status, TotalAmount: entity.TotalAmount}, nil
}

func (uc *UseCase) loadSnapshot(ctx context.Context, sessionKey string) ([]domcart.Line, error) {
	if sessionKey == "" {
		return nil, nil
	}
	data, err := uc.sessions.Load(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("checkout: session load: %w", err)
	}
	return domcart.Decode(data).Snapshot(), nil
}

// compensate credits back a decrement whose order never got persisted.
func (uc *UseCase) compensate(ctx context.Context, logger observability.Logger, lines []dominv.Line) {
	if err := uc.ledger.Restore(context.WithoutCancel(ctx), lines); err != nil {
		logger.Error("stock_compensation_failed",
			observability.F("error", err.Error()),
		)
	}
}

func (uc *UseCase) publish(ctx context.Context, e domoutbox.Event) error {
	if uc.publisher == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	pubStart := time.Now()
	pubOutcome := "success"

	err := uc.publisher.Publish(pubCtx, e)
	if err != nil {
		pubOutcome = "error"
	}

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", publishEndpoint),
		observability.L("outcome", pubOutcome),
	)
	uc.extHistogram.Observe(time.Since(pubStart).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", publishEndpoint),
	)
	return err
}
