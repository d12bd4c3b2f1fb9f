package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domcart "github.com/toystore/fulfillment/internal/domain/cart"
	domcatalog "github.com/toystore/fulfillment/internal/domain/catalog"
	dominv "github.com/toystore/fulfillment/internal/domain/inventory"
	domorder "github.com/toystore/fulfillment/internal/domain/order"
)

type fixture struct {
	uc        *UseCase
	orders    *fakeOrders
	ledger    *fakeLedger
	sessions  *fakeSessions
	publisher *capturePublisher
}

func newFixture(t *testing.T, stock map[int64]int) *fixture {
	t.Helper()
	f := &fixture{
		orders:    newFakeOrders(),
		ledger:    newFakeLedger(stock),
		sessions:  newFakeSessions(),
		publisher: &capturePublisher{},
	}
	f.uc = NewUseCase(f.orders, f.ledger, f.sessions, stubIDGen{id: "ord-1"}, f.publisher, nil)
	return f
}

func (f *fixture) seedCart(t *testing.T, sessionKey string, lines ...domcart.Line) {
	t.Helper()
	c := domcart.New()
	for _, l := range lines {
		p := domcatalog.Product{ID: l.ProductID, Name: l.ProductName, Price: l.UnitPrice, Active: true}
		require.NoError(t, c.Add(p, l.Quantity))
	}
	require.NoError(t, f.sessions.Save(context.Background(), sessionKey, c.Encode()))
}

func (f *fixture) cart(t *testing.T, sessionKey string) *domcart.Cart {
	t.Helper()
	data, err := f.sessions.Load(context.Background(), sessionKey)
	require.NoError(t, err)
	return domcart.Decode(data)
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture(t, map[int64]int{1: 5})
	f.seedCart(t, "sess-1", domcart.Line{ProductID: 1, ProductName: "Wooden Train Set", UnitPrice: 1000, Quantity: 2})

	result, err := f.uc.Checkout(context.Background(), Input{
		CustomerID: 7,
		SessionKey: "sess-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "ord-1", result.OrderID)
	assert.Equal(t, domorder.StatusPending, result.Status)
	assert.Equal(t, int64(2000), result.TotalAmount)

	// Stock decremented, cart cleared, order persisted.
	assert.Equal(t, 3, f.ledger.quantity(1))
	assert.True(t, f.cart(t, "sess-1").IsEmpty())

	stored, err := f.orders.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "COD", stored.PaymentMethod)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, int64(1000), stored.Lines[0].UnitPrice)

	events := f.publisher.published()
	require.Len(t, events, 1)
	placed, ok := events[0].(domorder.OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, "ord-1", placed.OrderID)
	assert.Equal(t, int64(7), placed.CustomerID)
}

func TestCheckout_Unauthenticated(t *testing.T) {
	f := newFixture(t, map[int64]int{1: 5})
	f.seedCart(t, "sess-1", domcart.Line{ProductID: 1, UnitPrice: 1000, Quantity: 1})

	_, err := f.uc.Checkout(context.Background(), Input{CustomerID: 0, SessionKey: "sess-1"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 5, f.ledger.quantity(1))
	assert.Equal(t, 0, f.orders.count())
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t, map[int64]int{1: 5})

	_, err := f.uc.Checkout(context.Background(), Input{CustomerID: 7, SessionKey: "sess-1"})
	assert.ErrorIs(t, err, ErrEmptyCart)

	// A checkout with no session at all behaves the same way.
	_, err = f.uc.Checkout(context.Background(), Input{CustomerID: 7, SessionKey: ""})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_Shortage_LeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t, map[int64]int{1: 1, 2: 10})
	f.seedCart(t, "sess-1",
		domcart.Line{ProductID: 1, UnitPrice: 1000, Quantity: 2},
		domcart.Line{ProductID: 2, UnitPrice: 500, Quantity: 1},
	)

	_, err := f.uc.Checkout(context.Background(), Input{CustomerID: 7, SessionKey: "sess-1"})

	var shortage *dominv.ShortageError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, []int64{1}, shortage.ProductIDs)

	// Ledger, cart, and order store are all unchanged. The customer can
	// adjust the cart and retry.
	assert.Equal(t, 1, f.ledger.quantity(1))
	assert.Equal(t, 10, f.ledger.quantity(2))
	assert.Equal(t, 3, f.cart(t, "sess-1").ItemCount())
	assert.Equal(t, 0, f.orders.count())
	assert.Empty(t, f.publisher.published())
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	f := newFixture(t, map[int64]int{1: 5})
	f.seedCart(t, "sess-1", domcart.Line{ProductID: 1, UnitPrice: 1000, Quantity: 2})

	input := Input{CustomerID: 7, SessionKey: "sess-1", IdempotencyKey: "retry-1"}

	first, err := f.uc.Checkout(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 3, f.ledger.quantity(1))

	// Same key again, even with a refilled cart, replays the stored order
	// and does not touch stock.
	f.seedCart(t, "sess-1", domcart.Line{ProductID: 1, UnitPrice: 1000, Quantity: 2})
	second, err := f.uc.Checkout(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.TotalAmount, second.TotalAmount)
	assert.Equal(t, 3, f.ledger.quantity(1))
	assert.Equal(t, 1, f.orders.count())
}

func TestCheckout_InsertFailure_CompensatesStock(t *testing.T) {
	f := newFixture(t, map[int64]int{1: 5})
	f.seedCart(t, "sess-1", domcart.Line{ProductID: 1, UnitPrice: 1000, Quantity: 2})

	boom := errors.New("store down")
	f.orders.insertHook = func(*domorder.Order) error { return boom }

	_, err := f.uc.Checkout(context.Background(), Input{CustomerID: 7, SessionKey: "sess-1"})
	require.ErrorIs(t, err, ErrRepository)
	assert.ErrorIs(t, err, boom)

	// The decrement was rolled back and the cart survived.
	assert.Equal(t, 5, f.ledger.quantity(1))
	assert.Equal(t, []dominv.Line{{ProductID: 1, Quantity: 2}}, f.ledger.restoredLines())
	assert.Equal(t, 2, f.cart(t, "sess-1").ItemCount())
	assert.Empty(t, f.publisher.published())
}

func TestCheckout_InsertConflict_ReplaysExistingOrder(t *testing.T) {
	f := newFixture(t, map[int64]int{1: 5})
	f.seedCart(t, "sess-1", domcart.Line{ProductID: 1, UnitPrice: 1000, Quantity: 2})

	// A racing duplicate committed between the idempotency lookup and the
	// insert. The conflict path must compensate the decrement and hand
	// back the winner's order.
	winner, err := domorder.New("ord-0", 7, "retry-1", "COD", []domorder.Line{
		{ProductID: 1, Quantity: 2, UnitPrice: 1000},
	}, 2000)
	require.NoError(t, err)

	f.orders.insertHook = func(o *domorder.Order) error {
		f.orders.insertHook = nil
		f.orders.orders[winner.ID] = winner
		f.orders.idempotency[f.orders.key(7, "retry-1")] = winner.ID
		return domorder.ErrConflict
	}

	result, err := f.uc.Checkout(context.Background(), Input{
		CustomerID:     7,
		SessionKey:     "sess-1",
		IdempotencyKey: "retry-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "ord-0", result.OrderID)
	assert.Equal(t, 5, f.ledger.quantity(1))
	assert.Len(t, f.ledger.restoredLines(), 1)
}

func TestCheckout_UsesProvidedPaymentMethod(t *testing.T) {
	f := newFixture(t, map[int64]int{1: 5})
	f.seedCart(t, "sess-1", domcart.Line{ProductID: 1, UnitPrice: 1000, Quantity: 1})

	_, err := f.uc.Checkout(context.Background(), Input{
		CustomerID:    7,
		SessionKey:    "sess-1",
		PaymentMethod: "CARD",
	})
	require.NoError(t, err)

	stored, err := f.orders.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "CARD", stored.PaymentMethod)
}

func TestCheckout_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t, map[int64]int{1: 5})
	f.seedCart(t, "sess-1", domcart.Line{ProductID: 1, UnitPrice: 1000, Quantity: 1})
	f.publisher.err = errors.New("bus closed")

	result, err := f.uc.Checkout(context.Background(), Input{CustomerID: 7, SessionKey: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", result.OrderID)
	assert.Equal(t, 4, f.ledger.quantity(1))
}
