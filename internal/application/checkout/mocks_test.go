package checkout

import (
	"context"
	"fmt"
	"sync"

	dominv "github.com/toystore/fulfillment/internal/domain/inventory"
	domorder "github.com/toystore/fulfillment/internal/domain/order"
	domoutbox "github.com/toystore/fulfillment/internal/domain/outbox"
)

type stubIDGen struct{ id string }

func (g stubIDGen) NewID() string { return g.id }

type fakeSessions struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	loadErr error
	saveErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{blobs: make(map[string][]byte)}
}

func (s *fakeSessions) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.blobs[key], nil
}

func (s *fakeSessions) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.blobs[key] = data
	return nil
}

func (s *fakeSessions) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// fakeLedger is a minimal all-or-none stock counter with call recording.
type fakeLedger struct {
	mu       sync.Mutex
	stock    map[int64]int
	restored []dominv.Line
}

func newFakeLedger(stock map[int64]int) *fakeLedger {
	s := make(map[int64]int, len(stock))
	for k, v := range stock {
		s[k] = v
	}
	return &fakeLedger{stock: s}
}

func (f *fakeLedger) CheckAvailability(_ context.Context, productID int64, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID] >= quantity, nil
}

func (f *fakeLedger) ReserveAndDecrement(_ context.Context, lines []dominv.Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var shortage []int64
	for _, l := range lines {
		if f.stock[l.ProductID] < l.Quantity {
			shortage = append(shortage, l.ProductID)
		}
	}
	if len(shortage) > 0 {
		return &dominv.ShortageError{ProductIDs: shortage}
	}
	for _, l := range lines {
		f.stock[l.ProductID] -= l.Quantity
	}
	return nil
}

func (f *fakeLedger) Restore(_ context.Context, lines []dominv.Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range lines {
		f.stock[l.ProductID] += l.Quantity
		f.restored = append(f.restored, l)
	}
	return nil
}

func (f *fakeLedger) quantity(productID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID]
}

func (f *fakeLedger) restoredLines() []dominv.Line {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dominv.Line(nil), f.restored...)
}

// fakeOrders mirrors the in-memory repository's contract with an optional
// insert hook for fault injection.
type fakeOrders struct {
	mu          sync.Mutex
	orders      map[string]*domorder.Order
	idempotency map[string]string
	insertHook  func(*domorder.Order) error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		orders:      make(map[string]*domorder.Order),
		idempotency: make(map[string]string),
	}
}

func (r *fakeOrders) Insert(_ context.Context, o *domorder.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertHook != nil {
		if err := r.insertHook(o); err != nil {
			return err
		}
	}
	if _, exists := r.orders[o.ID]; exists {
		return domorder.ErrConflict
	}
	if o.IdempotencyKey != "" {
		if _, exists := r.idempotency[r.key(o.CustomerID, o.IdempotencyKey)]; exists {
			return domorder.ErrConflict
		}
	}
	r.orders[o.ID] = o.Clone()
	if o.IdempotencyKey != "" {
		r.idempotency[r.key(o.CustomerID, o.IdempotencyKey)] = o.ID
	}
	return nil
}

func (r *fakeOrders) Get(_ context.Context, id string) (*domorder.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domorder.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *fakeOrders) ListByCustomer(_ context.Context, customerID int64) ([]*domorder.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domorder.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

func (r *fakeOrders) FindByIdempotency(_ context.Context, customerID int64, key string) (*domorder.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.idempotency[r.key(customerID, key)]
	if !ok {
		return nil, domorder.ErrNotFound
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, domorder.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *fakeOrders) Mutate(_ context.Context, id string, fn func(*domorder.Order) error) (*domorder.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok {
		return nil, domorder.ErrNotFound
	}
	working := stored.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	r.orders[id] = working
	return working.Clone(), nil
}

func (r *fakeOrders) key(customerID int64, key string) string {
	return fmt.Sprintf("%d:%s", customerID, key)
}

func (r *fakeOrders) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) published() []domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domoutbox.Event(nil), p.events...)
}
