package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/toystore/fulfillment/internal/domain/order"
)

// OrderRepository is an in-memory order store. Clones cross the boundary in
// both directions so callers never share state with the map. The write lock
// doubles as the transactional boundary for Mutate.
type OrderRepository struct {
	mu          sync.RWMutex
	orders      map[string]*domain.Order
	idempotency map[string]string // customerID:key -> orderID
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:      make(map[string]*domain.Order),
		idempotency: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}

	if key := order.IdempotencyKey; key != "" {
		if existingID, exists := r.idempotency[idemKey(order.CustomerID, key)]; exists {
			if _, ok := r.orders[existingID]; ok {
				return domain.ErrConflict
			}
		}
	}

	r.orders[order.ID] = order.Clone()
	if key := order.IdempotencyKey; key != "" {
		r.idempotency[idemKey(order.CustomerID, key)] = order.ID
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return order.Clone(), nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []*domain.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			orders = append(orders, o.Clone())
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
	return orders, nil
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, customerID int64, key string) (*domain.Order, error) {
	_ = ctx
	if key == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.idempotency[idemKey(customerID, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}

	order, found := r.orders[orderID]
	if !found {
		return nil, domain.ErrNotFound
	}

	return order.Clone(), nil
}

// Mutate applies fn to a working copy of the stored order while holding
// the store's write lock, then swaps the copy in. When fn errors nothing
// is persisted, so side effects fn performed against other components are
// committed or rejected together with the order update.
func (r *OrderRepository) Mutate(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	_ = ctx
	if fn == nil {
		return nil, fmt.Errorf("order repository: mutation func is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	working := stored.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	r.orders[id] = working
	return working.Clone(), nil
}

func idemKey(customerID int64, key string) string {
	return fmt.Sprintf("%d:%s", customerID, key)
}
