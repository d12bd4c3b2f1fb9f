package catalog

import (
	"context"
	"sync"

	domain "github.com/toystore/fulfillment/internal/domain/catalog"
)

// Static serves a fixed product set from memory. It stands in for the real
// catalog service; the composition root seeds it.
type Static struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
}

func NewStatic(products ...domain.Product) *Static {
	s := &Static{products: make(map[int64]domain.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *Static) Product(ctx context.Context, id int64) (domain.Product, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *Static) Put(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}
