package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	domain "github.com/toystore/fulfillment/internal/domain/catalog"
)

// Breaker wraps a Provider with a circuit breaker so a flapping catalog
// backend fails fast instead of stalling every cart mutation. A missing
// product is a normal answer, not a failure.
type Breaker struct {
	next domain.Provider
	cb   *gobreaker.CircuitBreaker[domain.Product]
}

func NewBreaker(name string, next domain.Provider) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
	}
	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[domain.Product](settings),
	}
}

func (b *Breaker) Product(ctx context.Context, id int64) (domain.Product, error) {
	return b.cb.Execute(func() (domain.Product, error) {
		return b.next.Product(ctx, id)
	})
}
