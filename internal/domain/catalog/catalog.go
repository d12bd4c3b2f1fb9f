package catalog

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("catalog: product not found")
	ErrInactive = errors.New("catalog: product is not for sale")
)

// Product is the read model supplied by the catalog collaborator.
// Price is in cents.
type Product struct {
	ID     int64
	Name   string
	Price  int64
	Active bool
}

// Provider looks up products. Implementations may call out of process;
// a missing product is reported as ErrNotFound.
type Provider interface {
	Product(ctx context.Context, id int64) (Product, error)
}
