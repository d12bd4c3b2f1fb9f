package cart

import (
	"context"
	"errors"
	"fmt"

	domcart "github.com/toystore/fulfillment/internal/domain/cart"
	domcatalog "github.com/toystore/fulfillment/internal/domain/catalog"
	"github.com/toystore/fulfillment/internal/domain/session"
	"github.com/toystore/fulfillment/internal/observability"
	"github.com/toystore/fulfillment/internal/observability/logctx"
)

const componentCart = "cart_service"

var ErrNoSession = errors.New("cart: session key is required")

// Service applies cart mutations with load-before/store-after session
// persistence. The cart itself stays a plain value; durability lives
// entirely in the session store, keyed by the request layer's session id.
type Service struct {
	sessions session.Store
	catalog  domcatalog.Provider
	log      observability.Logger
}

func NewService(sessions session.Store, catalog domcatalog.Provider, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		sessions: sessions,
		catalog:  catalog,
		log:      logger.With(observability.F("component", componentCart)),
	}
}

func (s *Service) Get(ctx context.Context, sessionKey string) (*domcart.Cart, error) {
	if sessionKey == "" {
		return nil, ErrNoSession
	}
	return s.load(ctx, sessionKey)
}

// AddItem snapshots the product's current name and price into the cart.
// Unknown or inactive products are rejected before the cart is touched.
func (s *Service) AddItem(ctx context.Context, sessionKey string, productID int64, quantity int) (*domcart.Cart, error) {
	if sessionKey == "" {
		return nil, ErrNoSession
	}
	if quantity <= 0 {
		return nil, domcart.ErrInvalidQuantity
	}

	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("cart: catalog lookup: %w", err)
	}
	if !product.Active {
		return nil, domcatalog.ErrInactive
	}

	c, err := s.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if err := c.Add(product, quantity); err != nil {
		return nil, err
	}
	if err := s.store(ctx, sessionKey, c); err != nil {
		return nil, err
	}

	logctx.FromOr(ctx, s.log).Info("cart_item_added",
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
		observability.F("item_count", c.ItemCount()),
	)
	return c, nil
}

// UpdateQuantity overwrites a line's quantity; zero or negative removes it.
func (s *Service) UpdateQuantity(ctx context.Context, sessionKey string, productID int64, quantity int) (*domcart.Cart, error) {
	if sessionKey == "" {
		return nil, ErrNoSession
	}

	c, err := s.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	c.UpdateQuantity(productID, quantity)
	if err := s.store(ctx, sessionKey, c); err != nil {
		return nil, err
	}

	logctx.FromOr(ctx, s.log).Info("cart_quantity_updated",
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
	)
	return c, nil
}

func (s *Service) RemoveItem(ctx context.Context, sessionKey string, productID int64) (*domcart.Cart, error) {
	if sessionKey == "" {
		return nil, ErrNoSession
	}

	c, err := s.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	c.Remove(productID)
	if err := s.store(ctx, sessionKey, c); err != nil {
		return nil, err
	}

	logctx.FromOr(ctx, s.log).Info("cart_item_removed",
		observability.F("product_id", productID),
	)
	return c, nil
}

// Clear drops the session's cart blob entirely.
func (s *Service) Clear(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return ErrNoSession
	}
	if err := s.sessions.Delete(ctx, sessionKey); err != nil {
		return fmt.Errorf("cart: session delete: %w", err)
	}
	logctx.FromOr(ctx, s.log).Info("cart_cleared")
	return nil
}

func (s *Service) load(ctx context.Context, sessionKey string) (*domcart.Cart, error) {
	data, err := s.sessions.Load(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("cart: session load: %w", err)
	}
	return domcart.Decode(data), nil
}

func (s *Service) store(ctx context.Context, sessionKey string, c *domcart.Cart) error {
	if err := s.sessions.Save(ctx, sessionKey, c.Encode()); err != nil {
		return fmt.Errorf("cart: session save: %w", err)
	}
	return nil
}
