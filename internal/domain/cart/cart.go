package cart

import (
	"encoding/json"
	"errors"

	"github.com/toystore/fulfillment/internal/domain/catalog"
)

var ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")

// Line is one product entry in a cart. Name and unit price are snapshots
// taken when the product was first added; later catalog changes do not
// affect lines already in the cart.
type Line struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

func (l Line) Subtotal() int64 { return l.UnitPrice * int64(l.Quantity) }

// Cart is the in-progress selection for a single session. It is a plain
// value: callers load it from the session store, mutate it, and store it
// back. Lines keep insertion order and hold at most one entry per product.
type Cart struct {
	Lines []Line `json:"lines"`
}

func New() *Cart { return &Cart{} }

// Add puts quantity units of the product into the cart, merging with an
// existing line for the same product.
func (c *Cart) Add(p catalog.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == p.ID {
			c.Lines[i].Quantity += quantity
			return nil
		}
	}
	c.Lines = append(c.Lines, Line{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    quantity,
	})
	return nil
}

// UpdateQuantity overwrites a line's quantity. Zero or negative removes the
// line; lines never persist a non-positive quantity.
func (c *Cart) UpdateQuantity(productID int64, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			return
		}
	}
}

// Remove drops the line for the product. Removing an absent product is a no-op.
func (c *Cart) Remove(productID int64) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

func (c *Cart) Clear() { c.Lines = nil }

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

func (c *Cart) ItemCount() int {
	var count int
	for _, l := range c.Lines {
		count += l.Quantity
	}
	return count
}

// Snapshot returns a copy of the lines for handing to the checkout flow.
// The copy is detached: later cart mutations do not affect it.
func (c *Cart) Snapshot() []Line {
	out := make([]Line, len(c.Lines))
	copy(out, c.Lines)
	return out
}

// Encode serializes the cart for session storage.
func (c *Cart) Encode() []byte {
	data, err := json.Marshal(c)
	if err != nil {
		return []byte(`{"lines":[]}`)
	}
	return data
}

// Decode restores a cart from its session blob. Empty or malformed input
// yields a fresh empty cart; a broken session never fails the request.
// Lines a stale or hand-edited blob could carry with non-positive
// quantities or duplicate products are normalised away.
func Decode(data []byte) *Cart {
	if len(data) == 0 {
		return New()
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return New()
	}
	out := New()
	seen := make(map[int64]int, len(c.Lines))
	for _, l := range c.Lines {
		if l.Quantity <= 0 {
			continue
		}
		if i, ok := seen[l.ProductID]; ok {
			out.Lines[i].Quantity += l.Quantity
			continue
		}
		seen[l.ProductID] = len(out.Lines)
		out.Lines = append(out.Lines, l)
	}
	return out
}
