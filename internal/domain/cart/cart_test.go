package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toystore/fulfillment/internal/domain/catalog"
)

var (
	train = catalog.Product{ID: 1, Name: "Wooden Train Set", Price: 3499, Active: true}
	dino  = catalog.Product{ID: 2, Name: "Plush Dinosaur", Price: 1999, Active: true}
)

func TestCart_Add_MergesSameProduct(t *testing.T) {
	c := New()

	require.NoError(t, c.Add(train, 2))
	require.NoError(t, c.Add(dino, 1))
	require.NoError(t, c.Add(train, 3))

	require.Len(t, c.Lines, 2)
	assert.Equal(t, int64(1), c.Lines[0].ProductID)
	assert.Equal(t, 5, c.Lines[0].Quantity)
	assert.Equal(t, int64(2), c.Lines[1].ProductID)
	assert.Equal(t, 1, c.Lines[1].Quantity)
}

func TestCart_Add_SnapshotsNameAndPrice(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(train, 1))

	// Later catalog changes must not leak into lines already added.
	assert.Equal(t, "Wooden Train Set", c.Lines[0].ProductName)
	assert.Equal(t, int64(3499), c.Lines[0].UnitPrice)
}

func TestCart_Add_RejectsNonPositiveQuantity(t *testing.T) {
	c := New()

	assert.ErrorIs(t, c.Add(train, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, c.Add(train, -4), ErrInvalidQuantity)
	assert.True(t, c.IsEmpty())
}

func TestCart_UpdateQuantity(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(train, 2))
	require.NoError(t, c.Add(dino, 1))

	c.UpdateQuantity(1, 7)
	assert.Equal(t, 7, c.Lines[0].Quantity)

	// Zero removes the line entirely.
	c.UpdateQuantity(1, 0)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, int64(2), c.Lines[0].ProductID)

	// Updating an absent product is a no-op.
	c.UpdateQuantity(99, 3)
	assert.Len(t, c.Lines, 1)
}

func TestCart_Remove_AbsentProductIsNoop(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(train, 1))

	c.Remove(42)
	assert.Len(t, c.Lines, 1)

	c.Remove(1)
	assert.True(t, c.IsEmpty())
}

func TestCart_TotalAndItemCount(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(train, 2)) // 6998
	require.NoError(t, c.Add(dino, 3))  // 5997

	assert.Equal(t, int64(12995), c.Total())
	assert.Equal(t, 5, c.ItemCount())

	c.Clear()
	assert.Equal(t, int64(0), c.Total())
	assert.Equal(t, 0, c.ItemCount())
}

func TestCart_Snapshot_IsDetached(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(train, 2))

	snap := c.Snapshot()
	c.UpdateQuantity(1, 9)

	require.Len(t, snap, 1)
	assert.Equal(t, 2, snap[0].Quantity)
}

func TestCart_EncodeDecode_RoundTrip(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(train, 2))
	require.NoError(t, c.Add(dino, 1))

	decoded := Decode(c.Encode())
	assert.Equal(t, c.Lines, decoded.Lines)
}

func TestDecode_EmptyOrMalformedBlob(t *testing.T) {
	assert.True(t, Decode(nil).IsEmpty())
	assert.True(t, Decode([]byte{}).IsEmpty())
	assert.True(t, Decode([]byte("not json")).IsEmpty())
	assert.True(t, Decode([]byte(`{"lines":`)).IsEmpty())
}

func TestDecode_NormalisesStaleBlob(t *testing.T) {
	blob := []byte(`{"lines":[
		{"product_id":1,"product_name":"Wooden Train Set","unit_price":3499,"quantity":2},
		{"product_id":2,"product_name":"Plush Dinosaur","unit_price":1999,"quantity":0},
		{"product_id":3,"product_name":"Building Blocks 200pc","unit_price":4999,"quantity":-1},
		{"product_id":1,"product_name":"Wooden Train Set","unit_price":3499,"quantity":3}
	]}`)

	c := Decode(blob)

	require.Len(t, c.Lines, 1)
	assert.Equal(t, int64(1), c.Lines[0].ProductID)
	assert.Equal(t, 5, c.Lines[0].Quantity)
}
