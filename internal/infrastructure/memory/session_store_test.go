package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_MissingKeyReturnsNil(t *testing.T) {
	store := NewSessionStore()

	blob, err := store.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestSessionStore_SaveLoadDelete(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", []byte(`{"lines":[]}`)))

	blob, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"lines":[]}`), blob)

	require.NoError(t, store.Delete(ctx, "sess-1"))
	blob, err = store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestSessionStore_BlobsAreCopied(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	in := []byte("original")
	require.NoError(t, store.Save(ctx, "sess-1", in))
	in[0] = 'X'

	out, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), out)

	// Mutating the loaded blob must not leak back into the store.
	out[0] = 'Y'
	again, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
