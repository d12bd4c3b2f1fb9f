package session

import "context"

// Store persists opaque per-session blobs. The request layer owns the
// session key and serializes access per session; this core only does
// load-before/store-after around cart mutations. Loading a key that was
// never saved returns a nil blob and no error.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
