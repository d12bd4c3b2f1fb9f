package memory

import (
	"context"
	"sync"
)

// SessionStore holds opaque session blobs in memory. Blobs are copied in
// and out so callers cannot alias the stored bytes.
type SessionStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewSessionStore() *SessionStore {
	return &SessionStore{blobs: make(map[string][]byte)}
}

func (s *SessionStore) Load(ctx context.Context, key string) ([]byte, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (s *SessionStore) Save(ctx context.Context, key string, data []byte) error {
	_ = ctx

	blob := make([]byte, len(data))
	copy(blob, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = blob
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}
