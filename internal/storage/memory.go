package storage

import (
	"context"
	"sync"
)

// MemoryBlobStore keeps blobs in process memory. Used by tests and local
// development when no bucket is configured.
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	public  map[string]bool
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		objects: make(map[string][]byte),
		public:  make(map[string]bool),
	}
}

func (s *MemoryBlobStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	s.public[key] = true
	return "memory://" + key, nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	delete(s.public, key)
	return nil
}

func (s *MemoryBlobStore) MakePublic(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.public[key] = true
	return nil
}

// Has reports whether a blob is stored under key.
func (s *MemoryBlobStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Get returns the stored bytes for key, nil if absent.
func (s *MemoryBlobStore) Get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

// Len returns the number of stored blobs.
func (s *MemoryBlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
