package index

import (
	"context"
	"sync"
)

// MemoryBackend is an in-memory Backend for tests and single-node tooling.
type MemoryBackend struct {
	mu      sync.Mutex
	indices map[string]Descriptor
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{indices: make(map[string]Descriptor)}
}

// CreateIndex records the named index. Creating an existing index is a
// no-op.
func (b *MemoryBackend) CreateIndex(_ context.Context, name string, desc Descriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.indices[name]; !ok {
		b.indices[name] = desc
	}
	return nil
}

// DeleteIndex removes the named index, ignoring absence.
func (b *MemoryBackend) DeleteIndex(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.indices, name)
	return nil
}

// IndexExists reports whether the named index was created.
func (b *MemoryBackend) IndexExists(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.indices[name]
	return ok, nil
}

// Refresh is a no-op; the memory backend has no visibility delay of its
// own.
func (b *MemoryBackend) Refresh(_ context.Context, _ string) error { return nil }
