package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryBackend keeps objects in process memory. Contents are lost on restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string][]byte)}
}

func (m *MemoryBackend) EnsureBucket(ctx context.Context) error {
	return nil
}

func (m *MemoryBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryBackend) Bucket() string {
	return "memory"
}

// Keys lists stored keys.
func (m *MemoryBackend) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	return keys
}
