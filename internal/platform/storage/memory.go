package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStorage keeps objects in process. Used by tests and local runs without an S3 endpoint.
type MemoryStorage struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	puts    int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{buckets: map[string]map[string][]byte{}}
}

func (m *MemoryStorage) EnsureBucket(ctx context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = map[string][]byte{}
	}
	return nil
}

func (m *MemoryStorage) MakeFolder(ctx context.Context, bucket, prefix string) error {
	key, err := FolderKey(prefix)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	if _, exists := objects[key]; !exists {
		objects[key] = []byte{}
	}
	return nil
}

func (m *MemoryStorage) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	objects[key] = copied
	m.puts++
	return nil
}

func (m *MemoryStorage) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// PutCount reports how many PutObject calls succeeded. Folder markers are not counted.
func (m *MemoryStorage) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *MemoryStorage) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.buckets[bucket] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var _ ObjectStorage = (*MemoryStorage)(nil)
