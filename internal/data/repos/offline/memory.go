package offline

import (
	"bytes"
	"context"
	"strings"
	"sync"
)

// memoryStore is the OFFLINE_STORE=memory backend. Nothing survives a restart.
type memoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemoryStore() Store {
	return &memoryStore{data: map[string]map[string][]byte{}}
}

func (s *memoryStore) Bucket(namespace string) Bucket {
	return &memoryBucket{s: s, ns: normalizeNamespace(namespace)}
}

func (s *memoryStore) Close() error { return nil }

type memoryBucket struct {
	s  *memoryStore
	ns string
}

func (b *memoryBucket) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	v, ok := b.s.data[b.ns][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (b *memoryBucket) Set(_ context.Context, key string, value []byte) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	m := b.s.data[b.ns]
	if m == nil {
		m = map[string][]byte{}
		b.s.data[b.ns] = m
	}
	m[key] = append([]byte(nil), value...)
	return nil
}

func (b *memoryBucket) Delete(_ context.Context, key string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	delete(b.s.data[b.ns], key)
	return nil
}

func (b *memoryBucket) DeleteIfValue(_ context.Context, key string, value []byte) (bool, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	cur, ok := b.s.data[b.ns][key]
	if !ok || !bytes.Equal(cur, value) {
		return false, nil
	}
	delete(b.s.data[b.ns], key)
	return true, nil
}

func (b *memoryBucket) List(_ context.Context, prefix string) ([]Entry, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	var out []Entry
	for k, v := range b.s.data[b.ns] {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Entry{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	SortEntries(out)
	return out, nil
}
