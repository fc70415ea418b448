package tokenstore

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps state in process memory. State is lost on restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	data    map[string]map[string]string
	touched map[string]time.Time
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:    map[string]map[string]string{},
		touched: map[string]time.Time{},
		now:     time.Now,
	}
}

func (b *MemoryBackend) Get(_ context.Context, namespace string, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.data[namespace][key]
	return value, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, namespace string, key string, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, ok := b.data[namespace]
	if !ok {
		values = map[string]string{}
		b.data[namespace] = values
	}
	values[key] = value
	b.touched[namespace] = b.now()

	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, namespace string, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, ok := b.data[namespace]
	if !ok {
		return nil
	}

	for _, key := range keys {
		delete(values, key)
	}
	if len(values) == 0 {
		delete(b.data, namespace)
		delete(b.touched, namespace)
	}

	return nil
}

// PurgeIdle drops every namespace last written at or before cutoff.
func (b *MemoryBackend) PurgeIdle(_ context.Context, cutoff time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var purged int64
	for namespace, at := range b.touched {
		if at.After(cutoff) {
			continue
		}
		purged += int64(len(b.data[namespace]))
		delete(b.data, namespace)
		delete(b.touched, namespace)
	}

	return purged, nil
}

// Len is the number of namespaces holding any state.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.data)
}
