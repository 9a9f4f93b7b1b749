package util

import (
	"sync"

	"github.com/dolthub/swiss"
)

// SyncedSwissMap is a swiss table guarded by a read/write mutex.
type SyncedSwissMap[K comparable, V any] struct {
	mu       sync.RWMutex
	swissMap *swiss.Map[K, V]
}

func NewSyncedSwissMap[K comparable, V any](length uint32) *SyncedSwissMap[K, V] {
	return &SyncedSwissMap[K, V]{
		swissMap: swiss.NewMap[K, V](length),
	}
}

func (m *SyncedSwissMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.swissMap.Get(key)
}

func (m *SyncedSwissMap[K, V]) Exists(key K) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.swissMap.Has(key)
}

func (m *SyncedSwissMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.swissMap.Put(key, value)
}

func (m *SyncedSwissMap[K, V]) Length() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.swissMap.Count()
}
