package location

import (
	"context"
	"sync"
)

// MemoryCache holds the last resolved fix in process memory. Used when no
// Redis address is configured, and in tests.
type MemoryCache struct {
	mu    sync.RWMutex
	entry *CachedFix
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (m *MemoryCache) Load(ctx context.Context) (*CachedFix, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entry == nil {
		return nil, nil
	}
	cp := *m.entry
	return &cp, nil
}

func (m *MemoryCache) Save(ctx context.Context, fix CachedFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = &fix
	return nil
}
