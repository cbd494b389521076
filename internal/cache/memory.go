package cache

import (
	"context"
	"sync"

	"sharedmail/backend/internal/domain"
)

// MemoryStore 进程内缓存存储（默认后端）。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.CacheEntry
}

// NewMemoryStore 创建内存缓存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*domain.CacheEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*domain.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return entry, true
}

func (s *MemoryStore) Set(_ context.Context, key string, entry *domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*domain.CacheEntry)
	return nil
}

func (s *MemoryStore) Entries(_ context.Context) []domain.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]domain.CacheEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		snapshot = append(snapshot, *entry)
	}
	return snapshot
}
