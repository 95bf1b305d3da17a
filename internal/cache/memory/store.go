// Package memory is an in-process cache store guarded by a narrow lock.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

// Store keeps entries in a map. Expired entries are removed on read and by Sweep.
type Store struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*domain.CacheEntry),
		now:     time.Now,
	}
}

// WithClock overrides the clock. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get returns a copy of the live entry and increments its hit count.
func (s *Store) Get(_ context.Context, key string) (*domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if entry.Expired(s.now()) {
		delete(s.entries, key)
		return nil, domain.ErrCacheMiss
	}

	entry.HitCount++
	cp := *entry
	return &cp, nil
}

// Set replaces any existing entry. Last writer wins.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	entry := &domain.CacheEntry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		CreatedAt: now,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Stats counts live entries under prefix.
func (s *Store) Stats(_ context.Context, prefix string) (*domain.CacheStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := &domain.CacheStats{HitsPerEntry: make(map[string]int64)}
	for key, entry := range s.entries {
		if !strings.HasPrefix(key, prefix) || entry.Expired(now) {
			continue
		}
		stats.Entries++
		stats.Hits += entry.HitCount
		stats.HitsPerEntry[key] = entry.HitCount
	}
	return stats, nil
}

// Sweep removes expired entries and reports how many were removed.
func (s *Store) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
