package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type kvEntry struct {
	value     string
	expiresAt time.Time // zero: без срока
}

func (e kvEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

type kvStoreInMemory struct {
	mu    sync.RWMutex
	items map[string]kvEntry
	now   func() time.Time
}

// NewKeyValueStore создаёт in-memory реализацию ExpiringKeyValueStore.
func NewKeyValueStore() domain.ExpiringKeyValueStore {
	return NewKeyValueStoreWithClock(nil)
}

// NewKeyValueStoreWithClock позволяет подменить часы (для тестов TTL).
func NewKeyValueStoreWithClock(now func() time.Time) domain.ExpiringKeyValueStore {
	if now == nil {
		now = time.Now
	}
	return &kvStoreInMemory{
		items: make(map[string]kvEntry),
		now:   now,
	}
}

func (s *kvStoreInMemory) Get(_ context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrKeyRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.items[key]
	if !ok || entry.expired(s.now()) {
		return "", domain.ErrKeyNotFound
	}
	return entry.value, nil
}

func (s *kvStoreInMemory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrKeyRequired
	}

	entry := kvEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry
	return nil
}

func (s *kvStoreInMemory) Delete(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *kvStoreInMemory) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.items {
		if !entry.expired(before) {
			continue
		}

		delete(s.items, key)
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}

	return removed, nil
}

func (s *kvStoreInMemory) Ping(context.Context) error {
	return nil
}

var (
	_ domain.ExpiringKeyValueStore = (*kvStoreInMemory)(nil)
	_ domain.Pinger                = (*kvStoreInMemory)(nil)
)
