// Package visitor реализует Visitor Store поверх произвольного key/value бэкенда.
// Постоянная область привязана к браузерному профилю, сессионная к сессии просмотра.
package visitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	keyVersion        = "v1"
	persistentSegment = "p"
	sessionSegment    = "s"
)

// PersistentKey строит ключ бэкенда для постоянной области.
func PersistentKey(profileID, key string) string {
	return strings.Join([]string{keyVersion, persistentSegment, profileID, key}, ":")
}

// SessionKey строит ключ бэкенда для сессионной области.
func SessionKey(sessionID, key string) string {
	return strings.Join([]string{keyVersion, sessionSegment, sessionID, key}, ":")
}

// Store — хранилище одного посетителя.
type Store struct {
	backend    domain.KeyValueStore
	profileID  string
	sessionID  string
	sessionTTL time.Duration
}

// New создаёт хранилище для пары (браузерный профиль, сессия).
// При sessionTTL <= 0 сессионные ключи живут, пока их не удалят явно.
func New(backend domain.KeyValueStore, profileID, sessionID string, sessionTTL time.Duration) *Store {
	return &Store{
		backend:    backend,
		profileID:  profileID,
		sessionID:  sessionID,
		sessionTTL: sessionTTL,
	}
}

// ProfileID возвращает идентификатор браузерного профиля.
func (s *Store) ProfileID() string { return s.profileID }

// SessionID возвращает идентификатор сессии.
func (s *Store) SessionID() string { return s.sessionID }

func (s *Store) resolve(durability domain.Durability, key string) (string, time.Duration, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", 0, domain.ErrKeyRequired
	}
	switch durability {
	case domain.DurabilityPersistent:
		return PersistentKey(s.profileID, key), 0, nil
	case domain.DurabilitySession:
		return SessionKey(s.sessionID, key), s.sessionTTL, nil
	default:
		return "", 0, fmt.Errorf("%w: %q", domain.ErrInvalidDurability, durability)
	}
}

func (s *Store) Get(ctx context.Context, durability domain.Durability, key string) (string, error) {
	full, _, err := s.resolve(durability, key)
	if err != nil {
		return "", err
	}
	return s.backend.Get(ctx, full)
}

func (s *Store) Set(ctx context.Context, durability domain.Durability, key, value string) error {
	full, ttl, err := s.resolve(durability, key)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, full, value, ttl)
}

func (s *Store) Delete(ctx context.Context, durability domain.Durability, key string) error {
	full, _, err := s.resolve(durability, key)
	if err != nil {
		return err
	}
	return s.backend.Delete(ctx, full)
}

var _ domain.VisitorStore = (*Store)(nil)
