package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// KeyValueStore хранит области посетителей в таблице visitor_kv.
// Просроченная строка читается как отсутствующая до удаления фоновой очисткой.
type KeyValueStore struct {
	store *Store
	now   func() time.Time
}

// NewKeyValueStore создаёт key/value хранилище поверх открытого Store.
func NewKeyValueStore(store *Store) *KeyValueStore {
	return &KeyValueStore{store: store, now: time.Now}
}

func (r *KeyValueStore) db() (*sql.DB, error) {
	if r == nil || r.store == nil || r.store.db == nil {
		return nil, errNotInitialized
	}
	return r.store.db, nil
}

func (r *KeyValueStore) Get(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrKeyRequired
	}
	db, err := r.db()
	if err != nil {
		return "", err
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value string
	err = db.QueryRowContext(queryCtx, `
		SELECT value
		FROM visitor_kv
		WHERE key = $1
		  AND (expires_at IS NULL OR expires_at > $2)
	`, key, r.now().UTC()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select visitor key: %w", err)
	}
	return value, nil
}

func (r *KeyValueStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrKeyRequired
	}
	db, err := r.db()
	if err != nil {
		return err
	}

	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: r.now().UTC().Add(ttl), Valid: true}
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := db.ExecContext(queryCtx, `
		INSERT INTO visitor_kv (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`, key, value, expiresAt); err != nil {
		return fmt.Errorf("upsert visitor key: %w", err)
	}
	return nil
}

func (r *KeyValueStore) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrKeyRequired
	}
	db, err := r.db()
	if err != nil {
		return err
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := db.ExecContext(queryCtx, `DELETE FROM visitor_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete visitor key: %w", err)
	}
	return nil
}

// DeleteExpired удаляет не более limit строк, истёкших до before.
func (r *KeyValueStore) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	db, err := r.db()
	if err != nil {
		return 0, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := db.ExecContext(queryCtx, `
		DELETE FROM visitor_kv
		WHERE key IN (
			SELECT key
			FROM visitor_kv
			WHERE expires_at IS NOT NULL
			  AND expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
		)
	`, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("delete expired visitor keys: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for expired visitor keys: %w", err)
	}
	return int(affected), nil
}

// Ping делегирует проверку подключению.
func (r *KeyValueStore) Ping(ctx context.Context) error {
	if r == nil {
		return errNotInitialized
	}
	return r.store.Ping(ctx)
}

var (
	_ domain.ExpiringKeyValueStore = (*KeyValueStore)(nil)
	_ domain.Pinger                = (*KeyValueStore)(nil)
)
