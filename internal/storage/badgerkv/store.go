// Package badgerkv реализует встроенное долговременное key/value хранилище на BadgerDB.
// Срок жизни сессионных ключей обеспечивает нативный TTL Badger.
package badgerkv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// keyPrefix отделяет ключи витрины от прочих данных в той же базе.
const keyPrefix = "sf:"

// Доля мусора в value log, при которой файл переписывается.
const gcDiscardRatio = 0.5

// Store реализует domain.ExpiringKeyValueStore поверх BadgerDB.
type Store struct {
	db     *badger.DB
	owned  bool
	logger *log.Entry
}

// Open открывает базу в каталоге path. С пустым path база живёт в памяти.
func Open(path string, logger *log.Entry) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	store := New(db, logger)
	store.owned = true
	return store, nil
}

// New оборачивает уже открытую базу; закрывать её должен вызывающий.
func New(db *badger.DB, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.New().WithField("component", "badger-store")
	}
	return &Store{db: db, logger: logger}
}

func storageKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrKeyRequired
	}
	return []byte(keyPrefix + key), nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	k, err := storageKey(key)
	if err != nil {
		return "", err
	}

	var value string
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get key: %w", err)
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", s.mapErr(err)
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	k, err := storageKey(key)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(k, []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return s.mapErr(fmt.Errorf("set key: %w", err))
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	k, err := storageKey(key)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete key: %w", err)
		}
		return nil
	})
	return s.mapErr(err)
}

// DeleteExpired запускает сборку мусора value log. Истёкшие ключи Badger
// скрывает сам, поэтому счётчик удалённых всегда 0.
func (s *Store) DeleteExpired(ctx context.Context, _ time.Time, limit int) (int, error) {
	if s.db.Opts().InMemory {
		return 0, nil
	}
	rounds := limit
	if rounds <= 0 {
		rounds = 1
	}
	for i := 0; i < rounds; i++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return 0, s.mapErr(fmt.Errorf("value log gc: %w", err))
		}
		s.logger.Debug("badger value log rewritten")
	}
	return 0, nil
}

// Ping проверяет, что база открыта.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return domain.ErrStoreClosed
	}
	return nil
}

// Close закрывает базу, если она открыта через Open.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

func (s *Store) mapErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %v", domain.ErrStoreClosed, err)
	}
	return err
}

var (
	_ domain.ExpiringKeyValueStore = (*Store)(nil)
	_ domain.Pinger                = (*Store)(nil)
)
