// Package reccache хранит ответы сервиса рекомендаций в сессионной области
// Visitor Store. Ключ строится из отпечатка входных идентификаторов.
package reccache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Пространства имён отпечатков по ступеням цепочки.
const (
	NamespaceCart    = "cart-recs"
	NamespaceProduct = "product-recs"
)

const (
	namespaceSeparator = "-"
	idDelimiter        = "_"
)

// Entry хранится в сессионной области в виде JSON.
type Entry struct {
	Key       string           `json:"key"`
	Value     []domain.Product `json:"value"`
	WrittenAt time.Time        `json:"writtenAt"`
}

// Observer получает события попадания/промаха. Реализуется метриками.
type Observer interface {
	RecordCacheLookup(hit bool)
}

// Cache — кэш результатов рекомендаций в рамках одной сессии просмотра.
type Cache struct {
	store    domain.VisitorStore
	logger   *log.Entry
	observer Observer
	now      func() time.Time
}

// Option настраивает Cache.
type Option func(*Cache)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver подключает учёт попаданий.
func WithObserver(observer Observer) Option {
	return func(c *Cache) {
		c.observer = observer
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New создаёт кэш поверх сессионной области хранилища посетителя.
func New(store domain.VisitorStore, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		logger: log.New().WithField("component", "reccache"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get возвращает копию закэшированного списка. Любая ошибка считается промахом.
func (c *Cache) Get(ctx context.Context, key string) ([]domain.Product, bool) {
	products, err := c.lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			c.logger.WithError(err).WithField("fingerprint", key).Warn("cache entry ignored")
		}
		c.observe(false)
		return nil, false
	}
	c.observe(true)
	return products, true
}

func (c *Cache) lookup(ctx context.Context, key string) ([]domain.Product, error) {
	raw, err := c.store.Get(ctx, domain.DurabilitySession, key)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheCorrupt, err)
	}
	if entry.Key != key {
		return nil, fmt.Errorf("%w: key mismatch %q", domain.ErrCacheCorrupt, entry.Key)
	}
	return domain.CloneProducts(entry.Value), nil
}

// Set записывает значение под ключом. Последняя запись побеждает.
func (c *Cache) Set(ctx context.Context, key string, products []domain.Product) error {
	entry := Entry{
		Key:       key,
		Value:     domain.CloneProducts(products),
		WrittenAt: c.now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.store.Set(ctx, domain.DurabilitySession, key, string(data)); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

func (c *Cache) observe(hit bool) {
	if c.observer != nil {
		c.observer.RecordCacheLookup(hit)
	}
}

// NormalizeIDs обрезает пробелы, отбрасывает пустые, сортирует и убирает дубликаты.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Fingerprint строит ключ кэша, не зависящий от порядка идентификаторов.
func Fingerprint(namespace string, ids []string) string {
	return namespace + namespaceSeparator + strings.Join(NormalizeIDs(ids), idDelimiter)
}
