package domain

import (
	"context"
	"time"
)

// CatalogService отдаёт полный каталог витрины. Пагинации нет:
// каталог считается достаточно маленьким для группировки на стороне ядра.
type CatalogService interface {
	ListAll(ctx context.Context) ([]Product, error)
}

// RecommendationService описывает внешний сервис ранжирования.
// Любой метод может вернуть пустой список; ошибки транспорта допустимы.
type RecommendationService interface {
	// ByCart принимает отсортированный список externalId товаров корзины.
	ByCart(ctx context.Context, sortedExternalIDs []string) ([]Product, error)
	// ByProduct возвращает товары, похожие на указанный.
	ByProduct(ctx context.Context, externalID string) ([]Product, error)
	// ByVisitor возвращает персональную подборку для посетителя.
	ByVisitor(ctx context.Context, visitorKey VisitorKey) ([]Product, error)
}

// VisitorStore — key/value хранилище одного браузерного профиля
// с двумя классами долговечности. Ключи и значения строковые.
type VisitorStore interface {
	// Get возвращает значение или ErrKeyNotFound.
	Get(ctx context.Context, durability Durability, key string) (string, error)
	Set(ctx context.Context, durability Durability, key, value string) error
	Delete(ctx context.Context, durability Durability, key string) error
}

// KeyValueStore — бэкенд, поверх которого строится VisitorStore.
type KeyValueStore interface {
	// Get возвращает значение или ErrKeyNotFound (в том числе для истёкших ключей).
	Get(ctx context.Context, key string) (string, error)
	// Set записывает значение; ttl <= 0 означает хранение без срока.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ExpiringKeyValueStore умеет физически удалять истёкшие записи порциями.
type ExpiringKeyValueStore interface {
	KeyValueStore
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Pinger реализуют хранилища, доступность которых можно проверить.
type Pinger interface {
	Ping(ctx context.Context) error
}
