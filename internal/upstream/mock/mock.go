// Package mock — конфигурируемые in-process сервисы каталога и рекомендаций
// для локального запуска и тестов.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/shuffle"
)

// DefaultLimit ограничивает размер одной подборки.
const DefaultLimit = 4

// CatalogService отдаёт фиксированный список товаров.
type CatalogService struct {
	mu       sync.Mutex
	products []domain.Product

	ListErr   error
	ListCalls int
}

// NewCatalogService возвращает mock с заданным каталогом.
func NewCatalogService(products []domain.Product) *CatalogService {
	return &CatalogService{products: domain.CloneProducts(products)}
}

// ListAll возвращает копию каталога или настроенную ошибку.
func (m *CatalogService) ListAll(context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return domain.CloneProducts(m.products), nil
}

// RecommendationService строит подборки по каталогу: соседи по категории
// для корзины и товара, детерминированная выборка для посетителя.
type RecommendationService struct {
	mu      sync.Mutex
	catalog []domain.Product
	limit   int

	Latency time.Duration

	CartErr    error
	ProductErr error
	VisitorErr error

	CartCalls    int
	ProductCalls int
	VisitorCalls int
}

// NewRecommendationService возвращает mock с успешным сценарием по умолчанию.
func NewRecommendationService(catalog []domain.Product) *RecommendationService {
	return &RecommendationService{catalog: domain.CloneProducts(catalog), limit: DefaultLimit}
}

// SetFailure настраивает ошибки всех методов сразу.
func (m *RecommendationService) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CartErr, m.ProductErr, m.VisitorErr = err, err, err
}

// Calls возвращает счётчики вызовов cart, product, visitor.
func (m *RecommendationService) Calls() (cart, product, visitor int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CartCalls, m.ProductCalls, m.VisitorCalls
}

func (m *RecommendationService) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(m.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *RecommendationService) ByCart(ctx context.Context, sortedExternalIDs []string) ([]domain.Product, error) {
	m.mu.Lock()
	m.CartCalls++
	err := m.CartErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	inCart := make(map[string]struct{}, len(sortedExternalIDs))
	for _, id := range sortedExternalIDs {
		inCart[id] = struct{}{}
	}
	categories := make(map[string]struct{})
	for _, p := range m.catalog {
		if _, ok := inCart[p.ExternalID]; ok {
			categories[p.Category] = struct{}{}
		}
	}
	return m.neighbours(func(p domain.Product) bool {
		_, sameCategory := categories[p.Category]
		_, owned := inCart[p.ExternalID]
		return sameCategory && !owned
	}), nil
}

func (m *RecommendationService) ByProduct(ctx context.Context, externalID string) ([]domain.Product, error) {
	m.mu.Lock()
	m.ProductCalls++
	err := m.ProductErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	category := ""
	for _, p := range m.catalog {
		if p.ExternalID == externalID {
			category = p.Category
			break
		}
	}
	if category == "" {
		return []domain.Product{}, nil
	}
	return m.neighbours(func(p domain.Product) bool {
		return p.Category == category && p.ExternalID != externalID
	}), nil
}

func (m *RecommendationService) ByVisitor(ctx context.Context, visitorKey domain.VisitorKey) ([]domain.Product, error) {
	m.mu.Lock()
	m.VisitorCalls++
	err := m.VisitorErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	picked := shuffle.Permute(m.catalog, visitorKey.String())
	if len(picked) > m.limit {
		picked = picked[:m.limit]
	}
	return picked, nil
}

func (m *RecommendationService) neighbours(keep func(domain.Product) bool) []domain.Product {
	out := make([]domain.Product, 0, m.limit)
	for _, p := range m.catalog {
		if len(out) == m.limit {
			break
		}
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

var (
	_ domain.CatalogService        = (*CatalogService)(nil)
	_ domain.RecommendationService = (*RecommendationService)(nil)
)
