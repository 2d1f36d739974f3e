package catalog

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Observer получает события построения витрины.
type Observer interface {
	RecordCatalogView(kind ViewKind, tier SearchTier)
	RecordCatalogFailure()
}

// Service строит витрину поверх Catalog Service. Ошибка загрузки каталога
// единственная поднимается наверх и помечается как повторяемая.
type Service struct {
	source   domain.CatalogService
	grouper  *Grouper
	logger   *log.Entry
	observer Observer
}

// ServiceOption настраивает Service.
type ServiceOption func(*Service)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver подключает метрики.
func WithObserver(observer Observer) ServiceOption {
	return func(s *Service) {
		s.observer = observer
	}
}

// NewService создаёт сервис витрины.
func NewService(source domain.CatalogService, grouper *Grouper, opts ...ServiceOption) *Service {
	if grouper == nil {
		grouper = NewGrouper(DefaultConfig())
	}
	s := &Service{
		source:  source,
		grouper: grouper,
		logger:  log.New().WithField("component", "catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View строит сгруппированную витрину.
func (s *Service) View(ctx context.Context, opts ViewOptions) (GroupedView, error) {
	products, err := s.list(ctx)
	if err != nil {
		return GroupedView{}, err
	}
	view := s.grouper.BuildView(products, opts)
	s.observe(view)
	return view, nil
}

// Search выполняет поиск по каталогу.
func (s *Service) Search(ctx context.Context, query string, opts ViewOptions) (GroupedView, error) {
	products, err := s.list(ctx)
	if err != nil {
		return GroupedView{}, err
	}
	view := s.grouper.Search(products, query, opts)
	s.observe(view)

	s.logger.WithFields(log.Fields{
		"visitor_key": opts.VisitorKey,
		"search_tier": view.SearchTier,
		"results":     len(view.Results),
	}).Debug("catalog search served")
	return view, nil
}

func (s *Service) list(ctx context.Context) ([]domain.Product, error) {
	products, err := s.source.ListAll(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("catalog listing failed")
		if s.observer != nil {
			s.observer.RecordCatalogFailure()
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	return products, nil
}

func (s *Service) observe(view GroupedView) {
	if s.observer != nil {
		s.observer.RecordCatalogView(view.Kind, view.SearchTier)
	}
}
