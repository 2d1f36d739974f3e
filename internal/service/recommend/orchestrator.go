// Package recommend собирает рекомендации по цепочке ступеней
// cart → product → visitor → empty с кэшированием и отбрасыванием устаревших ответов.
package recommend

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/reccache"
)

// Request — входные данные одного прохода цепочки.
type Request struct {
	VisitorKey      domain.VisitorKey
	CartExternalIDs []string
	FocusExternalID string
}

// Cache реализуется reccache.Cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]domain.Product, bool)
	Set(ctx context.Context, key string, products []domain.Product) error
}

// Orchestrator проходит ступени по порядку; первая непустая успешная побеждает.
// Ошибки сервисов гасятся внутри ступени.
type Orchestrator struct {
	recs      domain.RecommendationService
	cache     Cache
	catalog   domain.CatalogService
	logger    *log.Entry
	metrics   *metrics.PersonalizationMetrics
	publisher kafka.Publisher
	topic     string
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.PersonalizationMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithPublisher включает публикацию аналитических событий.
func WithPublisher(publisher kafka.Publisher, topic string) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
		if topic != "" {
			o.topic = topic
		}
	}
}

// WithCatalog задаёт источник запасного списка для товарной ступени.
func WithCatalog(catalog domain.CatalogService) Option {
	return func(o *Orchestrator) {
		o.catalog = catalog
	}
}

// NewOrchestrator создаёт оркестратор.
func NewOrchestrator(recs domain.RecommendationService, cache Cache, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		recs:   recs,
		cache:  cache,
		logger: log.New().WithField("component", "recommend"),
		topic:  kafka.TopicRecommendationEvents,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type tierFunc func(ctx context.Context, req Request, token *Token, logger *log.Entry) (domain.RecommendationResult, bool)

// FetchFor проходит цепочку и всегда завершается результатом (возможно пустым).
// Если token отменён к моменту возобновления, результат помечается Discarded
// и никаких внешне видимых изменений (запись в кэш, событие) не происходит.
func (o *Orchestrator) FetchFor(ctx context.Context, req Request, token *Token) domain.RecommendationResult {
	start := time.Now()
	o.metrics.RecordFetchStarted()
	defer func() {
		o.metrics.RecordFetchFinished(time.Since(start))
	}()

	logger := o.logger.WithField("visitor_key", req.VisitorKey)

	for _, tier := range []tierFunc{o.cartTier, o.productTier, o.visitorTier} {
		if result, done := tier(ctx, req, token, logger); done {
			return o.settle(req, token, result, logger)
		}
	}
	return o.settle(req, token, domain.EmptyResult(), logger)
}

func (o *Orchestrator) cartTier(ctx context.Context, req Request, token *Token, logger *log.Entry) (domain.RecommendationResult, bool) {
	ids := reccache.NormalizeIDs(req.CartExternalIDs)
	if len(ids) == 0 {
		return domain.RecommendationResult{}, false
	}

	key := reccache.Fingerprint(reccache.NamespaceCart, ids)
	if cached, hit := o.cache.Get(ctx, key); hit {
		if len(cached) == 0 {
			return domain.RecommendationResult{}, false
		}
		return domain.RecommendationResult{Tier: domain.TierCart, Products: cached, Fingerprint: key, FromCache: true}, true
	}

	products, err := o.recs.ByCart(ctx, ids)
	if token.Cancelled() {
		return domain.DiscardedResult(), true
	}
	if err != nil {
		o.tierFailed(domain.TierCart, err, logger.WithField("fingerprint", key))
		return domain.RecommendationResult{}, false
	}
	o.write(ctx, key, products, logger)
	if len(products) == 0 {
		return domain.RecommendationResult{}, false
	}
	return domain.RecommendationResult{Tier: domain.TierCart, Products: products, Fingerprint: key}, true
}

func (o *Orchestrator) productTier(ctx context.Context, req Request, token *Token, logger *log.Entry) (domain.RecommendationResult, bool) {
	focus := strings.TrimSpace(req.FocusExternalID)
	if focus == "" {
		return domain.RecommendationResult{}, false
	}

	key := reccache.Fingerprint(reccache.NamespaceProduct, []string{focus})
	cached, hit := o.cache.Get(ctx, key)
	if hit && len(cached) > 0 {
		return domain.RecommendationResult{Tier: domain.TierProduct, Products: cached, Fingerprint: key, FromCache: true}, true
	}

	if !hit {
		products, err := o.recs.ByProduct(ctx, focus)
		if token.Cancelled() {
			return domain.DiscardedResult(), true
		}
		if err != nil {
			o.tierFailed(domain.TierProduct, err, logger.WithField("fingerprint", key))
		} else {
			o.write(ctx, key, products, logger)
			if len(products) > 0 {
				return domain.RecommendationResult{Tier: domain.TierProduct, Products: products, Fingerprint: key}, true
			}
		}
	}

	return o.catalogFallback(ctx, focus, token, logger)
}

// catalogFallback отдаёт остальные товары каталога, чтобы товарная витрина не пустовала.
func (o *Orchestrator) catalogFallback(ctx context.Context, focus string, token *Token, logger *log.Entry) (domain.RecommendationResult, bool) {
	if o.catalog == nil {
		return domain.RecommendationResult{}, false
	}

	all, err := o.catalog.ListAll(ctx)
	if token.Cancelled() {
		return domain.DiscardedResult(), true
	}
	if err != nil {
		o.tierFailed(domain.TierProduct, err, logger.WithField("source", "catalog"))
		return domain.RecommendationResult{}, false
	}

	others := domain.ExcludeExternalID(all, focus)
	if len(others) == 0 {
		return domain.RecommendationResult{}, false
	}
	return domain.RecommendationResult{Tier: domain.TierProduct, Products: others, Fallback: true}, true
}

func (o *Orchestrator) visitorTier(ctx context.Context, req Request, token *Token, logger *log.Entry) (domain.RecommendationResult, bool) {
	if req.VisitorKey.IsZero() {
		return domain.RecommendationResult{}, false
	}

	products, err := o.recs.ByVisitor(ctx, req.VisitorKey)
	if token.Cancelled() {
		return domain.DiscardedResult(), true
	}
	if err != nil {
		o.tierFailed(domain.TierVisitor, err, logger)
		return domain.RecommendationResult{}, false
	}
	if len(products) == 0 {
		return domain.RecommendationResult{}, false
	}
	return domain.RecommendationResult{Tier: domain.TierVisitor, Products: products}, true
}

func (o *Orchestrator) write(ctx context.Context, key string, products []domain.Product, logger *log.Entry) {
	if err := o.cache.Set(ctx, key, products); err != nil {
		logger.WithError(err).WithField("fingerprint", key).Warn("failed to cache recommendations")
	}
}

func (o *Orchestrator) tierFailed(tier domain.Tier, err error, logger *log.Entry) {
	logger.WithError(err).WithField("tier", tier).Warn("recommendation tier failed, falling through")
	o.metrics.RecordTierFailure(string(tier))
}

// settle: последняя точка проверки токена перед тем, как результат станет видимым.
func (o *Orchestrator) settle(req Request, token *Token, result domain.RecommendationResult, logger *log.Entry) domain.RecommendationResult {
	if result.Discarded || token.Cancelled() {
		logger.Debug("stale recommendation result discarded")
		o.metrics.RecordDiscarded()
		return domain.DiscardedResult()
	}

	o.metrics.RecordServed(string(result.Tier), sourceOf(result))
	logger.WithFields(log.Fields{
		"tier":        result.Tier,
		"fingerprint": result.Fingerprint,
		"from_cache":  result.FromCache,
		"count":       len(result.Products),
	}).Debug("recommendations resolved")

	o.publish(req, result, logger)
	return result
}

func (o *Orchestrator) publish(req Request, result domain.RecommendationResult, logger *log.Entry) {
	if o.publisher == nil {
		return
	}
	ids := make([]string, 0, len(result.Products))
	for _, p := range result.Products {
		ids = append(ids, p.ExternalID)
	}
	event := kafka.NewRecommendationEvent(
		string(req.VisitorKey),
		string(result.Tier),
		result.Fingerprint,
		result.FromCache,
		result.Fallback,
		ids,
	)
	if err := o.publisher.PublishEvent(o.topic, string(req.VisitorKey), event); err != nil {
		logger.WithError(err).Warn("failed to publish recommendation event to kafka")
	}
}

func sourceOf(result domain.RecommendationResult) string {
	switch {
	case result.FromCache:
		return metrics.SourceCache
	case result.Fallback:
		return metrics.SourceCatalog
	default:
		return metrics.SourceService
	}
}
