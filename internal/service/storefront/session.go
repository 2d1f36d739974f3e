// Package storefront связывает ядро персонализации в сессию одного браузера:
// хранилище посетителя, резолвер личности, кэш, оркестратор и поверхности.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/identity"
	"github.com/vladislavdragonenkov/storefront/internal/service/reccache"
	"github.com/vladislavdragonenkov/storefront/internal/service/recommend"
	"github.com/vladislavdragonenkov/storefront/internal/storage/visitor"
	"github.com/vladislavdragonenkov/storefront/internal/upstream/httpclient"
)

// SurfaceName называет потребляющую поверхность.
type SurfaceName string

const (
	SurfaceHome    SurfaceName = "home"
	SurfaceCart    SurfaceName = "cart"
	SurfaceProduct SurfaceName = "product"
)

// Surfaces перечисляет поверхности каждой сессии.
var Surfaces = []SurfaceName{SurfaceHome, SurfaceCart, SurfaceProduct}

// ErrUnknownSurface возвращается для имени поверхности вне Surfaces.
var ErrUnknownSurface = errors.New("unknown recommendation surface")

// Dependencies — общие для всех сессий зависимости.
type Dependencies struct {
	Backend         domain.KeyValueStore
	Recommendations domain.RecommendationService
	// Источник запасного списка для товарного уровня. Может быть nil.
	Catalog        domain.CatalogService
	Metrics        *metrics.PersonalizationMetrics
	Publisher      kafka.Publisher
	Logger         *log.Entry
	SessionTTL     time.Duration
	TokenPrefixLen int
	NewID          func() string
}

// Session — состояние одного браузерного профиля в одной сессии просмотра.
type Session struct {
	profileID string
	sessionID string

	store        *visitor.Store
	resolver     *identity.Resolver
	cache        *reccache.Cache
	orchestrator *recommend.Orchestrator
	surfaces     map[SurfaceName]*recommend.Surface
	publisher    kafka.Publisher
	logger       *log.Entry

	mu       sync.Mutex
	lastSeen time.Time
}

// NewSession собирает сессию. Пустые идентификаторы недопустимы.
func NewSession(deps Dependencies, profileID, sessionID string) (*Session, error) {
	profileID, sessionID = strings.TrimSpace(profileID), strings.TrimSpace(sessionID)
	if profileID == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: profile and session ids", domain.ErrKeyRequired)
	}
	if deps.Backend == nil || deps.Recommendations == nil {
		return nil, errors.New("storefront session requires backend and recommendation service")
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "storefront")
	}
	logger = logger.WithFields(log.Fields{"profile_id": profileID, "session_id": sessionID})

	store := visitor.New(deps.Backend, profileID, sessionID, deps.SessionTTL)

	resolverOpts := []identity.Option{identity.WithLogger(logger.WithField("component", "identity"))}
	if deps.TokenPrefixLen > 0 {
		resolverOpts = append(resolverOpts, identity.WithTokenPrefixLen(deps.TokenPrefixLen))
	}
	if deps.NewID != nil {
		resolverOpts = append(resolverOpts, identity.WithIDGenerator(deps.NewID))
	}

	cache := reccache.New(store,
		reccache.WithLogger(logger.WithField("component", "reccache")),
		reccache.WithObserver(deps.Metrics),
	)

	orchestratorOpts := []recommend.Option{
		recommend.WithLogger(logger.WithField("component", "recommend")),
		recommend.WithMetrics(deps.Metrics),
	}
	if deps.Catalog != nil {
		orchestratorOpts = append(orchestratorOpts, recommend.WithCatalog(deps.Catalog))
	}
	if deps.Publisher != nil {
		orchestratorOpts = append(orchestratorOpts, recommend.WithPublisher(deps.Publisher, kafka.TopicRecommendationEvents))
	}
	orchestrator := recommend.NewOrchestrator(deps.Recommendations, cache, orchestratorOpts...)

	surfaces := make(map[SurfaceName]*recommend.Surface, len(Surfaces))
	for _, name := range Surfaces {
		surfaces[name] = recommend.NewSurface(string(name), orchestrator, logger)
	}

	return &Session{
		profileID:    profileID,
		sessionID:    sessionID,
		store:        store,
		resolver:     identity.NewResolver(store, resolverOpts...),
		cache:        cache,
		orchestrator: orchestrator,
		surfaces:     surfaces,
		publisher:    deps.Publisher,
		logger:       logger,
	}, nil
}

func (s *Session) ProfileID() string { return s.profileID }
func (s *Session) SessionID() string { return s.sessionID }

// VisitorKey разрешает текущий ключ посетителя.
func (s *Session) VisitorKey(ctx context.Context) domain.VisitorKey {
	return s.resolver.Resolve(ctx)
}

// Authenticated сообщает, вошёл ли посетитель.
func (s *Session) Authenticated(ctx context.Context) bool {
	return s.resolver.Authenticated(ctx)
}

// Surface возвращает поверхность по имени.
func (s *Session) Surface(name SurfaceName) (*recommend.Surface, bool) {
	surface, ok := s.surfaces[name]
	return surface, ok
}

// Recommend обновляет поверхность для текущего посетителя.
// Второе значение ложно, если результат вытеснен более новым запросом.
func (s *Session) Recommend(ctx context.Context, name SurfaceName, cartExternalIDs []string, focusExternalID string) (domain.RecommendationResult, bool, error) {
	surface, ok := s.surfaces[name]
	if !ok {
		return domain.RecommendationResult{}, false, fmt.Errorf("%w: %q", ErrUnknownSurface, name)
	}

	if profile, err := s.resolver.Profile(ctx); err == nil {
		ctx = httpclient.WithBearer(ctx, profile.Token)
	}
	req := recommend.Request{
		VisitorKey:      s.resolver.Resolve(ctx),
		CartExternalIDs: cartExternalIDs,
		FocusExternalID: strings.TrimSpace(focusExternalID),
	}
	result, applied := surface.Refresh(ctx, req)
	return result, applied, nil
}

// SignIn сохраняет профиль и сбрасывает поверхности: личность посетителя сменилась.
func (s *Session) SignIn(ctx context.Context, profile domain.Profile) (domain.VisitorKey, error) {
	if err := s.resolver.SignIn(ctx, profile); err != nil {
		return "", err
	}
	s.ResetSurfaces()
	key := s.resolver.Resolve(ctx)
	s.publishVisitor(kafka.EventTypeVisitorSignedIn, key)
	return key, nil
}

// SignOut удаляет профиль; посетитель возвращается к гостевому ключу.
func (s *Session) SignOut(ctx context.Context) (domain.VisitorKey, error) {
	previous := s.resolver.Resolve(ctx)
	if err := s.resolver.SignOut(ctx); err != nil {
		return "", err
	}
	s.ResetSurfaces()
	s.publishVisitor(kafka.EventTypeVisitorSignedOut, previous)
	return s.resolver.Resolve(ctx), nil
}

// ResetSurfaces отменяет запросы в полёте и очищает состояние поверхностей.
func (s *Session) ResetSurfaces() {
	for _, surface := range s.surfaces {
		surface.Reset()
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) publishVisitor(eventType kafka.EventType, key domain.VisitorKey) {
	if s.publisher == nil {
		return
	}
	event := kafka.NewVisitorEvent(eventType, key.String(), map[string]interface{}{
		"profile_id": s.profileID,
	})
	if err := s.publisher.PublishEvent(kafka.TopicVisitorEvents, key.String(), event); err != nil {
		s.logger.WithError(err).WithField("event_type", eventType).Warn("failed to publish visitor event")
	}
}
