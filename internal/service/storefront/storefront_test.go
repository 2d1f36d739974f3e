package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/upstream/mock"
)

func newDeps(t *testing.T) (Dependencies, *mock.RecommendationService) {
	t.Helper()
	var seq atomic.Int64
	recs := mock.NewRecommendationService(mock.DemoCatalog())
	return Dependencies{
		Backend:         memory.NewKeyValueStore(),
		Recommendations: recs,
		Catalog:         mock.NewCatalogService(mock.DemoCatalog()),
		Metrics:         metrics.NewPersonalizationMetricsWithRegisterer(prometheus.NewRegistry()),
		SessionTTL:      time.Hour,
		NewID:           func() string { return fmt.Sprintf("guest-%d", seq.Add(1)) },
	}, recs
}

func TestNewSession_Validation(t *testing.T) {
	deps, _ := newDeps(t)

	_, err := NewSession(deps, "", "sid")
	require.ErrorIs(t, err, domain.ErrKeyRequired)

	_, err = NewSession(Dependencies{}, "bid", "sid")
	require.Error(t, err)
}

func TestSession_GuestKeyIsStableAcrossSessions(t *testing.T) {
	deps, _ := newDeps(t)
	ctx := context.Background()

	first, err := NewSession(deps, "bid", "sid-1")
	require.NoError(t, err)
	key := first.VisitorKey(ctx)
	require.Equal(t, domain.VisitorKey("guest-1"), key)
	require.False(t, first.Authenticated(ctx))

	// Новая сессия того же браузера видит тот же guest id.
	second, err := NewSession(deps, "bid", "sid-2")
	require.NoError(t, err)
	require.Equal(t, key, second.VisitorKey(ctx))
}

func TestSession_RecommendPerSurface(t *testing.T) {
	deps, recs := newDeps(t)
	session, err := NewSession(deps, "bid", "sid")
	require.NoError(t, err)
	ctx := context.Background()

	result, applied, err := session.Recommend(ctx, SurfaceCart, []string{"p6", "p5"}, "")
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, domain.TierCart, result.Tier)
	require.Equal(t, "cart-recs-p5_p6", result.Fingerprint)

	again, _, err := session.Recommend(ctx, SurfaceCart, []string{"p5", "p6"}, "")
	require.NoError(t, err)
	require.True(t, again.FromCache)

	cartCalls, _, _ := recs.Calls()
	require.Equal(t, 1, cartCalls)

	snapshot, ok := mustSurface(t, session, SurfaceCart).Snapshot()
	require.True(t, ok)
	require.Equal(t, again.Products, snapshot.Products)

	_, _, err = session.Recommend(ctx, SurfaceName("sidebar"), nil, "")
	require.ErrorIs(t, err, ErrUnknownSurface)
}

func TestSession_SignInResetsSurfacesAndChangesKey(t *testing.T) {
	deps, _ := newDeps(t)
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed() // recommendation.served
	producer.ExpectSendMessageAndSucceed() // visitor.signed_in
	producer.ExpectSendMessageAndSucceed() // visitor.signed_out
	deps.Publisher = kafka.NewProducerFromSync(producer, nil)

	session, err := NewSession(deps, "bid", "sid")
	require.NoError(t, err)
	ctx := context.Background()
	guest := session.VisitorKey(ctx)

	_, applied, err := session.Recommend(ctx, SurfaceHome, nil, "")
	require.NoError(t, err)
	require.True(t, applied)

	key, err := session.SignIn(ctx, domain.Profile{PrimaryID: "acc-42", Email: "a@example.com"})
	require.NoError(t, err)
	require.Equal(t, domain.VisitorKey("acc-42"), key)
	require.True(t, session.Authenticated(ctx))

	_, ok := mustSurface(t, session, SurfaceHome).Snapshot()
	require.False(t, ok, "identity change must clear surfaces")

	back, err := session.SignOut(ctx)
	require.NoError(t, err)
	require.Equal(t, guest, back)

	require.NoError(t, producer.Close())
}

func TestSession_SignInRejectsProfileWithoutIdentity(t *testing.T) {
	deps, _ := newDeps(t)
	session, err := NewSession(deps, "bid", "sid")
	require.NoError(t, err)

	_, err = session.SignIn(context.Background(), domain.Profile{})
	require.ErrorIs(t, err, domain.ErrProfileInvalid)
}

func TestRegistry_AcquireReusesSession(t *testing.T) {
	deps, _ := newDeps(t)
	registry := NewRegistry(deps)
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*Session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := registry.Acquire(ctx, "bid", "sid")
			if err == nil {
				got[i] = s
			}
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		require.Same(t, got[0], s)
	}
	require.Equal(t, 1, registry.Len())

	other, err := registry.Acquire(ctx, "bid", "sid-2")
	require.NoError(t, err)
	require.NotSame(t, got[0], other)
	require.Equal(t, got[0].VisitorKey(ctx), other.VisitorKey(ctx))

	_, err = registry.Acquire(ctx, "", "sid")
	require.True(t, errors.Is(err, domain.ErrKeyRequired))
}

func TestRegistry_DeleteExpiredEvictsIdleSessions(t *testing.T) {
	deps, _ := newDeps(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	registry := NewRegistry(deps, WithIdleTTL(10*time.Minute), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := registry.Acquire(ctx, "bid", "old")
	require.NoError(t, err)
	now = now.Add(15 * time.Minute)
	_, err = registry.Acquire(ctx, "bid", "fresh")
	require.NoError(t, err)

	deleted, err := registry.DeleteExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	require.Equal(t, 1, registry.Len())

	deleted, err = registry.DeleteExpired(ctx, now, 0)
	require.NoError(t, err)
	require.Zero(t, deleted)

	registry.Close()
	require.Zero(t, registry.Len())
}

func mustSurface(t *testing.T, s *Session, name SurfaceName) interface {
	Snapshot() (domain.RecommendationResult, bool)
} {
	t.Helper()
	surface, ok := s.Surface(name)
	require.True(t, ok)
	return surface
}
