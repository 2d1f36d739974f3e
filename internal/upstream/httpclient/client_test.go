package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const productsJSON = `[{"_id":"a1","externalId":"p1","name":"Lamp","brand":"Lumo","category":"Home","price":12.5}]`

func TestCatalogClient_ListAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/products", r.URL.Path)
		_, _ = io.WriteString(w, productsJSON)
	}))
	defer srv.Close()

	client, err := NewCatalogClient(Config{BaseURL: srv.URL + "/api/"})
	require.NoError(t, err)

	products, err := client.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "p1", products[0].ExternalID)
	require.Equal(t, "Home", products[0].Category)
}

func TestRecommendationClient_Endpoints(t *testing.T) {
	var gotBody, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/recommendations/cart":
			raw, _ := io.ReadAll(r.Body)
			gotBody = string(raw)
			gotAuth = r.Header.Get("Authorization")
			_, _ = io.WriteString(w, productsJSON)
		case "/recommendations/product/p 9":
			_, _ = io.WriteString(w, `{"message":"no recommendations"}`)
		case "/recommendations/visitor/guest-1":
			_, _ = io.WriteString(w, `[]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewRecommendationClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ctx := WithBearer(context.Background(), "tok-123")
	cart, err := client.ByCart(ctx, []string{"p1", "p3"})
	require.NoError(t, err)
	require.Len(t, cart, 1)
	require.JSONEq(t, `{"cartItems":["p1","p3"]}`, gotBody)
	require.Equal(t, "Bearer tok-123", gotAuth)

	byProduct, err := client.ByProduct(context.Background(), "p 9")
	require.NoError(t, err)
	require.NotNil(t, byProduct, "non-array body is an empty list")
	require.Empty(t, byProduct)

	byVisitor, err := client.ByVisitor(context.Background(), "guest-1")
	require.NoError(t, err)
	require.Empty(t, byVisitor)
}

func TestClient_Non2xxIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewCatalogClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.ListAll(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := metrics.NewPersonalizationMetricsWithRegisterer(prometheus.NewRegistry())
	client, err := NewRecommendationClient(
		Config{BaseURL: srv.URL, TripFailures: 2, OpenTimeout: time.Minute},
		WithMetrics(m),
	)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.ByVisitor(ctx, "guest")
		require.Error(t, err)
	}
	require.Equal(t, "open", client.BreakerState())
	require.ErrorIs(t, client.Ping(ctx), domain.ErrUpstreamUnavailable)

	_, err = client.ByVisitor(ctx, "guest")
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	require.Equal(t, int32(2), hits.Load(), "open breaker must fail fast")
}

func TestClient_CallerCancellationKeepsBreakerClosed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, productsJSON)
	}))
	defer srv.Close()

	client, err := NewRecommendationClient(Config{BaseURL: srv.URL, TripFailures: 2, OpenTimeout: time.Minute})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := client.ByVisitor(cancelled, "guest")
		require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
		require.ErrorIs(t, err, context.Canceled)
	}
	require.Equal(t, "closed", client.BreakerState())

	products, err := client.ByVisitor(context.Background(), "guest")
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, int32(1), hits.Load())
}

func TestClient_ClientErrorsKeepBreakerClosed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewRecommendationClient(Config{BaseURL: srv.URL, TripFailures: 2, OpenTimeout: time.Minute})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := client.ByProduct(context.Background(), "missing")
		require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	}
	require.Equal(t, "closed", client.BreakerState())
	require.Equal(t, int32(5), hits.Load())
}

func TestIsClientStatus(t *testing.T) {
	require.True(t, isClientStatus(http.StatusNotFound))
	require.True(t, isClientStatus(http.StatusBadRequest))
	require.False(t, isClientStatus(http.StatusTooManyRequests))
	require.False(t, isClientStatus(http.StatusRequestTimeout))
	require.False(t, isClientStatus(http.StatusBadGateway))
}

func TestClient_TransportErrorAndBadURL(t *testing.T) {
	_, err := NewCatalogClient(Config{BaseURL: "not a url"})
	require.Error(t, err)

	client, err := NewCatalogClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	_, err = client.ListAll(context.Background())
	require.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}

func TestDecodeProducts(t *testing.T) {
	products, err := decodeProducts([]byte("  null "))
	require.NoError(t, err)
	require.Empty(t, products)

	_, err = decodeProducts([]byte(`[{"_id":`))
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
