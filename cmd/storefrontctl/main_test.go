package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/shuffle"
	"github.com/vladislavdragonenkov/storefront/internal/upstream/mock"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STOREFRONT_CONFIG", "")
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFingerprint_OrderInvariant(t *testing.T) {
	first, err := execute(t, "fingerprint", "p3", "p1")
	require.NoError(t, err)
	second, err := execute(t, "fingerprint", "p1,p3")
	require.NoError(t, err)
	require.Equal(t, first, second)

	var got fingerprintOutput
	require.NoError(t, json.Unmarshal([]byte(first), &got))
	require.Equal(t, "cart-recs-p1_p3", got.Fingerprint)
	require.Equal(t, []string{"p1", "p3"}, got.IDs)

	product, err := execute(t, "fingerprint", "--product", "p9")
	require.NoError(t, err)
	require.Contains(t, product, "product-recs-p9")
}

func TestSeed_MatchesShuffle(t *testing.T) {
	out, err := execute(t, "seed", "guest-42", "--limit", "4")
	require.NoError(t, err)

	var got seedOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, shuffle.Seed("guest-42"), got.Seed)
	require.Len(t, got.Order, 4)

	want := shuffle.Permute(mock.DemoCatalog(), "guest-42")
	for i, id := range got.Order {
		require.Equal(t, want[i].ExternalID, id)
	}
}

func TestView_DemoCatalogGrouped(t *testing.T) {
	out, err := execute(t, "view")
	require.NoError(t, err)

	var view catalog.GroupedView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Equal(t, catalog.KindGrouped, view.Kind)
	require.NotEmpty(t, view.Groups)
}

func TestSearch_ExactMatchOnDemoCatalog(t *testing.T) {
	out, err := execute(t, "search", "lamp")
	require.NoError(t, err)

	var view catalog.GroupedView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Equal(t, catalog.KindFlat, view.Kind)
	require.Equal(t, catalog.SearchExact, view.SearchTier)
	require.Equal(t, "p1", view.Results[0].ExternalID)
}

func TestView_RemoteCatalogUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := execute(t, "view", "--catalog-url", srv.URL)
	require.Error(t, err)
}

func TestMigrate_RequiresDSN(t *testing.T) {
	t.Setenv("STOREFRONT_STORAGE__POSTGRES__DSN", "")
	_, err := execute(t, "migrate", "status")
	require.Error(t, err)
	require.Contains(t, err.Error(), "dsn is required")
}

func TestEventsTail_RequiresBrokers(t *testing.T) {
	t.Setenv("STOREFRONT_KAFKA__BROKERS", "")
	_, err := execute(t, "events", "tail")
	require.Error(t, err)
	require.Contains(t, err.Error(), "brokers are required")
}

func TestLineWriter(t *testing.T) {
	var out bytes.Buffer
	handler := lineWriter(&out)

	err := handler(context.Background(), &sarama.ConsumerMessage{
		Topic:     "storefront.recommendation.events",
		Partition: 1,
		Offset:    7,
		Key:       []byte("guest-1"),
		Value:     []byte(`{"event_type":"recommendation.served","tier":"visitor"}`),
		Timestamp: time.Unix(0, 0).UTC(),
	})
	require.NoError(t, err)

	line := strings.TrimSpace(out.String())
	require.Contains(t, line, `"offset":7`)
	require.Contains(t, line, `"tier":"visitor"`)

	err = handler(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")})
	require.Error(t, err)
}
