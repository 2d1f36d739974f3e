package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
)

func newTestMetrics(t *testing.T) *PersonalizationMetrics {
	t.Helper()
	return NewPersonalizationMetricsWithRegisterer(prometheus.NewRegistry())
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestNewPersonalizationMetrics(t *testing.T) {
	m := newTestMetrics(t)

	if m.served == nil || m.tierFailures == nil || m.discarded == nil {
		t.Fatal("recommendation collectors should not be nil")
	}
	if m.cacheLookups == nil || m.catalogViews == nil || m.catalogFailures == nil {
		t.Fatal("cache and catalog collectors should not be nil")
	}
	if m.upstreamRequests == nil || m.breakerState == nil || m.activeSessions == nil {
		t.Fatal("upstream and session collectors should not be nil")
	}
}

func TestNewPersonalizationMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPersonalizationMetricsWithRegisterer(reg)
	second := NewPersonalizationMetricsWithRegisterer(reg)

	first.RecordDiscarded()
	second.RecordDiscarded()

	if got := counterValue(t, first.discarded); got != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", got)
	}
}

func TestRecordServed(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordServed("cart", SourceCache)
	m.RecordServed("cart", SourceCache)
	m.RecordServed("product", SourceCatalog)

	if got := counterValue(t, m.served.WithLabelValues("cart", SourceCache)); got != 2.0 {
		t.Errorf("expected 2 cached cart results, got %f", got)
	}
	if got := counterValue(t, m.served.WithLabelValues("product", SourceCatalog)); got != 1.0 {
		t.Errorf("expected 1 catalog fallback, got %f", got)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	if got := counterValue(t, m.cacheLookups.WithLabelValues("hit")); got != 1.0 {
		t.Errorf("expected 1 hit, got %f", got)
	}
	if got := counterValue(t, m.cacheLookups.WithLabelValues("miss")); got != 2.0 {
		t.Errorf("expected 2 misses, got %f", got)
	}
}

func TestFetchLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFetchStarted()
	m.RecordFetchStarted()
	if got := gaugeValue(t, m.inFlight); got != 2.0 {
		t.Errorf("expected 2 in flight, got %f", got)
	}

	m.RecordFetchFinished(100 * time.Millisecond)
	if got := gaugeValue(t, m.inFlight); got != 1.0 {
		t.Errorf("expected 1 in flight, got %f", got)
	}

	metric := &dto.Metric{}
	if err := m.fetchLatency.Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 sample, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestRecordCatalogView(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCatalogView(catalog.KindFlat, catalog.SearchFuzzy)
	m.RecordCatalogFailure()

	if got := counterValue(t, m.catalogViews.WithLabelValues("flat", "fuzzy")); got != 1.0 {
		t.Errorf("expected 1 fuzzy view, got %f", got)
	}
	if got := counterValue(t, m.catalogFailures); got != 1.0 {
		t.Errorf("expected 1 failure, got %f", got)
	}
}

func TestRecordUpstreamRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordUpstreamRequest("catalog", "success", 20*time.Millisecond)
	m.RecordBreakerState("catalog", 2)

	if got := counterValue(t, m.upstreamRequests.WithLabelValues("catalog", "success")); got != 1.0 {
		t.Errorf("expected 1 request, got %f", got)
	}
	if got := gaugeValue(t, m.breakerState.WithLabelValues("catalog")); got != 2.0 {
		t.Errorf("expected open breaker, got %f", got)
	}

	observer := m.upstreamLatency.WithLabelValues("catalog")
	metric := &dto.Metric{}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 latency sample, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *PersonalizationMetrics

	m.RecordServed("cart", SourceService)
	m.RecordTierFailure("cart")
	m.RecordDiscarded()
	m.RecordFetchStarted()
	m.RecordFetchFinished(time.Second)
	m.RecordCacheLookup(true)
	m.RecordCatalogView(catalog.KindGrouped, catalog.SearchNone)
	m.RecordCatalogFailure()
	m.RecordUpstreamRequest("x", "y", time.Second)
	m.RecordBreakerState("x", 0)
	m.SetActiveSessions(3)
}
