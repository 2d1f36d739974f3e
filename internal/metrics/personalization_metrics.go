package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
)

// Источники выданных рекомендаций.
const (
	SourceService = "service"
	SourceCache   = "cache"
	SourceCatalog = "catalog"
)

// PersonalizationMetrics содержит метрики слоя персонализации.
// Методы безопасны для nil-получателя: без метрик вызовы ничего не делают.
type PersonalizationMetrics struct {
	// Рекомендации
	served       *prometheus.CounterVec
	tierFailures *prometheus.CounterVec
	discarded    prometheus.Counter
	fetchLatency prometheus.Histogram
	inFlight     prometheus.Gauge

	// Кэш
	cacheLookups *prometheus.CounterVec

	// Витрина
	catalogViews    *prometheus.CounterVec
	catalogFailures prometheus.Counter

	// Внешние сервисы
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec

	// Сессии
	activeSessions prometheus.Gauge
}

// NewPersonalizationMetrics регистрирует метрики в глобальном реестре.
func NewPersonalizationMetrics() *PersonalizationMetrics {
	return NewPersonalizationMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewPersonalizationMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewPersonalizationMetricsWithRegisterer(registerer prometheus.Registerer) *PersonalizationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PersonalizationMetrics{
		served: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_recommendations_served_total",
			Help: "Total number of recommendation results served by tier and source",
		}, []string{"tier", "source"}),
		tierFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_recommendation_tier_failures_total",
			Help: "Total number of recommendation tier failures that fell through",
		}, []string{"tier"}),
		discarded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_recommendations_discarded_total",
			Help: "Total number of superseded recommendation results discarded",
		}),
		fetchLatency: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_recommendation_fetch_duration_seconds",
			Help:    "Duration of a full recommendation fallback chain in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_recommendation_fetches_in_flight",
			Help: "Number of recommendation fetches currently running",
		}),
		cacheLookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_recommendation_cache_lookups_total",
			Help: "Total number of session cache lookups by result",
		}, []string{"result"}),
		catalogViews: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_catalog_views_total",
			Help: "Total number of catalog views built by kind and search tier",
		}, []string{"kind", "search_tier"}),
		catalogFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_catalog_failures_total",
			Help: "Total number of catalog listing failures surfaced to callers",
		}),
		upstreamRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_upstream_requests_total",
			Help: "Total number of upstream requests by service and outcome",
		}, []string{"service", "outcome"}),
		upstreamLatency: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_upstream_request_duration_seconds",
			Help:    "Duration of upstream requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		breakerState: registerGaugeVec(registerer, prometheus.GaugeOpts{
			Name: "storefront_upstream_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
		}, []string{"breaker"}),
		activeSessions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_sessions",
			Help: "Number of live storefront sessions",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerGaugeVec(registerer prometheus.Registerer, opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	collector := prometheus.NewGaugeVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.GaugeVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordServed учитывает выданный результат по ступени и источнику.
func (m *PersonalizationMetrics) RecordServed(tier, source string) {
	if m == nil {
		return
	}
	m.served.WithLabelValues(tier, source).Inc()
}

// RecordTierFailure учитывает ошибку ступени, после которой цепочка пошла дальше.
func (m *PersonalizationMetrics) RecordTierFailure(tier string) {
	if m == nil {
		return
	}
	m.tierFailures.WithLabelValues(tier).Inc()
}

// RecordDiscarded учитывает отброшенный устаревший результат.
func (m *PersonalizationMetrics) RecordDiscarded() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}

// RecordFetchStarted увеличивает число выполняющихся цепочек.
func (m *PersonalizationMetrics) RecordFetchStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// RecordFetchFinished уменьшает число выполняющихся цепочек и пишет длительность.
func (m *PersonalizationMetrics) RecordFetchFinished(duration time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.fetchLatency.Observe(duration.Seconds())
}

// RecordCacheLookup учитывает попадание или промах кэша.
func (m *PersonalizationMetrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordCatalogView учитывает построенную витрину.
func (m *PersonalizationMetrics) RecordCatalogView(kind catalog.ViewKind, tier catalog.SearchTier) {
	if m == nil {
		return
	}
	m.catalogViews.WithLabelValues(string(kind), string(tier)).Inc()
}

// RecordCatalogFailure учитывает недоступность каталога.
func (m *PersonalizationMetrics) RecordCatalogFailure() {
	if m == nil {
		return
	}
	m.catalogFailures.Inc()
}

// RecordUpstreamRequest учитывает вызов внешнего сервиса.
func (m *PersonalizationMetrics) RecordUpstreamRequest(service, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(service, outcome).Inc()
	m.upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordBreakerState выставляет состояние circuit breaker.
func (m *PersonalizationMetrics) RecordBreakerState(breaker string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(breaker).Set(float64(state))
}

// SetActiveSessions выставляет число живых сессий.
func (m *PersonalizationMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
