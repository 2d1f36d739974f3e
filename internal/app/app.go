package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/cleanup"
	"github.com/vladislavdragonenkov/storefront/internal/service/storefront"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Имя сервиса в gRPC health protocol.
const grpcHealthService = "storefront.v1.Personalization"

const shutdownTimeout = 5 * time.Second

// Run поднимает витрину: HTTP API, сервер метрик и health, gRPC health
// и фоновые очистки. Возвращает ctx.Err() после штатной остановки.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	base, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	logger := base.WithField("component", "app")

	m := metrics.NewPersonalizationMetrics()

	deps, err := initRuntimeDependencies(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		} else {
			logger.Info("storage closed")
		}
	}()

	producer, err := initKafkaProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		// Аналитика не обязательна для выдачи.
		producer = nil
	}
	defer closeKafka(producer, logger)

	sessionDeps := storefront.Dependencies{
		Backend:         deps.kv,
		Recommendations: deps.recommendations,
		Catalog:         deps.catalogSource,
		Metrics:         m,
		Logger:          base.WithField("component", "storefront"),
		SessionTTL:      cfg.Session.TTL,
		TokenPrefixLen:  cfg.Session.TokenPrefixLen,
		NewID:           uuid.NewString,
	}
	if producer != nil {
		sessionDeps.Publisher = producer
	}
	registry := storefront.NewRegistry(sessionDeps, storefront.WithIdleTTL(cfg.Session.IdleTTL))
	defer registry.Close()

	catalogSvc := catalog.NewService(deps.catalogSource, catalog.NewGrouper(cfg.Catalog),
		catalog.WithLogger(base.WithField("component", "catalog")),
		catalog.WithObserver(m),
	)

	api := httpapi.NewServer(registry, catalogSvc,
		httpapi.WithLogger(base.WithField("component", "httpapi")),
		httpapi.WithSecureCookies(cfg.Session.SecureCookies),
		httpapi.WithIDGenerator(uuid.NewString),
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	for name, checker := range deps.upstreamCheckers {
		healthHandler.RegisterChecker(name, checker)
	}

	grpcServer, healthServer := newGRPCServer(logger)

	workers := []*cleanup.Worker{
		cleanup.NewWorker("visitor-kv", deps.kv,
			cleanup.WithLogger(base.WithField("component", "cleanup")),
			cleanup.WithInterval(cfg.Cleanup.Interval),
			cleanup.WithBatchSize(cfg.Cleanup.BatchSize),
		),
		cleanup.NewWorker("sessions", registry,
			cleanup.WithLogger(base.WithField("component", "cleanup")),
			cleanup.WithInterval(cfg.Cleanup.Interval),
			cleanup.WithBatchSize(cfg.Cleanup.BatchSize),
		),
	}

	apiListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http api: %w", err)
	}
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiListener.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	apiSrv := &http.Server{Handler: api.Routes(), ReadHeaderTimeout: 10 * time.Second}
	metricsSrv := newMetricsServer(cfg.MetricsAddr, healthHandler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("HTTP API слушает %s", apiListener.Addr())
		if err := apiSrv.Serve(apiListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("метрики доступны по адресу %s/metrics", cfg.MetricsAddr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", cfg.MetricsAddr, cfg.MetricsAddr, cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", grpcListener.Addr())
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	for _, w := range workers {
		g.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(grpcHealthService, healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// newGRPCServer собирает gRPC сервер с health, reflection и метриками.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcHealthService, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(server)
	grpcMetrics.InitializeMetrics(server)
	return server, healthServer
}

func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// newMetricsServer отдаёт /metrics для Prometheus и проверки состояния.
func newMetricsServer(addr string, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
