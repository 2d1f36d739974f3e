package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/storage/badgerkv"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/upstream/httpclient"
	"github.com/vladislavdragonenkov/storefront/internal/upstream/mock"
)

// runtimeDependencies держит хранилище и внешние сервисы, выбранные конфигурацией.
type runtimeDependencies struct {
	kv              domain.ExpiringKeyValueStore
	catalogSource   domain.CatalogService
	recommendations domain.RecommendationService

	storageChecker   healthcheck.Checker
	upstreamCheckers map[string]healthcheck.Checker

	closeFn func() error
}

func (d *runtimeDependencies) close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// initRuntimeDependencies открывает хранилище и создаёт клиентов апстрима.
func initRuntimeDependencies(ctx context.Context, cfg Config, m *metrics.PersonalizationMetrics, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{upstreamCheckers: make(map[string]healthcheck.Checker)}

	if err := initStorage(ctx, cfg.Storage, deps, logger); err != nil {
		return nil, err
	}
	if err := initUpstream(cfg.Upstream, m, deps, logger); err != nil {
		_ = deps.close()
		return nil, err
	}
	return deps, nil
}

func initStorage(ctx context.Context, cfg StorageConfig, deps *runtimeDependencies, logger *log.Entry) error {
	switch cfg.Driver {
	case StorageDriverMemory, "":
		store := memory.NewKeyValueStore()
		deps.kv = store
		if pinger, ok := store.(domain.Pinger); ok {
			deps.storageChecker = healthcheck.NewPingChecker("storage", pinger)
		}
		logger.Info("visitor storage: memory")
		return nil

	case StorageDriverBadger:
		store, err := badgerkv.Open(cfg.Badger.Path, logger.WithField("component", "badger-store"))
		if err != nil {
			return err
		}
		deps.kv = store
		deps.storageChecker = healthcheck.NewPingChecker("storage", store)
		deps.closeFn = store.Close
		logger.WithField("path", cfg.Badger.Path).Info("visitor storage: badger")
		return nil

	case StorageDriverPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.OpenWithOptions(ctx, cfg.Postgres.DSN, cfg.Postgres.Pool)
		if err != nil {
			return err
		}
		if cfg.Postgres.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		kv := postgres.NewKeyValueStore(store)
		deps.kv = kv
		deps.storageChecker = healthcheck.NewPingChecker("storage", kv)
		deps.closeFn = store.Close
		logger.Info("visitor storage: postgres")
		return nil

	default:
		return fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func initUpstream(cfg UpstreamConfig, m *metrics.PersonalizationMetrics, deps *runtimeDependencies, logger *log.Entry) error {
	switch cfg.Mode {
	case UpstreamModeMock, "":
		demo := mock.DemoCatalog()
		recs := mock.NewRecommendationService(demo)
		recs.Latency = cfg.MockLatency
		deps.catalogSource = mock.NewCatalogService(demo)
		deps.recommendations = recs
		logger.Warn("upstream: in-process mock services with demo catalog")
		return nil

	case UpstreamModeHTTP:
		catalogClient, err := httpclient.NewCatalogClient(cfg.Catalog,
			httpclient.WithLogger(logger.WithField("component", "catalog-client")),
			httpclient.WithMetrics(m),
		)
		if err != nil {
			return err
		}
		recsClient, err := httpclient.NewRecommendationClient(cfg.Recommendations,
			httpclient.WithLogger(logger.WithField("component", "recommendations-client")),
			httpclient.WithMetrics(m),
		)
		if err != nil {
			return err
		}
		deps.catalogSource = catalogClient
		deps.recommendations = recsClient
		// Разомкнутый breaker рекомендаций деградирует витрину, но не делает её неготовой.
		deps.upstreamCheckers[httpclient.ServiceCatalog] = healthcheck.NewOptionalChecker(httpclient.ServiceCatalog, catalogClient.Ping)
		deps.upstreamCheckers[httpclient.ServiceRecommendations] = healthcheck.NewOptionalChecker(httpclient.ServiceRecommendations, recsClient.Ping)
		return nil

	default:
		return fmt.Errorf("unsupported upstream mode: %s", cfg.Mode)
	}
}
