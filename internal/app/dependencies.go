package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
	"github.com/vladislavdragonenkov/orderflow/internal/service/material"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
	"github.com/vladislavdragonenkov/orderflow/internal/service/retry"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

const (
	breakerMaxFailures = 5
)

// pinger хранилище, умеющее проверять соединение.
type pinger interface {
	Ping(ctx context.Context) error
}

// storage транзакционное хранилище вместе с репозиторием outbox.
type storage struct {
	transactor domain.Transactor
	outbox     domain.OutboxRepository
	ping       pinger
	closer     io.Closer
}

// runtimeDependencies собранный граф зависимостей сервиса.
type runtimeDependencies struct {
	storage  storage
	lookup   domain.MaterialLookup
	cache    *material.Cache
	metrics  *metrics.OrderMetrics
	service  *orders.Service
	batch    *orders.BatchCoordinator
	health   *healthcheck.Handler
	closeFns []func() error
}

// Close освобождает ресурсы в обратном порядке.
func (d *runtimeDependencies) Close() error {
	var errs []error
	for i := len(d.closeFns) - 1; i >= 0; i-- {
		if err := d.closeFns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closeFns = nil
	return errors.Join(errs...)
}

// initRuntimeDependencies собирает хранилище, справочник материалов и сервисы заказов.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &runtimeDependencies{storage: store}
	if store.closer != nil {
		deps.closeFns = append(deps.closeFns, store.closer.Close)
	}

	deps.metrics = metrics.NewOrderMetrics()
	deps.lookup = initMaterialLookup(cfg, logger)
	deps.cache = material.NewCache(deps.lookup,
		material.WithTTL(cfg.MaterialCacheTTL),
		material.WithLookupTimeout(cfg.BatchTimeout),
		material.WithCacheLogger(logger.WithField("component", "material-cache")),
		material.WithCacheMetrics(deps.metrics),
	)

	deps.service = orders.NewService(store.transactor,
		orders.WithNameResolver(deps.cache),
		orders.WithNamesTTL(cfg.MaterialCacheTTL),
		orders.WithLogger(logger.WithField("component", "order-lifecycle")),
		orders.WithMetrics(deps.metrics),
	)
	deps.batch = orders.NewBatchCoordinator(deps.service,
		orders.WithMaxBatchItems(cfg.BatchMaxItems),
		orders.WithBatchTimeout(cfg.BatchTimeout),
	)

	deps.health = healthcheck.NewHandler(version.GetVersion())
	deps.health.RegisterChecker("storage", healthcheck.NewChecker("storage", store.ping.Ping))
	if client, ok := deps.lookup.(*material.Client); ok {
		deps.health.RegisterChecker("material-service", healthcheck.NewOptionalChecker("material-service", client.Ping))
	}

	return deps, nil
}

// initStorage открывает выбранное хранилище.
func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (storage, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.WithField("storage", StorageDriverMemory).Info("storage initialized")
		return storage{transactor: store, outbox: store.OutboxRepository(), ping: store}, nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return storage{}, fmt.Errorf("postgres storage requires %s", envPostgresDSN)
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return storage{}, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return storage{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		logger.WithFields(log.Fields{
			"storage":      StorageDriverPostgres,
			"auto_migrate": cfg.PostgresAutoMigrate,
		}).Info("storage initialized")
		return storage{
			transactor: store,
			outbox:     postgres.NewOutboxRepository(store),
			ping:       store,
			closer:     store,
		}, nil
	default:
		return storage{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initMaterialLookup выбирает HTTP-клиент справочника или локальный mock.
func initMaterialLookup(cfg Config, logger *log.Entry) domain.MaterialLookup {
	if cfg.MaterialServiceURL == "" {
		logger.Warn("material service url is not set, using mock lookup")
		return material.NewMockLookup()
	}

	clientLogger := logger.WithField("component", "material-client")
	return material.NewClient(cfg.MaterialServiceURL,
		material.WithHTTPClient(&http.Client{Timeout: cfg.ExternalTimeout}),
		material.WithRetrier(retry.New(retry.DefaultConfig(), clientLogger)),
		material.WithCircuitBreaker(retry.NewCircuitBreaker(breakerMaxFailures, cfg.ExternalTimeout*6, clientLogger)),
		material.WithClientLogger(clientLogger),
	)
}
