package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics метрики жизненного цикла заказов. Методы безопасны для nil-получателя.
type OrderMetrics struct {
	ordersCreated       prometheus.Counter
	ordersUpdated       prometheus.Counter
	concurrencyConflict prometheus.Counter
	statusTransitions   *prometheus.CounterVec
	batches             *prometheus.CounterVec
	batchSize           *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
}

// NewOrderMetrics регистрирует метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		})),
		ordersUpdated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_updated_total",
			Help: "Total number of successful order updates",
		})),
		concurrencyConflict: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_concurrency_conflicts_total",
			Help: "Total number of writes rejected because of a stale version",
		})),
		statusTransitions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_status_transitions_total",
			Help: "Total number of status entries appended, by target status",
		}, []string{"status"})),
		batches: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_batch_total",
			Help: "Total number of batch operations, by operation and result",
		}, []string{"operation", "result"})),
		batchSize: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orders_batch_size",
			Help:    "Number of items per batch operation",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}, []string{"operation"})),
		cacheLookups: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_material_cache_lookups_total",
			Help: "Material name cache lookups, by kind and result (hit, miss, error)",
		}, []string{"kind", "result"})),
		operationDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orders_operation_duration_seconds",
			Help:    "Duration of order operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordOrderUpdated увеличивает счётчик обновлений.
func (m *OrderMetrics) RecordOrderUpdated() {
	if m == nil {
		return
	}
	m.ordersUpdated.Inc()
}

// RecordConcurrencyConflict увеличивает счётчик конфликтов версий.
func (m *OrderMetrics) RecordConcurrencyConflict() {
	if m == nil {
		return
	}
	m.concurrencyConflict.Inc()
}

// RecordStatusTransition учитывает добавленную запись истории.
func (m *OrderMetrics) RecordStatusTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

// RecordBatch учитывает пакетную операцию и её размер.
func (m *OrderMetrics) RecordBatch(operation string, size int, ok bool) {
	if m == nil {
		return
	}
	result := "committed"
	if !ok {
		result = "rolled_back"
	}
	m.batches.WithLabelValues(operation, result).Inc()
	m.batchSize.WithLabelValues(operation).Observe(float64(size))
}

// RecordCacheLookup учитывает обращение к кэшу названий материалов.
func (m *OrderMetrics) RecordCacheLookup(kind, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// ObserveOperation записывает длительность операции с момента started.
func (m *OrderMetrics) ObserveOperation(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
