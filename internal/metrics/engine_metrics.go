package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics содержит метрики движка резервирования и жизненного цикла заказов.
type EngineMetrics struct {
	// Счётчики операций жизненного цикла
	ordersCreated prometheus.Counter
	ordersUpdated prometheus.Counter
	ordersDeleted prometheus.Counter
	ordersFailed  *prometheus.CounterVec

	// Счётчики движений остатков
	reservations prometheus.Counter
	releases     prometheus.Counter
	rollbacks    prometheus.Counter

	// Конфликты CAS при read-modify-write остатка
	casConflicts prometheus.Counter

	// Гистограммы времени выполнения
	operationDuration *prometheus.HistogramVec

	// Счётчики событий
	ledgerEvents prometheus.Counter
	outboxEvents prometheus.Counter

	// Gauge для операций в полёте
	inFlightOps prometheus.Gauge
}

// NewEngineMetrics создаёт новый экземпляр метрик движка.
func NewEngineMetrics() *EngineMetrics {
	return newEngineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newEngineMetricsWithRegisterer(registerer prometheus.Registerer) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &EngineMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersUpdated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_orders_updated_total",
			Help: "Total number of orders updated",
		}),
		ordersDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_orders_deleted_total",
			Help: "Total number of orders deleted",
		}),
		ordersFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "catalog_orders_failed_total",
			Help: "Total number of failed order operations grouped by operation",
		}, []string{"operation"}),
		reservations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_stock_reservations_total",
			Help: "Total number of committed stock reservations (per order)",
		}),
		releases: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_stock_releases_total",
			Help: "Total number of committed stock releases (per order)",
		}),
		rollbacks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_stock_rollbacks_total",
			Help: "Total number of mid-order reservation rollbacks",
		}),
		casConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_stock_cas_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts on product stock",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "catalog_order_operation_duration_seconds",
			Help:    "Duration of order lifecycle operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		ledgerEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_ledger_events_total",
			Help: "Total number of stock movements appended to the ledger",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "catalog_outbox_events_total",
			Help: "Total number of events enqueued to the transactional outbox",
		}),
		inFlightOps: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "catalog_order_operations_in_flight",
			Help: "Number of order lifecycle operations currently in flight",
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

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *EngineMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderUpdated увеличивает счётчик обновлённых заказов.
func (m *EngineMetrics) RecordOrderUpdated() {
	m.ordersUpdated.Inc()
}

// RecordOrderDeleted увеличивает счётчик удалённых заказов.
func (m *EngineMetrics) RecordOrderDeleted() {
	m.ordersDeleted.Inc()
}

// RecordOrderFailed увеличивает счётчик неудачных операций по типу операции.
func (m *EngineMetrics) RecordOrderFailed(operation string) {
	m.ordersFailed.WithLabelValues(operation).Inc()
}

// RecordReservation увеличивает счётчик зафиксированных резервирований.
func (m *EngineMetrics) RecordReservation() {
	m.reservations.Inc()
}

// RecordRelease увеличивает счётчик зафиксированных возвратов.
func (m *EngineMetrics) RecordRelease() {
	m.releases.Inc()
}

// RecordRollback увеличивает счётчик откатов частично применённого резервирования.
func (m *EngineMetrics) RecordRollback() {
	m.rollbacks.Inc()
}

// RecordCASConflict увеличивает счётчик конфликтов optimistic locking по остаткам.
func (m *EngineMetrics) RecordCASConflict() {
	m.casConflicts.Inc()
}

// RecordOperationDuration записывает время выполнения операции жизненного цикла.
func (m *EngineMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLedgerEvent увеличивает счётчик записей журнала движений.
func (m *EngineMetrics) RecordLedgerEvent() {
	m.ledgerEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *EngineMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordOperationStarted увеличивает количество операций в полёте.
func (m *EngineMetrics) RecordOperationStarted() {
	m.inFlightOps.Inc()
}

// RecordOperationFinished уменьшает количество операций в полёте.
func (m *EngineMetrics) RecordOperationFinished() {
	m.inFlightOps.Dec()
}
