// Package metrics содержит prometheus-коллекторы приложения.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperations считает операции хранилища по типу, таблице и исходу.
	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carreras_store_operations_total",
		Help: "Total number of store operations by operation, table and outcome",
	}, []string{"operation", "table", "outcome"})

	// StoreLatency - задержка операций хранилища.
	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carreras_store_latency_seconds",
		Help:    "Store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// RealtimeDrops считает уведомления, отброшенные из-за переполненной очереди подписчика.
	RealtimeDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carreras_realtime_drops_total",
		Help: "Total number of change notifications dropped due to backpressure",
	}, []string{"broker", "table"})

	// RealtimeSubscriptions - число активных подписок на изменения.
	RealtimeSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "carreras_realtime_subscriptions",
		Help: "Number of active change subscriptions",
	}, []string{"broker"})

	// AppEventsPublished считает опубликованные события шины по типу и транспорту.
	AppEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carreras_app_events_published_total",
		Help: "Total number of app events published",
	}, []string{"type", "transport"})

	// AppEventsReceived считает доставленные обработчикам события шины.
	AppEventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carreras_app_events_received_total",
		Help: "Total number of app events delivered to handlers",
	}, []string{"type", "transport"})

	// Toasts считает пользовательские уведомления по варианту.
	Toasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carreras_toasts_total",
		Help: "Total number of user-visible notifications by variant",
	}, []string{"variant"})
)

// TrackStore возвращает функцию, которая фиксирует задержку и исход операции (удобно для defer).
func TrackStore(operation, table string) func(err error) {
	start := time.Now()
	return func(err error) {
		StoreLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		StoreOperations.WithLabelValues(operation, table, outcome).Inc()
	}
}
