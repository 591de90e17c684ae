package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени заняла операция движка
	OperationDuration *prometheus.HistogramVec

	// Traffic: настройки покрытий по стратегиям и исходам
	SetupTotal *prometheus.CounterVec

	// Возвраты и отмены
	ReturnsTotal       prometheus.Counter
	CancellationsTotal prometheus.Counter

	// Исходы доставки клиентских уведомлений
	NotificationsTotal *prometheus.CounterVec

	// Saturation: активные покрытия в данный момент
	ActiveEngagements prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		OperationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coverage_operation_duration_seconds",
			Help:    "Histogram of coverage engine operation latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),

		SetupTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "coverage_setup_total",
			Help: "Total number of coverage setups by allocation strategy and outcome.",
		}, []string{"strategy", "status"}),

		ReturnsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "coverage_returns_total",
			Help: "Total number of processed returns.",
		}),

		CancellationsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "coverage_cancellations_total",
			Help: "Total number of cancelled engagements.",
		}),

		NotificationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "coverage_notifications_total",
			Help: "Customer notification attempts by result.",
		}, []string{"result"}), // результаты: sent, failed

		ActiveEngagements: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "coverage_active_engagements",
			Help: "Number of currently active coverage engagements.",
		}),
	}
}
