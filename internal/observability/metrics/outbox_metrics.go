package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the transactional outbox drain loop: how far behind
// the publisher runs and how events leave the table.
type OutboxMetrics struct {
	publishLag      prometheus.Histogram
	backlog         prometheus.Gauge
	eventsPublished *prometheus.CounterVec
}

var (
	outboxMetricsOnce sync.Once
	outboxMetrics     *OutboxMetrics
)

func Outbox() *OutboxMetrics {
	return OutboxWithConfig(Config{})
}

func OutboxWithConfig(cfg Config) *OutboxMetrics {
	outboxMetricsOnce.Do(func() {
		outboxMetrics = newOutboxMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return outboxMetrics
}

func ResetOutboxMetricsForTest() {
	outboxMetricsOnce = sync.Once{}
	outboxMetrics = nil
}

func newOutboxMetrics(registerer prometheus.Registerer, cfg Config) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "powerpay"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	publishLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "powerpay_outbox_publish_lag_seconds",
			Help: "Delay between an event being stored and it reaching the broker.",
			Buckets: []float64{
				0.5,
				1,
				5,
				15,
				60,
				300,  // 5m
				900,  // 15m
				3600, // 1h
			},
			ConstLabels: constLabels,
		},
	)

	backlog := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "powerpay_outbox_backlog_total",
			Help:        "Number of stored events not yet published.",
			ConstLabels: constLabels,
		},
	)

	eventsPublished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "powerpay_outbox_events_published_total",
			Help:        "Total outbox events drained to the broker.",
			ConstLabels: constLabels,
		},
		[]string{"event_type", "result"}, // result: success | failed
	)

	registerer.MustRegister(
		publishLag,
		backlog,
		eventsPublished,
	)

	return &OutboxMetrics{
		publishLag:      publishLag,
		backlog:         backlog,
		eventsPublished: eventsPublished,
	}
}

func (m *OutboxMetrics) ObservePublishLag(lag time.Duration) {
	if m == nil {
		return
	}
	seconds := lag.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.publishLag.Observe(seconds)
}

func (m *OutboxMetrics) SetBacklog(value int64) {
	if m == nil {
		return
	}
	m.backlog.Set(float64(value))
}

func (m *OutboxMetrics) IncPublished(eventType, result string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}
