// Package metrics exports multiplexer and store activity to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// DefaultNamespace is used when NewPrometheus is given an empty namespace.
const DefaultNamespace = "redismux"

// PrometheusCollector implements pubsub.MetricsCollector backed by Prometheus.
// Metrics are registered lazily on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	deliveries    *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	readerErrors  *prometheus.CounterVec
	physicalCalls *prometheus.CounterVec
	physicalNames *prometheus.CounterVec
	activeKeys    *prometheus.GaugeVec
	subscribers   prometheus.Gauge
	leaks         prometheus.Counter
	publishes     *prometheus.CounterVec
}

var _ pubsub.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a collector. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pubsub",
			Name:      "deliveries_total",
			Help:      "Messages pushed into subscriber queues, by kind (channel, pattern).",
		}, []string{"kind"})

		p.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pubsub",
			Name:      "dropped_total",
			Help:      "Messages read from the store that reached no subscriber.",
		}, []string{"kind"})

		p.readerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pubsub",
			Name:      "reader_errors_total",
			Help:      "Failed reads on the subscription connection (fatal=true in strict mode).",
		}, []string{"fatal"})

		p.physicalCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pubsub",
			Name:      "physical_calls_total",
			Help:      "Subscribe-family calls issued on the subscription connection.",
		}, []string{"op", "result"})

		p.physicalNames = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pubsub",
			Name:      "physical_call_names_total",
			Help:      "Channels and patterns carried by subscribe-family calls.",
		}, []string{"op"})

		p.activeKeys = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "pubsub",
			Name:      "active_keys",
			Help:      "Channels and patterns currently subscribed on the connection.",
		}, []string{"kind"})

		p.subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "pubsub",
			Name:      "subscribers",
			Help:      "Open subscriber handles.",
		})

		p.leaks = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pubsub",
			Name:      "leaked_subscribers_total",
			Help:      "Subscribers garbage collected without Close while holding keys.",
		})

		p.publishes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "publishes_total",
			Help:      "Publish calls passed through to the store, by result.",
		}, []string{"result"})

		p.reg.MustRegister(p.deliveries)
		p.reg.MustRegister(p.dropped)
		p.reg.MustRegister(p.readerErrors)
		p.reg.MustRegister(p.physicalCalls)
		p.reg.MustRegister(p.physicalNames)
		p.reg.MustRegister(p.activeKeys)
		p.reg.MustRegister(p.subscribers)
		p.reg.MustRegister(p.leaks)
		p.reg.MustRegister(p.publishes)
	})
}

func kind(pattern bool) string {
	if pattern {
		return "pattern"
	}
	return "channel"
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordDelivery counts deliveries, or a drop when deliveries is zero.
func (p *PrometheusCollector) RecordDelivery(pattern bool, deliveries int) {
	p.ensureRegistered()
	if deliveries == 0 {
		p.dropped.WithLabelValues(kind(pattern)).Inc()
		return
	}
	p.deliveries.WithLabelValues(kind(pattern)).Add(float64(deliveries))
}

// RecordReaderError counts a failed read.
func (p *PrometheusCollector) RecordReaderError(fatal bool) {
	p.ensureRegistered()
	if fatal {
		p.readerErrors.WithLabelValues("true").Inc()
	} else {
		p.readerErrors.WithLabelValues("false").Inc()
	}
}

// RecordPhysicalCall counts a subscribe-family call and the names it carried.
func (p *PrometheusCollector) RecordPhysicalCall(op string, names int, err error) {
	p.ensureRegistered()
	p.physicalCalls.WithLabelValues(op, result(err)).Inc()
	if err == nil {
		p.physicalNames.WithLabelValues(op).Add(float64(names))
	}
}

// SetActiveKeys sets the active channel and pattern gauges.
func (p *PrometheusCollector) SetActiveKeys(channels, patterns int) {
	p.ensureRegistered()
	p.activeKeys.WithLabelValues("channel").Set(float64(channels))
	p.activeKeys.WithLabelValues("pattern").Set(float64(patterns))
}

// SetSubscribers sets the open subscriber gauge.
func (p *PrometheusCollector) SetSubscribers(n int) {
	p.ensureRegistered()
	p.subscribers.Set(float64(n))
}

// RecordLeak counts a leaked subscriber.
func (p *PrometheusCollector) RecordLeak() {
	p.ensureRegistered()
	p.leaks.Inc()
}

// RecordPublish counts a publish passthrough.
func (p *PrometheusCollector) RecordPublish(err error) {
	p.ensureRegistered()
	p.publishes.WithLabelValues(result(err)).Inc()
}
