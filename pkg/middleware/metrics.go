package middleware

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reliwire-dev/reliwire/pkg/processor"
	"github.com/reliwire-dev/reliwire/pkg/wire"
)

// MetricsConfig configures the Prometheus hooks.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reliwire").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for heartbeat RTT in seconds.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus hooks.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the RTT histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "reliwire",
		// RTTs live well below typical request latencies.
		Buckets:  []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		Registry: prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus instruments for the engine.
type metrics struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	requestsInflight prometheus.Gauge
	requestOutcomes  *prometheus.CounterVec
	noteAcks         *prometheus.CounterVec
	responseAcks     *prometheus.CounterVec
	heartbeatRTT     prometheus.Histogram
	protocolErrors   *prometheus.CounterVec
	closes           *prometheus.CounterVec
}

// globalMetrics is the singleton instrument set, created on first call
// to Prometheus(). Later calls reuse it regardless of options, so every
// engine in the process reports into one family.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_sent_total",
			Help:        "Messages handed to the transport, by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_received_total",
			Help:        "Successfully decoded inbound messages, by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_sent_total",
			Help:        "Serialized bytes handed to the transport",
			ConstLabels: config.ConstLabels,
		}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_received_total",
			Help:        "Serialized bytes received and decoded",
			ConstLabels: config.ConstLabels,
		}),

		requestsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_inflight",
			Help:        "Requests sent and not yet resolved",
			ConstLabels: config.ConstLabels,
		}),

		requestOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_outcomes_total",
			Help:        "Terminal request outcomes by code (0 is success)",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		noteAcks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "note_ack_outcomes_total",
			Help:        "Note acknowledgement outcomes by code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		responseAcks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "response_ack_outcomes_total",
			Help:        "Response acknowledgement outcomes by code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		heartbeatRTT: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "heartbeat_rtt_seconds",
			Help:        "Ping/pong round-trip time",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		protocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "protocol_errors_total",
			Help:        "Reported non-fatal protocol errors by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		closes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_closed_total",
			Help:        "Engine closures by origin",
			ConstLabels: config.ConstLabels,
		}, []string{"origin"}),
	}
}

// Prometheus returns hooks that record engine activity as Prometheus
// metrics.
//
// Metrics collected:
//   - reliwire_messages_sent_total / reliwire_messages_received_total
//   - reliwire_bytes_sent_total / reliwire_bytes_received_total
//   - reliwire_requests_inflight
//   - reliwire_request_outcomes_total by outcome code
//   - reliwire_note_ack_outcomes_total / reliwire_response_ack_outcomes_total
//   - reliwire_heartbeat_rtt_seconds
//   - reliwire_protocol_errors_total by kind
//   - reliwire_connections_closed_total by origin
//
// Example:
//
//	cfg := processor.DefaultConfig()
//	cfg.Hooks = middleware.Prometheus(
//	    middleware.WithNamespace("myapp"),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) processor.Hooks {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return processor.Hooks{
		MessageSent: func(t wire.MessageType, size int) {
			m.messagesSent.WithLabelValues(string(t)).Inc()
			m.bytesSent.Add(float64(size))
		},
		MessageReceived: func(t wire.MessageType, size int) {
			m.messagesReceived.WithLabelValues(string(t)).Inc()
			m.bytesReceived.Add(float64(size))
		},
		RequestSent: func(string) {
			m.requestsInflight.Inc()
		},
		RequestResolved: func(_ string, code processor.Code) {
			m.requestsInflight.Dec()
			m.requestOutcomes.WithLabelValues(code.String()).Inc()
		},
		NoteAckResolved: func(code processor.Code) {
			m.noteAcks.WithLabelValues(code.String()).Inc()
		},
		ResponseAckResolved: func(code processor.Code) {
			m.responseAcks.WithLabelValues(code.String()).Inc()
		},
		HeartbeatRTT: func(rtt time.Duration) {
			m.heartbeatRTT.Observe(rtt.Seconds())
		},
		ProtocolError: func(kind string) {
			m.protocolErrors.WithLabelValues(kind).Inc()
		},
		Closed: func(byHeartbeat bool) {
			origin := "application"
			if byHeartbeat {
				origin = "heartbeat"
			}
			m.closes.WithLabelValues(origin).Inc()
		},
	}
}

// Collector exposes the global instruments for custom inspection.
type Collector struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	requestsInflight prometheus.Gauge
	requestOutcomes  *prometheus.CounterVec
	noteAcks         *prometheus.CounterVec
	responseAcks     *prometheus.CounterVec
	heartbeatRTT     prometheus.Histogram
	protocolErrors   *prometheus.CounterVec
	closes           *prometheus.CounterVec
}

// GetMetrics returns the global collector, or nil before the first
// Prometheus() call.
func GetMetrics() *Collector {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		return nil
	}
	return &Collector{
		messagesSent:     globalMetrics.messagesSent,
		messagesReceived: globalMetrics.messagesReceived,
		requestsInflight: globalMetrics.requestsInflight,
		requestOutcomes:  globalMetrics.requestOutcomes,
		noteAcks:         globalMetrics.noteAcks,
		responseAcks:     globalMetrics.responseAcks,
		heartbeatRTT:     globalMetrics.heartbeatRTT,
		protocolErrors:   globalMetrics.protocolErrors,
		closes:           globalMetrics.closes,
	}
}
