package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/reliwire-dev/reliwire/pkg/processor"
	"github.com/reliwire-dev/reliwire/pkg/wire"
)

func resetGlobalMetricsForTest() {
	globalMetricsMu.Lock()
	globalMetrics = nil
	globalMetricsMu.Unlock()
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestPrometheusHooks_RecordMessages(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	hooks := Prometheus(WithRegistry(reg))

	hooks.MessageSent(wire.TypePing, 24)
	hooks.MessageSent(wire.TypePing, 24)
	hooks.MessageReceived(wire.TypePong, 24)

	c := GetMetrics()
	if c == nil {
		t.Fatal("expected GetMetrics to return collector after initialization")
	}
	if got := metricCounterValue(t, c.messagesSent.WithLabelValues("ping")); got != 2 {
		t.Fatalf("messages_sent_total(ping)=%v, want 2", got)
	}
	if got := metricCounterValue(t, c.messagesReceived.WithLabelValues("pong")); got != 1 {
		t.Fatalf("messages_received_total(pong)=%v, want 1", got)
	}
}

func TestPrometheusHooks_RequestLifecycle(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	hooks := Prometheus(WithRegistry(reg))
	c := GetMetrics()

	hooks.RequestSent("s1")
	hooks.RequestSent("s2")
	if got := metricGaugeValue(t, c.requestsInflight); got != 2 {
		t.Fatalf("requests_inflight=%v, want 2", got)
	}

	hooks.RequestResolved("s1", 0)
	hooks.RequestResolved("s2", processor.FailureTimeoutAckPending)

	if got := metricGaugeValue(t, c.requestsInflight); got != 0 {
		t.Fatalf("requests_inflight=%v, want 0", got)
	}
	if got := metricCounterValue(t, c.requestOutcomes.WithLabelValues("0")); got != 1 {
		t.Fatalf("request_outcomes_total(0)=%v, want 1", got)
	}
	if got := metricCounterValue(t, c.requestOutcomes.WithLabelValues("2.2")); got != 1 {
		t.Fatalf("request_outcomes_total(2.2)=%v, want 1", got)
	}
}

func TestPrometheusHooks_AckAndRTT(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	hooks := Prometheus(WithRegistry(reg))
	c := GetMetrics()

	hooks.NoteAckResolved(processor.AckArrived)
	hooks.ResponseAckResolved(processor.AckTimedOut)
	hooks.HeartbeatRTT(42 * time.Millisecond)
	hooks.ProtocolError("late_noteAck")
	hooks.Closed(true)
	hooks.Closed(false)

	if got := metricCounterValue(t, c.noteAcks.WithLabelValues("0")); got != 1 {
		t.Fatalf("note_ack_outcomes_total(0)=%v, want 1", got)
	}
	if got := metricCounterValue(t, c.responseAcks.WithLabelValues("2")); got != 1 {
		t.Fatalf("response_ack_outcomes_total(2)=%v, want 1", got)
	}
	if got := metricHistogramCount(t, c.heartbeatRTT); got != 1 {
		t.Fatalf("heartbeat_rtt_seconds count=%v, want 1", got)
	}
	if got := metricCounterValue(t, c.protocolErrors.WithLabelValues("late_noteAck")); got != 1 {
		t.Fatalf("protocol_errors_total(late_noteAck)=%v, want 1", got)
	}
	if got := metricCounterValue(t, c.closes.WithLabelValues("heartbeat")); got != 1 {
		t.Fatalf("connections_closed_total(heartbeat)=%v, want 1", got)
	}
	if got := metricCounterValue(t, c.closes.WithLabelValues("application")); got != 1 {
		t.Fatalf("connections_closed_total(application)=%v, want 1", got)
	}
}

func TestPrometheusHooks_SingletonSurvivesSecondCall(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	first := Prometheus(WithRegistry(reg))
	// Second call must not re-register; a fresh registry here would
	// panic inside promauto if it did.
	second := Prometheus(WithRegistry(prometheus.NewRegistry()))

	first.MessageSent(wire.TypeNote, 1)
	second.MessageSent(wire.TypeNote, 1)

	c := GetMetrics()
	if got := metricCounterValue(t, c.messagesSent.WithLabelValues("note")); got != 2 {
		t.Fatalf("messages_sent_total(note)=%v, want 2 (shared instruments)", got)
	}
}
