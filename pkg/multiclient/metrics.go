package multiclient

import "github.com/prometheus/client_golang/prometheus"

// clientMetrics are optional Prometheus collectors. All methods are nil-safe
// so the hot paths stay branch-free when metrics are disabled.
type clientMetrics struct {
	toolCalls     *prometheus.CounterVec
	routingErrors *prometheus.CounterVec
	collisions    *prometheus.CounterVec
	connected     prometheus.Gauge
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	if reg == nil {
		return nil
	}
	m := &clientMetrics{
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multiclient",
			Name:      "tool_calls_total",
			Help:      "Tool calls dispatched, by server and status.",
		}, []string{"server", "status"}),
		routingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multiclient",
			Name:      "routing_errors_total",
			Help:      "Dispatch failures raised before any session I/O, by kind.",
		}, []string{"kind"}),
		collisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multiclient",
			Name:      "capability_collisions_total",
			Help:      "Same-named capabilities advertised by more than one server.",
		}, []string{"capability"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "multiclient",
			Name:      "connected_servers",
			Help:      "Number of currently connected servers.",
		}),
	}
	reg.MustRegister(m.toolCalls, m.routingErrors, m.collisions, m.connected)
	return m
}

func (m *clientMetrics) observeToolCall(server string, isError bool) {
	if m == nil {
		return
	}
	status := "ok"
	if isError {
		status = "error"
	}
	m.toolCalls.WithLabelValues(server, status).Inc()
}

func (m *clientMetrics) observeRoutingError(kind string) {
	if m == nil {
		return
	}
	m.routingErrors.WithLabelValues(kind).Inc()
}

func (m *clientMetrics) observeCollision(capability string) {
	if m == nil {
		return
	}
	m.collisions.WithLabelValues(capability).Inc()
}

func (m *clientMetrics) setConnected(n int) {
	if m == nil {
		return
	}
	m.connected.Set(float64(n))
}
