package core

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the hub's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	connections prometheus.Gauge
	roster      prometheus.Gauge
	commands    *prometheus.CounterVec
	delivered   *prometheus.CounterVec
	dropped     prometheus.Counter
	rejected    *prometheus.CounterVec
	displaced   prometheus.Counter
}

// NewMetrics creates and registers the hub collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wirechat_connections_active",
			Help: "Currently attached WebSocket connections.",
		}),
		roster: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wirechat_roster_size",
			Help: "Joined identities in the presence registry.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wirechat_commands_total",
			Help: "Inbound commands handled, by kind.",
		}, []string{"kind"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wirechat_events_delivered_total",
			Help: "Outbound events enqueued to clients, by event.",
		}, []string{"event"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirechat_events_dropped_total",
			Help: "Outbound events dropped because a client buffer was full.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wirechat_commands_rejected_total",
			Help: "Commands that produced no delivery, by error code.",
		}, []string{"code"}),
		displaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirechat_displacements_total",
			Help: "Joins that evicted an earlier record with the same username.",
		}),
	}

	reg.MustRegister(
		m.connections,
		m.roster,
		m.commands,
		m.delivered,
		m.dropped,
		m.rejected,
		m.displaced,
	)
	return m
}

func (m *Metrics) setConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *Metrics) setRoster(n int) {
	if m == nil {
		return
	}
	m.roster.Set(float64(n))
}

func (m *Metrics) command(kind CommandKind) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) delivery(kind EventKind, sent, dropped int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.delivered.WithLabelValues(kind.String()).Add(float64(sent))
	}
	if dropped > 0 {
		m.dropped.Add(float64(dropped))
	}
}

func (m *Metrics) reject(code string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(code).Inc()
}

func (m *Metrics) displacement() {
	if m == nil {
		return
	}
	m.displaced.Inc()
}
