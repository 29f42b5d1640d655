package livechat

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ConnectionState   prometheus.Gauge
	ReconnectAttempts prometheus.Counter
	InboundEvents     *prometheus.CounterVec
	OutboundEvents    *prometheus.CounterVec
	DroppedAcks       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livechat_connection_state",
			Help: "Current connection state (0=disconnected, 1=connecting, 2=connected, 3=error)",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livechat_reconnect_attempts_total",
			Help: "Total number of scheduled reconnect attempts",
		}),
		InboundEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechat_inbound_events_total",
				Help: "Total number of frames received, by event name",
			},
			[]string{"event"},
		),
		OutboundEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechat_outbound_events_total",
				Help: "Total number of frames written, by event name",
			},
			[]string{"event"},
		),
		DroppedAcks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechat_dropped_acks_total",
				Help: "Best-effort emits dropped because the client was not connected",
			},
			[]string{"event"},
		),
	}
	for _, c := range []prometheus.Collector{
		m.ConnectionState, m.ReconnectAttempts, m.InboundEvents, m.OutboundEvents, m.DroppedAcks,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setState(s ConnectionState) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(s))
}

func (m *Metrics) reconnectScheduled() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

func (m *Metrics) inbound(event string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) outbound(event string) {
	if m == nil {
		return
	}
	m.OutboundEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) dropped(event string) {
	if m == nil {
		return
	}
	m.DroppedAcks.WithLabelValues(event).Inc()
}
