package client

import (
	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors updated by a Client. A nil
// *Metrics disables recording.
type Metrics struct {
	PacketsSent     *prometheus.CounterVec
	PacketsReceived *prometheus.CounterVec
	BytesSent       prometheus.Counter
	BytesReceived   prometheus.Counter
	Connected       prometheus.Gauge
}

// NewMetrics creates the client collectors and registers them with reg
// unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mqttie_packets_sent_total",
				Help: "Total number of MQTT control packets sent.",
			},
			[]string{"type"},
		),
		PacketsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mqttie_packets_received_total",
				Help: "Total number of MQTT control packets received.",
			},
			[]string{"type"},
		),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttie_bytes_sent_total",
			Help: "Total number of bytes written to the transport.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttie_bytes_received_total",
			Help: "Total number of bytes read from the transport.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqttie_connected",
			Help: "The session state (1=Connected, 0=Not connected).",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PacketsSent,
			m.PacketsReceived,
			m.BytesSent,
			m.BytesReceived,
			m.Connected,
		)
	}
	return m
}

func (m *Metrics) packetSent(t mqtt.PacketType, size int) {
	if m == nil {
		return
	}
	m.PacketsSent.WithLabelValues(t.String()).Inc()
	m.BytesSent.Add(float64(size))
}

func (m *Metrics) packetReceived(t mqtt.PacketType) {
	if m == nil {
		return
	}
	m.PacketsReceived.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) bytesReceived(size int) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(float64(size))
}

func (m *Metrics) setConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}
