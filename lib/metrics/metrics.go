// Package metrics exposes prometheus collectors for sockets and forwarders.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

const namespace = "stcp"

// Drop reasons used as the "reason" label of DroppedPackets.
const (
	ReasonCipherMismatch = "cipher_mismatch"
	ReasonDecryptFailed  = "decrypt_failed"
	ReasonFraming        = "framing"
)

// Forwarding directions used as the "direction" label of Forwarded.
const (
	DirectionToSocket = "node_to_socket"
	DirectionToNode   = "socket_to_node"
)

type Metrics struct {
	PacketsSent     prometheus.Counter
	PacketsReceived prometheus.Counter
	BytesSent       prometheus.Counter
	BytesReceived   prometheus.Counter
	DroppedPackets  *prometheus.CounterVec
	OpenSockets     prometheus.Gauge
	Forwarded       *prometheus.CounterVec
	SendLatency     prometheus.Histogram
}

// New builds the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Packets written to sockets.",
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Packets decoded from sockets.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Wire bytes written to sockets.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Wire bytes read from sockets.",
		}),
		DroppedPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_packets_total",
			Help:      "Inbound packets dropped, by reason.",
		}, []string{"reason"}),
		OpenSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sockets",
			Help:      "Sockets with a running receive loop.",
		}),
		Forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwarded_messages_total",
			Help:      "Messages relayed by forward nodes, by direction.",
		}, []string{"direction"}),
		SendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_seconds",
			Help:      "Time spent encrypting and writing one packet.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.PacketsSent, m.PacketsReceived, m.BytesSent, m.BytesReceived,
		m.DroppedPackets, m.OpenSockets, m.Forwarded, m.SendLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, oops.Wrapf(err, "registering stcp metrics")
		}
	}
	return m, nil
}

func (m *Metrics) Sent(wireBytes int, seconds float64) {
	if m == nil {
		return
	}
	m.PacketsSent.Inc()
	m.BytesSent.Add(float64(wireBytes))
	m.SendLatency.Observe(seconds)
}

func (m *Metrics) Read(wireBytes int) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(float64(wireBytes))
}

func (m *Metrics) Received() {
	if m == nil {
		return
	}
	m.PacketsReceived.Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedPackets.WithLabelValues(reason).Inc()
}

func (m *Metrics) SocketOpened() {
	if m == nil {
		return
	}
	m.OpenSockets.Inc()
}

func (m *Metrics) SocketClosed() {
	if m == nil {
		return
	}
	m.OpenSockets.Dec()
}

func (m *Metrics) Forward(direction string) {
	if m == nil {
		return
	}
	m.Forwarded.WithLabelValues(direction).Inc()
}
