// Package metrics provides Prometheus metrics for radiogate.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Packet directions used as the "direction" label.
const (
	DirectionOutbound = "tun_to_radio"
	DirectionInbound  = "radio_to_tun"
)

// Drop reasons used as the "reason" label.
const (
	ReasonParseError = "parse_error"
	ReasonNoIPLayer  = "no_ip_layer"
	ReasonQueueFull  = "queue_full"
	ReasonOversize   = "oversize"
)

// Metrics holds all Prometheus metrics for the gateway. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Traffic metrics
	PacketsTotal *prometheus.CounterVec
	BytesTotal   *prometheus.CounterVec
	DroppedTotal *prometheus.CounterVec
	Unparsed     *prometheus.CounterVec

	// Address cache metrics
	Resolutions  *prometheus.CounterVec
	Learned      prometheus.Counter
	CacheEntries prometheus.Gauge

	// Radio link metrics
	QueueDepth    prometheus.Gauge
	FramesWritten prometheus.Counter
	FrameErrors   *prometheus.CounterVec

	// System metrics
	Uptime prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.PacketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiogate_packets_total",
			Help: "Packets forwarded, by direction",
		},
		[]string{"direction"},
	)

	m.BytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiogate_bytes_total",
			Help: "Bytes forwarded, by direction",
		},
		[]string{"direction"},
	)

	m.DroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiogate_packets_dropped_total",
			Help: "Packets dropped, by direction and reason",
		},
		[]string{"direction", "reason"},
	)

	m.Unparsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiogate_packets_unparsed_total",
			Help: "Packets that could not be decoded as IPv4 or IPv6",
		},
		[]string{"direction"},
	)

	m.Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiogate_address_resolutions_total",
			Help: "Destination lookups, by result (learned or broadcast)",
		},
		[]string{"result"},
	)

	m.Learned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "radiogate_addresses_learned_total",
			Help: "Sender addresses recorded from inbound frames",
		},
	)

	m.CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "radiogate_address_cache_entries",
			Help: "Entries in the address cache, stale ones included",
		},
	)

	m.QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "radiogate_transmit_queue_depth",
			Help: "Jobs waiting in the transmit queue",
		},
	)

	m.FramesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "radiogate_radio_frames_written_total",
			Help: "API frames written to the radio",
		},
	)

	m.FrameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiogate_radio_frame_errors_total",
			Help: "Malformed or unexpected frames read from the radio",
		},
		[]string{"kind"},
	)

	m.Uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "radiogate_uptime_seconds",
			Help: "Gateway uptime in seconds",
		},
	)

	m.registry.MustRegister(
		m.PacketsTotal,
		m.BytesTotal,
		m.DroppedTotal,
		m.Unparsed,
		m.Resolutions,
		m.Learned,
		m.CacheEntries,
		m.QueueDepth,
		m.FramesWritten,
		m.FrameErrors,
		m.Uptime,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordForwarded counts one forwarded packet of size bytes.
func (m *Metrics) RecordForwarded(direction string, size int) {
	if m == nil {
		return
	}
	m.PacketsTotal.WithLabelValues(direction).Inc()
	m.BytesTotal.WithLabelValues(direction).Add(float64(size))
}

// RecordDropped counts one dropped packet.
func (m *Metrics) RecordDropped(direction, reason string) {
	if m == nil {
		return
	}
	m.DroppedTotal.WithLabelValues(direction, reason).Inc()
}

// RecordUnparsed counts one packet that failed IP decoding.
func (m *Metrics) RecordUnparsed(direction string) {
	if m == nil {
		return
	}
	m.Unparsed.WithLabelValues(direction).Inc()
}

// RecordResolution counts a destination lookup.
func (m *Metrics) RecordResolution(learned bool) {
	if m == nil {
		return
	}
	result := "broadcast"
	if learned {
		result = "learned"
	}
	m.Resolutions.WithLabelValues(result).Inc()
}

// RecordLearned counts an address recorded into the cache.
func (m *Metrics) RecordLearned() {
	if m == nil {
		return
	}
	m.Learned.Inc()
}

// RecordFrameWritten counts an API frame sent to the radio.
func (m *Metrics) RecordFrameWritten() {
	if m == nil {
		return
	}
	m.FramesWritten.Inc()
}

// RecordFrameError counts a bad frame read from the radio.
func (m *Metrics) RecordFrameError(kind string) {
	if m == nil {
		return
	}
	m.FrameErrors.WithLabelValues(kind).Inc()
}
