// Package metrics はリレーのPrometheusメトリクスを提供します
// すべてのメソッドはnilレシーバでも安全に呼び出せます
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

type Metrics struct {
	sessions        prometheus.Gauge
	rooms           prometheus.Gauge
	events          *prometheus.CounterVec
	deliveries      prometheus.Counter
	drops           prometheus.Counter
	directoryErrors *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New は reg にコレクタを登録して Metrics を返します
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live connection sessions.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms with at least one live member.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_relayed_total",
			Help:      "Fan-out rounds by outbound event type.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Events enqueued to participant outbound buffers.",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_drops_total",
			Help:      "Participants evicted because their outbound buffer was full.",
		}),
		directoryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_errors_total",
			Help:      "Room directory backend failures by operation.",
		}, []string{"op"}),
		gatherer: reg,
	}
	reg.MustRegister(m.sessions, m.rooms, m.events, m.deliveries, m.drops, m.directoryErrors)
	return m
}

// NewDefault はGo/プロセスのコレクタ付きの専用レジストリで Metrics を作成します
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler exposes Prometheus metrics at /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

func (m *Metrics) SetActiveRooms(n int) {
	if m != nil {
		m.rooms.Set(float64(n))
	}
}

// EventRelayed は1回のファンアウトと、その配信先数を記録します
func (m *Metrics) EventRelayed(eventType string, recipients int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
	m.deliveries.Add(float64(recipients))
}

func (m *Metrics) DeliveryDropped() {
	if m != nil {
		m.drops.Inc()
	}
}

func (m *Metrics) DirectoryError(op string) {
	if m != nil {
		m.directoryErrors.WithLabelValues(op).Inc()
	}
}
