// Package metrics exposes harness counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tdm/pkg/events"
)

const namespace = "tdm"

type Metrics struct {
	Registry *prometheus.Registry

	RecordsEncoded *prometheus.CounterVec
	Episodes       prometheus.Counter
	LongEpisodes   prometheus.Counter
	FramesSent     prometheus.Counter
	Clients        prometheus.Gauge
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RecordsEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_encoded_total",
			Help:      "Tuples written to record streams.",
		}, []string{"stream"}),
		Episodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_episodes_total",
			Help:      "Trigger episodes found in device output.",
		}),
		LongEpisodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "long_trigger_episodes_total",
			Help:      "Trigger episodes that reached the watchdog limit.",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Time frames broadcast to websocket clients.",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected websocket clients.",
		}),
	}
	m.Registry.MustRegister(m.RecordsEncoded, m.Episodes, m.LongEpisodes, m.FramesSent, m.Clients)
	return m
}

// ObserveRecords adds n tuples to the named stream ("input", "calibration", "output").
func (m *Metrics) ObserveRecords(stream string, n int) {
	if m == nil {
		return
	}
	m.RecordsEncoded.WithLabelValues(stream).Add(float64(n))
}

func (m *Metrics) ObserveReport(rep *events.Report) {
	if m == nil || rep == nil {
		return
	}
	m.Episodes.Add(float64(len(rep.Episodes)))
	m.LongEpisodes.Add(float64(len(rep.Long)))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
