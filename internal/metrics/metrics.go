// Package metrics exposes probe and pruning counters for the status API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/runlog"
)

const namespace = "keepalive"

type Metrics struct {
	Probes       *prometheus.CounterVec
	ProbeLatency *prometheus.HistogramVec
	Notifies     *prometheus.CounterVec
	LastRun      prometheus.Gauge
	Pruned       prometheus.Counter
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Keep-alive probes by target and outcome.",
		}, []string{"target", "outcome"}),
		ProbeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Probe request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		Notifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Failure notification fan-outs by result.",
		}, []string{"result"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_pruned_entries_total",
			Help:      "Run log entries removed by retention.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Probes, m.ProbeLatency, m.Notifies, m.LastRun, m.Pruned)
	}
	return m
}

// The observers below are nil-safe so callers can run without metrics.

func (m *Metrics) ObserveProbe(o domain.Outcome) {
	if m == nil {
		return
	}
	m.Probes.WithLabelValues(o.TargetID, o.Kind.String()).Inc()
	if o.Kind != domain.TransportError {
		m.ProbeLatency.WithLabelValues(o.TargetID).Observe(o.Latency.Seconds())
	}
}

func (m *Metrics) ObserveNotify(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Notifies.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRun(finished time.Time, st runlog.PruneStats) {
	if m == nil {
		return
	}
	m.LastRun.Set(float64(finished.Unix()))
	m.Pruned.Add(float64(st.Removed))
}
