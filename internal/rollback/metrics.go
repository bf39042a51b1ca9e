package rollback

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the Rollback Session's health as Prometheus
// instruments, wired into the debug inspector in cmd/nethercorectl.
// Grounded on the observability package the example pack's
// kick-game-stream repo builds around client_golang
// (internal/api/observability.go): one struct bundling the
// registration and the instruments together, constructed once per
// session and registered against a caller-supplied registry.
type Metrics struct {
	FrameAdvantage   *prometheus.GaugeVec
	RollbackDepth    prometheus.Histogram
	RollbackCount    prometheus.Counter
	DesyncCount      prometheus.Counter
	DisconnectCount  *prometheus.CounterVec
}

// NewMetrics constructs and registers the Rollback Session's
// instruments against reg. Safe to call once per session; panics on
// duplicate registration, matching client_golang's own MustRegister
// convention.
func NewMetrics(reg prometheus.Registerer, sessionNonce string) *Metrics {
	m := &Metrics{
		FrameAdvantage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "nethercore",
			Subsystem:   "rollback",
			Name:        "frame_advantage",
			Help:        "Rolling average ticks the local peer is ahead of each remote peer's last confirmed tick.",
			ConstLabels: prometheus.Labels{"session": sessionNonce},
		}, []string{"player"}),
		RollbackDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "nethercore",
			Subsystem:   "rollback",
			Name:        "depth_ticks",
			Help:        "Number of ticks resimulated per rollback.",
			Buckets:     prometheus.LinearBuckets(0, 1, 12),
			ConstLabels: prometheus.Labels{"session": sessionNonce},
		}),
		RollbackCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "nethercore",
			Subsystem:   "rollback",
			Name:        "total",
			Help:        "Total number of rollbacks performed.",
			ConstLabels: prometheus.Labels{"session": sessionNonce},
		}),
		DesyncCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "nethercore",
			Subsystem:   "rollback",
			Name:        "desync_total",
			Help:        "Total number of confirmed-tick checksum mismatches detected.",
			ConstLabels: prometheus.Labels{"session": sessionNonce},
		}),
		DisconnectCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "nethercore",
			Subsystem:   "rollback",
			Name:        "disconnect_total",
			Help:        "Total number of player disconnect timeouts observed.",
			ConstLabels: prometheus.Labels{"session": sessionNonce},
		}, []string{"player"}),
	}
	reg.MustRegister(m.FrameAdvantage, m.RollbackDepth, m.RollbackCount, m.DesyncCount, m.DisconnectCount)
	return m
}
