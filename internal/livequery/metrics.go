package livequery

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	active        prometheus.Gauge
	pushed        prometheus.Counter
	refreshErrors prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "classfeed",
			Name:      "live_subscriptions",
			Help:      "Number of open live feed subscriptions.",
		}),
		pushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "classfeed",
			Name:      "snapshots_pushed_total",
			Help:      "Snapshots handed to subscribers.",
		}),
		refreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "classfeed",
			Name:      "snapshot_refresh_errors_total",
			Help:      "Failed snapshot refreshes.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.pushed, m.refreshErrors)
	}
	return m
}
