// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package reconciler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "opendkim_operator"

// Collector is a prometheus.Collector publishing reconcile pass
// metrics.
type Collector struct {
	passes   *prometheus.CounterVec
	duration prometheus.Histogram
	restarts prometheus.Counter
	lastPass prometheus.Gauge
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "passes_total",
			Help:      "Completed reconcile passes, by reported status.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pass_duration_seconds",
			Help:      "Time taken to run one reconcile pass.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "service_restarts_total",
			Help:      "Times the daemon was bounced to pick up configuration.",
		}),
		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_pass_timestamp_seconds",
			Help:      "Wall time of the last completed reconcile pass.",
		}),
	}
}

func (c *Collector) observePass(outcome string, elapsed time.Duration) {
	c.passes.WithLabelValues(outcome).Inc()
	c.duration.Observe(elapsed.Seconds())
	c.lastPass.SetToCurrentTime()
}

func (c *Collector) observeRestart() {
	c.restarts.Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.passes.Describe(ch)
	c.duration.Describe(ch)
	c.restarts.Describe(ch)
	c.lastPass.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.passes.Collect(ch)
	c.duration.Collect(ch)
	c.restarts.Collect(ch)
	c.lastPass.Collect(ch)
}
