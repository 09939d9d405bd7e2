// Package metrics exposes Prometheus instrumentation for the poll cycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Cycles        prometheus.Counter
	CycleFailures prometheus.Counter
	CyclesSkipped prometheus.Counter

	Vehicles            prometheus.Gauge
	HeadwayResults      prometheus.Gauge
	ConsecutiveFailures prometheus.Gauge

	CycleDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headway_cycles_total",
			Help: "Total poll cycles started.",
		}),
		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headway_cycle_failures_total",
			Help: "Total poll cycles that failed to fetch or parse.",
		}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headway_cycles_skipped_total",
			Help: "Cycles skipped because the previous one was still running.",
		}),
		Vehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "headway_vehicles",
			Help: "Vehicles in the latest published snapshot.",
		}),
		HeadwayResults: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "headway_results",
			Help: "Headway results in the latest published snapshot.",
		}),
		ConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "headway_consecutive_failures",
			Help: "Consecutive failed poll cycles since the last success.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "headway_cycle_duration_seconds",
			Help:    "Duration of a full fetch/fuse/compute/publish cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headway_nats_published_total",
			Help: "Snapshots published to NATS.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headway_nats_publish_errors_total",
			Help: "Snapshot publish attempts that failed.",
		}),
	}

	reg.MustRegister(
		c.Cycles, c.CycleFailures, c.CyclesSkipped,
		c.Vehicles, c.HeadwayResults, c.ConsecutiveFailures,
		c.CycleDuration,
		c.NATSPublished, c.NATSPublishErrs,
	)
	return c
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// ObserveCycle records one cycle's duration.
func (c *Collector) ObserveCycle(d time.Duration) {
	c.CycleDuration.Observe(d.Seconds())
}

// PublishedInc and PublishErrInc satisfy the publisher's metrics interface.
func (c *Collector) PublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) PublishErrInc() { c.NATSPublishErrs.Inc() }
