// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/gyro_computer/internal/gyro"
)

const namespace = "gyro"

// StatsSource is the device view the collector scrapes.
type StatsSource interface {
	Stats() gyro.Stats
	DeviceID() uint32
}

// Collector exports pipeline counters on every scrape.
type Collector struct {
	src StatsSource

	samples          *prometheus.Desc
	reports          *prometheus.Desc
	clockRegressions *prometheus.Desc
	nonFinite        *prometheus.Desc
	nonPositiveScale *prometheus.Desc
	errors           *prometheus.Desc
}

// NewCollector returns a collector reading counters from src.
func NewCollector(src StatsSource) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, []string{"device_id"}, nil)
	}
	return &Collector{
		src:              src,
		samples:          desc("samples_total", "Raw samples processed."),
		reports:          desc("reports_total", "Reports emitted on integrator flush."),
		clockRegressions: desc("clock_regressions_total", "Samples whose timestamp did not advance."),
		nonFinite:        desc("non_finite_samples_total", "NaN or Inf samples skipped by the integrator."),
		nonPositiveScale: desc("non_positive_scale_total", "Samples processed with a zero or negative scale."),
		errors:           desc("errors_total", "Read and publish errors recorded against the device."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.samples
	ch <- c.reports
	ch <- c.clockRegressions
	ch <- c.nonFinite
	ch <- c.nonPositiveScale
	ch <- c.errors
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	id := strconv.FormatUint(uint64(c.src.DeviceID()), 10)
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), id)
	}
	counter(c.samples, s.Samples)
	counter(c.reports, s.Reports)
	counter(c.clockRegressions, s.ClockRegressions)
	counter(c.nonFinite, s.NonFiniteSamples)
	counter(c.nonPositiveScale, s.NonPositiveScale)
	counter(c.errors, s.Errors)
}

// Metrics holds the producer's instruments. It implements gyro.Sink so it
// can sit next to the bus publisher in a gyro.MultiSink.
type Metrics struct {
	Rate          *prometheus.GaugeVec // filtered rate per axis, rad/s
	Integral      *prometheus.GaugeVec // last delta angle per axis, rad
	Window        prometheus.Gauge
	Scaling       prometheus.Gauge
	ReadErrors    prometheus.Counter
	PublishErrors prometheus.Counter
}

// New creates the producer instruments and registers them, plus a
// Collector over src, with reg.
func New(reg prometheus.Registerer, src StatsSource) (*Metrics, error) {
	m := &Metrics{
		Rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_radians_per_second",
			Help:      "Filtered angular rate from the latest report.",
		}, []string{"axis"}),
		Integral: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integral_radians",
			Help:      "Delta angle integrated over the latest report window.",
		}, []string{"axis"}),
		Window: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integral_window_seconds",
			Help:      "Length of the latest integration window.",
		}),
		Scaling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scaling",
			Help:      "Calibration scale applied to the latest report.",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Failed sensor reads.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Reports that failed to reach the bus.",
		}),
	}

	collectors := []prometheus.Collector{m.Rate, m.Integral, m.Window, m.Scaling, m.ReadErrors, m.PublishErrors}
	if src != nil {
		collectors = append(collectors, NewCollector(src))
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register gyro metrics: %w", err)
		}
	}
	return m, nil
}

// Publish records r in the report gauges.
func (m *Metrics) Publish(r gyro.Report) error {
	m.Rate.WithLabelValues("x").Set(r.X)
	m.Rate.WithLabelValues("y").Set(r.Y)
	m.Rate.WithLabelValues("z").Set(r.Z)
	m.Integral.WithLabelValues("x").Set(r.XIntegral)
	m.Integral.WithLabelValues("y").Set(r.YIntegral)
	m.Integral.WithLabelValues("z").Set(r.ZIntegral)
	m.Window.Set(r.Window().Seconds())
	m.Scaling.Set(r.Scaling)
	return nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
