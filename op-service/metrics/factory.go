package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// DocumentedMetric describes a metric created through a Factory.
type DocumentedMetric struct {
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Help   string   `json:"help"`
	Labels []string `json:"labels"`
}

// Factory creates metrics that are registered with a registry, and remembers them for documentation.
type Factory interface {
	NewCounter(opts prometheus.CounterOpts) prometheus.Counter
	NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec
	NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge
	NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec
	NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram
	NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec
	Document() []DocumentedMetric
}

type documentor struct {
	registerer prometheus.Registerer
	metrics    []DocumentedMetric
}

func With(registry *prometheus.Registry) Factory {
	return &documentor{registerer: registry}
}

func fullName(ns, subsystem, name string) string {
	return prometheus.BuildFQName(ns, subsystem, name)
}

func (d *documentor) add(typ, name, help string, labels []string) {
	d.metrics = append(d.metrics, DocumentedMetric{Type: typ, Name: name, Help: help, Labels: labels})
}

func (d *documentor) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	d.add("counter", fullName(opts.Namespace, opts.Subsystem, opts.Name), opts.Help, nil)
	c := prometheus.NewCounter(opts)
	d.registerer.MustRegister(c)
	return c
}

func (d *documentor) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	d.add("counter", fullName(opts.Namespace, opts.Subsystem, opts.Name), opts.Help, labelNames)
	c := prometheus.NewCounterVec(opts, labelNames)
	d.registerer.MustRegister(c)
	return c
}

func (d *documentor) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	d.add("gauge", fullName(opts.Namespace, opts.Subsystem, opts.Name), opts.Help, nil)
	g := prometheus.NewGauge(opts)
	d.registerer.MustRegister(g)
	return g
}

func (d *documentor) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	d.add("gauge", fullName(opts.Namespace, opts.Subsystem, opts.Name), opts.Help, labelNames)
	g := prometheus.NewGaugeVec(opts, labelNames)
	d.registerer.MustRegister(g)
	return g
}

func (d *documentor) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	d.add("histogram", fullName(opts.Namespace, opts.Subsystem, opts.Name), opts.Help, nil)
	h := prometheus.NewHistogram(opts)
	d.registerer.MustRegister(h)
	return h
}

func (d *documentor) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	d.add("histogram", fullName(opts.Namespace, opts.Subsystem, opts.Name), opts.Help, labelNames)
	h := prometheus.NewHistogramVec(opts, labelNames)
	d.registerer.MustRegister(h)
	return h
}

func (d *documentor) Document() []DocumentedMetric {
	out := append([]DocumentedMetric(nil), d.metrics...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
