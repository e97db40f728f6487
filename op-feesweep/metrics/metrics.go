package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
	opmetrics "github.com/mantlenetworkio/feesweep/op-service/metrics"
)

const Namespace = "op_feesweep"

type Metrics struct {
	ns       string
	registry *prometheus.Registry
	factory  opmetrics.Factory

	nodeStarts prometheus.Counter
	nodeStops  *prometheus.CounterVec

	trialDuration *prometheus.HistogramVec
	gain          *prometheus.GaugeVec

	boundaryStatus  *prometheus.GaugeVec
	boundaryGasUsed prometheus.Gauge
	boundaryRefund  prometheus.Gauge

	info prometheus.GaugeVec
	up   prometheus.Gauge
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics(procName string) *Metrics {
	return newMetrics(procName, opmetrics.NewRegistry())
}

func newMetrics(procName string, registry *prometheus.Registry) *Metrics {
	if procName == "" {
		procName = "default"
	}
	ns := Namespace + "_" + procName

	factory := opmetrics.With(registry)
	return &Metrics{
		ns:       ns,
		registry: registry,
		factory:  factory,

		info: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{
			"version",
		}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "up",
			Help:      "1 once the first node of the run is ready",
		}),

		nodeStarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "node_starts_total",
			Help:      "Count of node processes that became ready",
		}),
		nodeStops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "node_stops_total",
			Help:      "Count of node processes stopped, by whether they had to be killed",
		}, []string{"forced"}),

		trialDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "trial_duration_seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			Help:      "Duration of one scenario measurement, inclusion wait included",
		}, []string{"scenario"}),
		gain: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "gain_ratio",
			Help:      "L1 cost divided by L2 cost, per scenario and L1 gas price",
		}, []string{"scenario", "l1_gas_price_gwei", "kind"}),

		boundaryStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "boundary_status",
			Help:      "1 for the outcome of the uint32 gas boundary trial",
		}, []string{"status"}),
		boundaryGasUsed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "boundary_gas_used",
			Help:      "Gas used by the large message of the boundary trial",
		}),
		boundaryRefund: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "boundary_unused_gas",
			Help:      "Gas limit minus gas used of the underfunded boundary message",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Document() []opmetrics.DocumentedMetric {
	return m.factory.Document()
}

// RecordInfo sets a pseudo-metric that contains versioning and config info.
func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

// RecordUp sets the up metric to 1.
func (m *Metrics) RecordUp() {
	m.up.Set(1)
}

func (m *Metrics) RecordNodeStart() {
	m.nodeStarts.Inc()
}

func (m *Metrics) RecordNodeStop(forced bool) {
	m.nodeStops.WithLabelValues(strconv.FormatBool(forced)).Inc()
}

func (m *Metrics) RecordTrial(scenario string, price eth.ETH, took time.Duration) {
	m.trialDuration.WithLabelValues(scenario).Observe(took.Seconds())
}

func (m *Metrics) RecordGain(scenario string, price eth.ETH, estimated, actual float64) {
	gwei := price.GWeiString()
	m.gain.WithLabelValues(scenario, gwei, "estimated").Set(estimated)
	m.gain.WithLabelValues(scenario, gwei, "actual").Set(actual)
}

func (m *Metrics) RecordBoundary(status string, successGasUsed, failureRefund uint64) {
	m.boundaryStatus.Reset()
	m.boundaryStatus.WithLabelValues(status).Set(1)
	m.boundaryGasUsed.Set(float64(successGasUsed))
	m.boundaryRefund.Set(float64(failureRefund))
}
