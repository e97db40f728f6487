package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
	opmetrics "github.com/mantlenetworkio/feesweep/op-service/metrics"
)

func TestFeesweepMetrics(t *testing.T) {
	m := NewMetrics("")

	require.NotEmpty(t, m.Document(), "sanity check there are generated metrics docs")

	version := "v1.2.3"
	m.RecordInfo(version)
	m.RecordUp()

	m.RecordNodeStart()
	m.RecordNodeStart()
	m.RecordNodeStop(false)
	m.RecordNodeStop(true)

	m.RecordTrial("ETH transfer (to new)", eth.GWei(5), 1500*time.Millisecond)
	m.RecordGain("ETH transfer (to new)", eth.GWei(5), 4.2, 8.4)
	m.RecordGain("ETH transfer (to new)", eth.GWei(10), 8.4, 16.8)

	m.RecordBoundary("failed", 1, 2)
	m.RecordBoundary("passed", 4_600_000_000, 4_480_000_000)

	c := opmetrics.NewMetricChecker(t, m.Registry())
	prefix := Namespace + "_default_"

	record := c.FindByName(prefix + "node_starts_total").FindByLabels(nil)
	require.Equal(t, 2.0, record.Counter.GetValue())

	record = c.FindByName(prefix + "node_stops_total").FindByLabels(map[string]string{"forced": "true"})
	require.Equal(t, 1.0, record.Counter.GetValue())

	record = c.FindByName(prefix + "trial_duration_seconds").FindByLabels(map[string]string{"scenario": "ETH transfer (to new)"})
	require.Equal(t, 1.5, record.Histogram.GetSampleSum())

	record = c.FindByName(prefix + "gain_ratio").FindByLabels(map[string]string{
		"scenario":          "ETH transfer (to new)",
		"l1_gas_price_gwei": "10",
		"kind":              "actual",
	})
	require.Equal(t, 16.8, record.Gauge.GetValue())

	status := c.FindByName(prefix + "boundary_status")
	require.Equal(t, 1, status.Count(), "only the latest boundary outcome is kept")
	record = status.FindByLabels(map[string]string{"status": "passed"})
	require.Equal(t, 1.0, record.Gauge.GetValue())

	record = c.FindByName(prefix + "boundary_gas_used").FindByLabels(nil)
	require.Equal(t, 4.6e9, record.Gauge.GetValue())

	record = c.FindByName(prefix + "up").FindByLabels(nil)
	require.Equal(t, 1.0, record.Gauge.GetValue())

	record = c.FindByName(prefix + "info").FindByLabels(map[string]string{"version": version})
	require.Equal(t, 1.0, record.Gauge.GetValue())
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	m.RecordInfo("1234")
	m.RecordUp()
	m.RecordNodeStart()
	m.RecordNodeStop(true)
	m.RecordTrial("x", eth.OneGWei, time.Second)
	m.RecordGain("x", eth.OneGWei, 1, 2)
	m.RecordBoundary("skipped", 0, 0)
}
