package metrics

import (
	"time"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

type NoopMetrics struct{}

func (n NoopMetrics) RecordInfo(version string) {}

func (n NoopMetrics) RecordUp() {}

func (n NoopMetrics) RecordNodeStart() {}

func (n NoopMetrics) RecordNodeStop(forced bool) {}

func (n NoopMetrics) RecordTrial(scenario string, price eth.ETH, took time.Duration) {}

func (n NoopMetrics) RecordGain(scenario string, price eth.ETH, estimated, actual float64) {}

func (n NoopMetrics) RecordBoundary(status string, successGasUsed, failureRefund uint64) {}

var _ Metricer = NoopMetrics{}
