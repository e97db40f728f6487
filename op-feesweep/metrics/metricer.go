package metrics

import (
	"time"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

type Metricer interface {
	RecordInfo(version string)
	RecordUp()

	RecordNodeStart()
	RecordNodeStop(forced bool)

	RecordTrial(scenario string, price eth.ETH, took time.Duration)
	RecordGain(scenario string, price eth.ETH, estimated, actual float64)
	RecordBoundary(status string, successGasUsed, failureRefund uint64)
}
