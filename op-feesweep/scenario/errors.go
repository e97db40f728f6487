package scenario

import (
	"fmt"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

// TransactionFailure is returned when a measured transaction is not included successfully.
type TransactionFailure struct {
	Scenario string
	Price    eth.ETH
	Pid      int
	Err      error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("scenario %q at %s gwei (node pid %d): %v", e.Scenario, e.Price.GWeiString(), e.Pid, e.Err)
}

func (e *TransactionFailure) Unwrap() error {
	return e.Err
}

// DegenerateCostError is returned when a gain ratio would divide by a zero cost.
type DegenerateCostError struct {
	Scenario string
	Price    eth.ETH
	// Cost names the zero denominator, "estimated" or "actual".
	Cost string
}

func (e *DegenerateCostError) Error() string {
	return fmt.Sprintf("scenario %q at %s gwei: %s L2 cost is zero", e.Scenario, e.Price.GWeiString(), e.Cost)
}
