package harness

import (
	"fmt"

	"github.com/mantlenetworkio/feesweep/op-feesweep/node"
)

// OverlayMismatchError is returned when a restarted node does not report the prices it was started with.
type OverlayMismatchError struct {
	Source string
	Want   node.Overlay
	Got    node.Overlay
	Pid    int
}

func (e *OverlayMismatchError) Error() string {
	return fmt.Sprintf("node (pid %d) %s reports %s, expected %s", e.Pid, e.Source, e.Got, e.Want)
}

// TeardownError wraps what went wrong while restoring the default node.
type TeardownError struct {
	Err error
}

func (e *TeardownError) Error() string {
	return "teardown: " + e.Err.Error()
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}
