package node

import (
	"fmt"
	"time"
)

// SpawnError is returned when the node binary cannot be launched, or exits before it is ready.
type SpawnError struct {
	Binary string
	Pid    int
	Err    error
}

func (e *SpawnError) Error() string {
	if e.Pid != 0 {
		return fmt.Sprintf("node %s (pid %d) failed to start: %v", e.Binary, e.Pid, e.Err)
	}
	return fmt.Sprintf("node %s failed to start: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ReadinessTimeoutError is returned when a started node does not become ready in time.
// The process has been killed by the time this is returned.
type ReadinessTimeoutError struct {
	Pid     int
	Timeout time.Duration
	Err     error
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("node (pid %d) not ready after %s: %v", e.Pid, e.Timeout, e.Err)
}

func (e *ReadinessTimeoutError) Unwrap() error {
	return e.Err
}

// ShutdownTimeoutError is returned when the process group outlives the shutdown bound.
// The group has been sent SIGKILL by the time this is returned.
type ShutdownTimeoutError struct {
	Pid     int
	Timeout time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("node (pid %d) did not exit within %s", e.Pid, e.Timeout)
}
