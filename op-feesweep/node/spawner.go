package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/feesweep/op-service/logpipe"
	"github.com/mantlenetworkio/feesweep/op-service/wait"
)

// DefaultComponents is the server component set a measurement node runs with.
var DefaultComponents = []string{"api", "tree", "eth", "state_keeper", "da_dispatcher", "vm_runner_protective_reads"}

// Components returns the comma-separated component list, with consensus appended when enabled.
func Components(enableConsensus bool) string {
	comps := append([]string(nil), DefaultComponents...)
	if enableConsensus {
		comps = append(comps, "consensus")
	}
	return strings.Join(comps, ",")
}

type Config struct {
	Binary string
	Args   []string
	// Env is appended to the harness environment for every launch.
	Env []string

	ReadyTimeout    time.Duration
	ShutdownTimeout time.Duration
	PollInterval    time.Duration
}

type Metrics interface {
	RecordNodeStart()
	RecordNodeStop(forced bool)
}

// Node is the handle of one running node process. A restart produces a new handle.
type Node struct {
	pid     int
	overlay Overlay
	started time.Time

	cmd     *exec.Cmd
	exitCtx context.Context // cancelled with the exit cause once the leader is reaped

	// follow echoes the node's log lines at debug level, if enabled
	follow     *errgroup.Group
	stopFollow context.CancelFunc
}

func (n *Node) PID() int {
	return n.pid
}

func (n *Node) Overlay() Overlay {
	return n.overlay
}

// Exited reports whether the leader process has exited, and why.
func (n *Node) Exited() (bool, error) {
	if n.exitCtx.Err() == nil {
		return false, nil
	}
	return true, context.Cause(n.exitCtx)
}

// Spawner starts and stops node processes. At most one node runs at a time.
type Spawner struct {
	log     log.Logger
	cfg     Config
	overlay OverlayWriter
	probe   Probe
	sink    *LogSink
	metrics Metrics
	signal  func(pid int, sig syscall.Signal) error

	mu      sync.Mutex
	running *Node
}

func NewSpawner(logger log.Logger, cfg Config, overlay OverlayWriter, probe Probe, sink *LogSink, m Metrics) *Spawner {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	return &Spawner{
		log:     logger,
		cfg:     cfg,
		overlay: overlay,
		probe:   probe,
		sink:    sink,
		metrics: m,
		signal:  syscall.Kill,
	}
}

// Running returns the live handle, or nil.
func (s *Spawner) Running() *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start applies the overlay, launches the node in its own process group and waits until it is ready.
// Starting while another node is still running is a programming error and panics.
func (s *Spawner) Start(ctx context.Context, overlay Overlay) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != nil {
		panic(fmt.Sprintf("node already running (pid %d), stop it before starting another", s.running.pid))
	}

	overlayEnv, err := s.overlay.Apply(overlay)
	if err != nil {
		return nil, &SpawnError{Binary: s.cfg.Binary, Err: fmt.Errorf("apply overlay: %w", err)}
	}
	s.mark(fmt.Sprintf("starting node, overlay: %s", overlay))
	offset, offsetErr := s.sink.Offset()

	// The node writes straight into the log file, so it keeps logging
	// if it outlives the harness.
	cmd := exec.Command(s.cfg.Binary, s.cfg.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = append(append(os.Environ(), s.cfg.Env...), overlayEnv...)
	cmd.Stdout = s.sink.Output()
	cmd.Stderr = s.sink.Output()
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Binary: s.cfg.Binary, Err: err}
	}

	n := &Node{
		pid:     cmd.Process.Pid,
		overlay: overlay,
		started: time.Now(),
		cmd:     cmd,
	}
	logger := s.log.New("pid", n.pid)
	if s.log.Enabled(context.Background(), log.LevelDebug) {
		if offsetErr != nil {
			logger.Warn("Cannot echo node log", "err", offsetErr)
		} else {
			s.echo(n, offset, logger)
		}
	}

	exitCtx, exited := context.WithCancelCause(context.Background())
	n.exitCtx = exitCtx
	go func() {
		err := cmd.Wait()
		if err != nil {
			err = fmt.Errorf("process exited: %w", err)
		} else {
			err = errors.New("process exited")
		}
		logger.Info("Node process exited", "state", cmd.ProcessState)
		exited(err)
	}()
	logger.Info("Started node", "binary", s.cfg.Binary, "overlay", overlay)

	if err := s.awaitReady(ctx, n); err != nil {
		s.kill(n)
		s.release(n)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordNodeStart()
	}
	logger.Info("Node is ready", "took", time.Since(n.started))
	s.running = n
	return n, nil
}

// echo logs what the node appends to the log from offset on.
func (s *Spawner) echo(n *Node, offset int64, logger log.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	n.follow = new(errgroup.Group)
	n.stopFollow = cancel
	toLogger := logpipe.Parsed(logpipe.ParseAnyLogs, logpipe.ToLogger(logger.New("stream", "node")))
	n.follow.Go(func() error {
		return s.sink.Follow(ctx, offset, s.cfg.PollInterval, toLogger)
	})
}

// release stops the debug echo once the node's output is complete.
func (s *Spawner) release(n *Node) {
	if n.follow == nil {
		return
	}
	n.stopFollow()
	if err := n.follow.Wait(); err != nil {
		s.log.Warn("Failed to echo node log", "pid", n.pid, "err", err)
	}
}

func (s *Spawner) awaitReady(ctx context.Context, n *Node) error {
	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()
	var lastErr error
	err := wait.For(readyCtx, s.cfg.PollInterval, func() (bool, error) {
		if done, cause := n.Exited(); done {
			return false, &SpawnError{Binary: s.cfg.Binary, Pid: n.pid, Err: cause}
		}
		lastErr = s.probe.Ready(readyCtx)
		return lastErr == nil, nil
	})
	if err == nil {
		return nil
	}
	var spawnErr *SpawnError
	if errors.As(err, &spawnErr) {
		return spawnErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if lastErr == nil {
		lastErr = err
	}
	return &ReadinessTimeoutError{Pid: n.pid, Timeout: s.cfg.ReadyTimeout, Err: lastErr}
}

// Stop sends SIGTERM to the node's process group and blocks until the leader and every
// group member exited. Past the shutdown timeout the group is killed and a
// ShutdownTimeoutError is returned. Stopping a handle that is not running is a no-op.
// If the group cannot be signalled the node stays the running one.
func (s *Spawner) Stop(ctx context.Context, n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == nil || s.running != n {
		return nil
	}
	logger := s.log.New("pid", n.pid)

	if err := s.signal(-n.pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to signal node group %d: %w", n.pid, err)
	}
	stopCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	err := wait.For(stopCtx, s.cfg.PollInterval, func() (bool, error) {
		return s.gone(n), nil
	})
	if err != nil {
		logger.Warn("Node did not exit in time, killing process group", "timeout", s.cfg.ShutdownTimeout)
		s.kill(n)
		s.running = nil
		s.release(n)
		if s.metrics != nil {
			s.metrics.RecordNodeStop(true)
		}
		s.mark(fmt.Sprintf("node %d force-killed", n.pid))
		return &ShutdownTimeoutError{Pid: n.pid, Timeout: s.cfg.ShutdownTimeout}
	}
	s.running = nil
	s.release(n)
	if s.metrics != nil {
		s.metrics.RecordNodeStop(false)
	}
	s.mark(fmt.Sprintf("node %d stopped", n.pid))
	logger.Info("Node stopped", "uptime", time.Since(n.started))
	return nil
}

// gone reports whether the leader was reaped and no process of the group remains.
func (s *Spawner) gone(n *Node) bool {
	if n.exitCtx.Err() == nil {
		return false
	}
	return !GroupAlive(n.pid)
}

// kill sends SIGKILL to the group and waits briefly for the leader to be reaped.
func (s *Spawner) kill(n *Node) {
	_ = s.signal(-n.pid, syscall.SIGKILL)
	select {
	case <-n.exitCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Error("Node leader not reaped after SIGKILL", "pid", n.pid)
	}
}

func (s *Spawner) mark(msg string) {
	line := fmt.Sprintf("---- %s %s ----", time.Now().UTC().Format(time.RFC3339), msg)
	if err := s.sink.Mark(line); err != nil {
		s.log.Warn("Failed to write node log marker", "err", err)
	}
}

// GroupAlive reports whether any process of the process group pgid still exists.
func GroupAlive(pgid int) bool {
	err := syscall.Kill(-pgid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// KillGroup sends SIGKILL to a process group left behind by an earlier run and waits,
// bounded by ctx, until it is gone. A group that no longer exists is not an error.
func KillGroup(ctx context.Context, pgid int) error {
	if pgid <= 0 {
		return fmt.Errorf("invalid process group %d", pgid)
	}
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to kill process group %d: %w", pgid, err)
	}
	return wait.For(ctx, 100*time.Millisecond, func() (bool, error) {
		return !GroupAlive(pgid), nil
	})
}
