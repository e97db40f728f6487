// Package harness runs a fee sweep: baseline transactions, one node restart and four
// measurements per price point, the gas boundary trial, and a teardown that always
// leaves a default node running.
package harness

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/feesweep/op-feesweep/boundary"
	"github.com/mantlenetworkio/feesweep/op-feesweep/chainenv"
	"github.com/mantlenetworkio/feesweep/op-feesweep/client"
	"github.com/mantlenetworkio/feesweep/op-feesweep/node"
	"github.com/mantlenetworkio/feesweep/op-feesweep/registry"
	"github.com/mantlenetworkio/feesweep/op-feesweep/report"
	"github.com/mantlenetworkio/feesweep/op-feesweep/scenario"
	"github.com/mantlenetworkio/feesweep/op-feesweep/sweep"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
	"github.com/mantlenetworkio/feesweep/op-service/ioutil"
)

// Handle is a running node.
type Handle interface {
	PID() int
	Overlay() node.Overlay
}

// Controller starts and stops nodes. At most one runs at a time.
type Controller interface {
	Start(ctx context.Context, overlay node.Overlay) (Handle, error)
	Stop(ctx context.Context, h Handle) error
}

type spawnerController struct {
	s *node.Spawner
}

// FromSpawner adapts a node spawner to a Controller.
func FromSpawner(s *node.Spawner) Controller {
	return spawnerController{s: s}
}

func (c spawnerController) Start(ctx context.Context, overlay node.Overlay) (Handle, error) {
	n, err := c.s.Start(ctx, overlay)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (c spawnerController) Stop(ctx context.Context, h Handle) error {
	n, ok := h.(*node.Node)
	if !ok {
		return fmt.Errorf("unexpected node handle %T", h)
	}
	return c.s.Stop(ctx, n)
}

// L1Wallet sends the reference transactions.
type L1Wallet interface {
	SendAndWait(ctx context.Context, req client.TxRequest) (*types.Transaction, *types.Receipt, error)
}

// L2Wallet pays for every measured L2 transaction.
type L2Wallet interface {
	scenario.Wallet
	boundary.Wallet
}

// FeeSource reads the prices the running node uses.
type FeeSource interface {
	FeeParams(ctx context.Context) (client.FeeParams, error)
}

// RPCFeeSource reads fee params through zks_getFeeParams.
type RPCFeeSource struct {
	RPC client.RPCCaller
}

func (s RPCFeeSource) FeeParams(ctx context.Context) (client.FeeParams, error) {
	return client.FetchFeeParams(ctx, s.RPC)
}

type Metrics interface {
	node.Metrics
	scenario.Metrics
	boundary.Metrics
	RecordUp()
}

type Config struct {
	Sweep   *sweep.Sweep
	L1Token common.Address
	L2Token common.Address

	Boundary     boundary.Config
	SkipBoundary bool

	// TxTimeout bounds the baseline transactions, each scenario run and each boundary message.
	TxTimeout       time.Duration
	TeardownTimeout time.Duration
}

// Deps are the collaborators of a harness. FileOverlay and Fees are optional round-trip checks.
type Deps struct {
	Controller  Controller
	Overlay     node.OverlayWriter
	FileOverlay *node.FileOverlay
	Fees        FeeSource
	Registry    *registry.Registry
	Killer      registry.Killer
	L1          L1Wallet
	L2          L2Wallet
	Env         *chainenv.Env
	Metrics     Metrics
	Progress    ioutil.Progressor
}

// Outcome is what a run produced, also when it failed part way.
type Outcome struct {
	RunID    string
	Report   *report.Aggregator
	Boundary boundary.Result
	// FinalPid is the node left running by the teardown, 0 if it could not be started.
	FinalPid int
}

type Harness struct {
	log  log.Logger
	cfg  Config
	deps Deps

	current   Handle
	receiver  common.Address
	scenarios []scenario.Scenario
}

func New(logger log.Logger, cfg Config, deps Deps) *Harness {
	if deps.Killer == nil {
		deps.Killer = node.KillGroup
	}
	if deps.Progress == nil {
		deps.Progress = ioutil.NoopProgressor()
	}
	if cfg.Boundary.TxTimeout == 0 {
		cfg.Boundary.TxTimeout = cfg.TxTimeout
	}
	return &Harness{log: logger, cfg: cfg, deps: deps}
}

// Current returns the running node, or nil.
func (h *Harness) Current() Handle {
	return h.current
}

// Run executes the whole sweep. The teardown runs on every path and its errors are
// joined with the run error.
func (h *Harness) Run(ctx context.Context) (out *Outcome, err error) {
	out = &Outcome{RunID: h.deps.Registry.RunID.String()}
	if _, err := h.deps.Registry.AdoptLeftover(ctx, h.deps.Killer); err != nil {
		return out, err
	}

	defer func() {
		pid, tdErr := h.teardown(ctx, err == nil)
		out.FinalPid = pid
		if tdErr != nil {
			err = multierror.Append(err, &TeardownError{Err: tdErr}).ErrorOrNil()
		}
	}()

	if err := h.restart(ctx, node.Overlay{}); err != nil {
		return out, err
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordUp()
	}
	if err := h.baseline(ctx); err != nil {
		return out, fmt.Errorf("baseline: %w", err)
	}

	out.Report = report.New(scenario.Labels(h.scenarios))
	if err := h.sweep(ctx, out.Report); err != nil {
		return out, err
	}

	if h.cfg.SkipBoundary {
		out.Boundary = boundary.Result{Status: boundary.StatusSkipped, Reason: "disabled by configuration"}
		return out, nil
	}
	verifier := boundary.NewVerifier(h.log.New("trial", "boundary"), h.deps.L2, boundary.RestartFunc(h.restart), h.cfg.Boundary, h.deps.Metrics)
	out.Boundary, err = verifier.Verify(ctx, h.deps.Env)
	if err != nil {
		return out, fmt.Errorf("boundary trial: %w", err)
	}
	h.log.Info("Boundary trial done", "status", out.Boundary.Status, "reason", out.Boundary.Reason)
	return out, nil
}

// baseline mines the L1 reference transactions and warms the receiver on L2.
func (h *Harness) baseline(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 4*h.cfg.TxTimeout)
	defer cancel()

	receiver, err := scenario.RandomAddress()
	if err != nil {
		return err
	}
	h.receiver = receiver
	one := big.NewInt(1)

	var refs scenario.References
	if _, refs.ETHTransfer, err = h.deps.L1.SendAndWait(ctx, client.TransferRequest(receiver, one)); err != nil {
		return fmt.Errorf("L1 ETH transfer: %w", err)
	}
	req, err := client.ERC20TransferRequest(h.cfg.L1Token, receiver, one)
	if err != nil {
		return err
	}
	if _, refs.ERC20Transfer, err = h.deps.L1.SendAndWait(ctx, req); err != nil {
		return fmt.Errorf("L1 ERC20 transfer: %w", err)
	}
	h.log.Info("Mined L1 reference transactions", "receiver", receiver,
		"ethGasUsed", refs.ETHTransfer.GasUsed, "erc20GasUsed", refs.ERC20Transfer.GasUsed)

	if _, _, err := h.deps.L2.SendAndWait(ctx, client.TransferRequest(receiver, one)); err != nil {
		return fmt.Errorf("L2 ETH warm-up: %w", err)
	}
	if req, err = client.ERC20TransferRequest(h.cfg.L2Token, receiver, one); err != nil {
		return err
	}
	if _, _, err := h.deps.L2.SendAndWait(ctx, req); err != nil {
		return fmt.Errorf("L2 ERC20 warm-up: %w", err)
	}
	h.scenarios = scenario.Standard(refs, h.cfg.L2Token)
	return nil
}

func (h *Harness) sweep(ctx context.Context, agg *report.Aggregator) error {
	exec := scenario.NewExecutor(h.log, h.deps.L2, h.receiver, h.pid, h.deps.Metrics)
	values := h.cfg.Sweep.Values()
	total := int64(len(values) * len(h.scenarios))
	var done int64
	h.deps.Progress(0, total)
	for _, price := range values {
		// the pubdata price follows the L1 gas price
		overlay := node.PriceOverlay(price, price)
		if err := h.restart(ctx, overlay); err != nil {
			return err
		}
		if err := h.checkOverlay(ctx, overlay); err != nil {
			return err
		}
		for i, s := range h.scenarios {
			trialCtx, cancel := context.WithTimeout(ctx, h.cfg.TxTimeout)
			m, block, err := exec.Run(trialCtx, s, overlay)
			cancel()
			if err != nil {
				return err
			}
			if err := agg.Record(i, m, block); err != nil {
				return err
			}
			done++
			h.deps.Progress(done, total)
		}
	}
	return nil
}

func (h *Harness) pid() int {
	if h.current == nil {
		return 0
	}
	return h.current.PID()
}

// restart stops the running node, if any, before starting the next one.
func (h *Harness) restart(ctx context.Context, overlay node.Overlay) error {
	if h.current != nil {
		prev := h.current
		h.current = nil
		if err := h.deps.Controller.Stop(ctx, prev); err != nil {
			return err
		}
	}
	n, err := h.deps.Controller.Start(ctx, overlay)
	if err != nil {
		return err
	}
	h.current = n
	h.log.Info("Node running", "pid", n.PID(), "overlay", overlay)
	return nil
}

// checkOverlay reads the enforced prices back from the node config and the node itself.
func (h *Harness) checkOverlay(ctx context.Context, want node.Overlay) error {
	if f := h.deps.FileOverlay; f != nil {
		got, slots, err := f.Current()
		if err != nil {
			return err
		}
		if !sameOverlay(want, got) || slots != want.TransactionSlots() {
			return &OverlayMismatchError{Source: "config file", Want: want, Got: got, Pid: h.pid()}
		}
	}
	if h.deps.Fees != nil {
		params, err := h.deps.Fees.FeeParams(ctx)
		if err != nil {
			return err
		}
		got := node.PriceOverlay(params.L1GasPrice, params.L1PubdataPrice)
		if !sameOverlay(want, got) {
			return &OverlayMismatchError{Source: "zks_getFeeParams", Want: want, Got: got, Pid: h.pid()}
		}
	}
	return nil
}

func sameOverlay(a, b node.Overlay) bool {
	return samePrice(a.L1GasPrice, b.L1GasPrice) && samePrice(a.PubdataPrice, b.PubdataPrice)
}

func samePrice(a, b *eth.ETH) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// teardown restores the default config and leaves one default node running, recorded in
// the registry. It runs with its own deadline, also when ctx was cancelled.
func (h *Harness) teardown(ctx context.Context, completed bool) (int, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.TeardownTimeout)
	defer cancel()

	var result *multierror.Error
	if h.current != nil {
		prev := h.current
		h.current = nil
		if err := h.deps.Controller.Stop(ctx, prev); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop: %w", err))
		}
	}
	if err := h.deps.Overlay.Restore(); err != nil {
		result = multierror.Append(result, fmt.Errorf("restore config: %w", err))
	}
	n, err := h.deps.Controller.Start(ctx, node.Overlay{})
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("start default node: %w", err))
		return 0, result.ErrorOrNil()
	}
	h.current = n
	if err := h.deps.Registry.Record(n.PID(), completed); err != nil {
		result = multierror.Append(result, fmt.Errorf("record node: %w", err))
	}
	h.log.Info("Restored default node", "pid", n.PID(), "completed", completed)
	return n.PID(), result.ErrorOrNil()
}
