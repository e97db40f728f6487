// Package boundary drives one transaction past the uint32 gas boundary and checks
// that both the successful and the out-of-gas path behave.
package boundary

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/feesweep/op-feesweep/chainenv"
	"github.com/mantlenetworkio/feesweep/op-feesweep/client"
	"github.com/mantlenetworkio/feesweep/op-feesweep/node"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
	"github.com/mantlenetworkio/feesweep/op-service/safemath"
)

// GasBoundary is the largest gas value that fits in 32 bits.
const GasBoundary = math.MaxUint32

var (
	// ErrExpectedRevertMissing is returned when the underfunded transaction is included successfully.
	ErrExpectedRevertMissing = errors.New("transaction with insufficient gas limit did not revert")
	ErrBoundaryNotCrossed    = errors.New("gas did not cross the uint32 boundary")
)

type Status int

const (
	StatusSkipped Status = iota
	StatusPassed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type Config struct {
	SuccessPayload int
	FailurePayload int
	// PubdataMultiplier scales the minimal L2 gas price into the enforced pubdata price.
	PubdataMultiplier uint64
	// GasPerPubdata is the value the system context must report under the enforced price.
	GasPerPubdata uint64
	// TxTimeout bounds each message from submission to its last check. Zero leaves it to ctx.
	TxTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		SuccessPayload:    90_000,
		FailurePayload:    91_000,
		PubdataMultiplier: 100_000,
		GasPerPubdata:     50_000,
	}
}

func (c Config) Check() error {
	var errs []error
	if c.SuccessPayload <= 0 {
		errs = append(errs, errors.New("success payload must be positive"))
	}
	if c.FailurePayload <= c.SuccessPayload {
		errs = append(errs, fmt.Errorf("failure payload (%d) must exceed success payload (%d)", c.FailurePayload, c.SuccessPayload))
	}
	if c.PubdataMultiplier == 0 {
		errs = append(errs, errors.New("pubdata multiplier must be positive"))
	}
	return errors.Join(errs...)
}

// Result is the outcome of a boundary trial.
type Result struct {
	Status       Status
	Reason       string
	PubdataPrice eth.ETH

	SuccessGasLimit uint64
	SuccessGasUsed  uint64
	GasPerPubdata   uint64
	FailureGasLimit uint64
	FailureGasUsed  uint64
}

// Restarter replaces the running node with one started under overlay.
type Restarter interface {
	Restart(ctx context.Context, overlay node.Overlay) error
}

type RestartFunc func(ctx context.Context, overlay node.Overlay) error

func (f RestartFunc) Restart(ctx context.Context, overlay node.Overlay) error {
	return f(ctx, overlay)
}

// Wallet is the L2 account publishing the messages.
type Wallet interface {
	Send(ctx context.Context, req client.TxRequest) (*types.Transaction, error)
	Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Call(ctx context.Context, req client.TxRequest) ([]byte, error)
}

type Metrics interface {
	RecordBoundary(status string, successGasUsed, failureRefund uint64)
}

type Verifier struct {
	log     log.Logger
	wallet  Wallet
	restart Restarter
	cfg     Config
	rand    io.Reader
	metrics Metrics
}

func NewVerifier(logger log.Logger, wallet Wallet, restart Restarter, cfg Config, m Metrics) *Verifier {
	return &Verifier{
		log:     logger,
		wallet:  wallet,
		restart: restart,
		cfg:     cfg,
		rand:    rand.Reader,
		metrics: m,
	}
}

// Verify runs the trial. Validium deployments are skipped, since the L1 price barely
// affects their gas limits. A failed check returns a Failed result together with the error.
func (v *Verifier) Verify(ctx context.Context, env *chainenv.Env) (res Result, err error) {
	defer func() {
		if v.metrics != nil {
			v.metrics.RecordBoundary(res.Status.String(), res.SuccessGasUsed,
				safemath.SaturatingSub(res.FailureGasLimit, res.FailureGasUsed))
		}
	}()
	if env.Validium() {
		return Result{Status: StatusSkipped, Reason: "validium mode: L1 gas price has little impact on the gas limit"}, nil
	}
	pubdataPrice, overflow := env.MinimalL2GasPrice.MulOverflow(v.cfg.PubdataMultiplier)
	if overflow {
		return Result{Status: StatusFailed, Reason: "pubdata price overflows"}, errors.New("pubdata price overflows")
	}
	res = Result{PubdataPrice: pubdataPrice}
	fail := func(err error) (Result, error) {
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res, err
	}

	if err := v.restart.Restart(ctx, node.PriceOverlay(pubdataPrice, pubdataPrice)); err != nil {
		return fail(fmt.Errorf("restart with pubdata price %s: %w", pubdataPrice, err))
	}
	logger := v.log.New("pubdataPrice", pubdataPrice)
	txCtx, cancel := v.txContext(ctx)
	defer cancel()

	payload, err := v.payload(v.cfg.SuccessPayload)
	if err != nil {
		return fail(err)
	}
	req, err := sendToL1(payload)
	if err != nil {
		return fail(err)
	}
	tx, err := v.wallet.Send(txCtx, req)
	if err != nil {
		return fail(fmt.Errorf("send %d byte message: %w", len(payload), err))
	}
	res.SuccessGasLimit = tx.Gas()
	if res.SuccessGasLimit <= GasBoundary {
		return fail(fmt.Errorf("%w: gas limit %d", ErrBoundaryNotCrossed, res.SuccessGasLimit))
	}
	receipt, err := v.wallet.Wait(txCtx, tx.Hash())
	if err != nil {
		return fail(fmt.Errorf("wait for %d byte message: %w", len(payload), err))
	}
	res.SuccessGasUsed = receipt.GasUsed
	logger.Info("Published large message", "tx", tx.Hash(), "gasLimit", res.SuccessGasLimit, "gasUsed", res.SuccessGasUsed)
	if res.SuccessGasUsed <= GasBoundary {
		return fail(fmt.Errorf("%w: gas used %d", ErrBoundaryNotCrossed, res.SuccessGasUsed))
	}

	if res.GasPerPubdata, err = v.gasPerPubdata(txCtx); err != nil {
		return fail(err)
	}
	if res.GasPerPubdata != v.cfg.GasPerPubdata {
		return fail(fmt.Errorf("gas per pubdata byte is %d, expected %d", res.GasPerPubdata, v.cfg.GasPerPubdata))
	}
	out, err := v.wallet.Call(txCtx, req)
	if err != nil {
		return fail(fmt.Errorf("simulate %d byte message: %w", len(payload), err))
	}
	var hash common.Hash
	if err := client.FuncSendToL1.DecodeReturns(out, &hash); err != nil {
		return fail(fmt.Errorf("decode sendToL1 result: %w", err))
	}
	if want := crypto.Keccak256Hash(payload); hash != want {
		return fail(fmt.Errorf("simulated message hash %s, expected %s", hash, want))
	}

	if err := v.underfunded(ctx, logger, &res); err != nil {
		return fail(err)
	}
	res.Status = StatusPassed
	return res, nil
}

// underfunded sends a larger message with the gas limit the smaller one used.
// It must not be included successfully, and the unused gas alone must exceed the boundary.
func (v *Verifier) underfunded(ctx context.Context, logger log.Logger, res *Result) error {
	ctx, cancel := v.txContext(ctx)
	defer cancel()
	payload, err := v.payload(v.cfg.FailurePayload)
	if err != nil {
		return err
	}
	req, err := sendToL1(payload)
	if err != nil {
		return err
	}
	req.GasLimit = res.SuccessGasUsed
	tx, err := v.wallet.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("send %d byte message: %w", len(payload), err)
	}
	res.FailureGasLimit = tx.Gas()
	_, waitErr := v.wallet.Wait(ctx, tx.Hash())
	if waitErr == nil {
		return ErrExpectedRevertMissing
	}
	logger.Info("Underfunded message failed as expected", "tx", tx.Hash(), "err", waitErr)
	receipt, err := v.wallet.Receipt(ctx, tx.Hash())
	if err != nil {
		return fmt.Errorf("fetch receipt of reverted message: %w", err)
	}
	res.FailureGasUsed = receipt.GasUsed
	unused, underflow := safemath.SafeSub(res.FailureGasLimit, res.FailureGasUsed)
	if underflow || unused <= GasBoundary {
		return fmt.Errorf("%w: gas limit %d, gas used %d", ErrBoundaryNotCrossed, res.FailureGasLimit, res.FailureGasUsed)
	}
	return nil
}

func (v *Verifier) txContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.cfg.TxTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, v.cfg.TxTimeout)
}

func (v *Verifier) gasPerPubdata(ctx context.Context) (uint64, error) {
	data, err := client.FuncGasPerPubdataByte.EncodeArgs()
	if err != nil {
		return 0, err
	}
	to := client.SystemContextAddress
	out, err := v.wallet.Call(ctx, client.TxRequest{To: &to, Data: data})
	if err != nil {
		return 0, fmt.Errorf("query gas per pubdata byte: %w", err)
	}
	var perByte *big.Int
	if err := client.FuncGasPerPubdataByte.DecodeReturns(out, &perByte); err != nil {
		return 0, fmt.Errorf("decode gas per pubdata byte: %w", err)
	}
	if !perByte.IsUint64() {
		return 0, fmt.Errorf("gas per pubdata byte %s out of range", perByte)
	}
	return perByte.Uint64(), nil
}

func (v *Verifier) payload(size int) ([]byte, error) {
	p := make([]byte, size)
	if _, err := io.ReadFull(v.rand, p); err != nil {
		return nil, fmt.Errorf("generate payload: %w", err)
	}
	return p, nil
}

// sendToL1 builds a type 0 call publishing payload through the L1 messenger.
func sendToL1(payload []byte) (client.TxRequest, error) {
	data, err := client.FuncSendToL1.EncodeArgs(payload)
	if err != nil {
		return client.TxRequest{}, fmt.Errorf("encode sendToL1: %w", err)
	}
	to := client.L1MessengerAddress
	return client.TxRequest{To: &to, Data: data, Legacy: true}, nil
}
