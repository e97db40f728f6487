package boundary

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/feesweep/op-feesweep/chainenv"
	"github.com/mantlenetworkio/feesweep/op-feesweep/client"
	"github.com/mantlenetworkio/feesweep/op-feesweep/node"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
	"github.com/mantlenetworkio/feesweep/op-service/testlog"
	"github.com/mantlenetworkio/feesweep/op-service/wait"
)

// fakeMessenger behaves like a node under an enforced pubdata price of 50k gas per byte.
type fakeMessenger struct {
	estimate      uint64
	successUsed   uint64
	failureUsed   uint64
	gasPerPubdata uint64
	revert        bool
	wrongHash     bool
	// unmined messages block Wait until ctx is done
	unmined bool

	sent    []*types.Transaction
	payload [][]byte
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		estimate:      5_000_000_000,
		successUsed:   4_600_000_000,
		failureUsed:   120_000_000,
		gasPerPubdata: 50_000,
		revert:        true,
	}
}

func (f *fakeMessenger) Send(ctx context.Context, req client.TxRequest) (*types.Transaction, error) {
	if !req.Legacy {
		return nil, errors.New("expected a type 0 transaction")
	}
	var payload []byte
	if err := client.FuncSendToL1.DecodeArgs(req.Data, &payload); err != nil {
		return nil, err
	}
	gas := req.GasLimit
	if gas == 0 {
		gas = f.estimate
	}
	tx := types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.sent)), To: req.To, Gas: gas, Data: req.Data, GasPrice: big.NewInt(1)})
	f.sent = append(f.sent, tx)
	f.payload = append(f.payload, payload)
	return tx, nil
}

func (f *fakeMessenger) receipt(hash common.Hash) (*types.Receipt, int) {
	for i, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}
		if i == 0 {
			return &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: f.successUsed, TxHash: hash}, i
		}
		status := types.ReceiptStatusSuccessful
		if f.revert {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{Status: status, GasUsed: f.failureUsed, TxHash: hash}, i
	}
	return nil, -1
}

func (f *fakeMessenger) Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if f.unmined {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r, _ := f.receipt(hash)
	if r == nil {
		return nil, errors.New("not found")
	}
	if r.Status != types.ReceiptStatusSuccessful {
		return r, fmt.Errorf("%w: reverted", wait.ErrReceiptStatus)
	}
	return r, nil
}

func (f *fakeMessenger) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r, _ := f.receipt(hash)
	if r == nil {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (f *fakeMessenger) Call(ctx context.Context, req client.TxRequest) ([]byte, error) {
	if *req.To == client.SystemContextAddress {
		return common.LeftPadBytes(new(big.Int).SetUint64(f.gasPerPubdata).Bytes(), 32), nil
	}
	var payload []byte
	if err := client.FuncSendToL1.DecodeArgs(req.Data, &payload); err != nil {
		return nil, err
	}
	if f.wrongHash {
		return make([]byte, 32), nil
	}
	return crypto.Keccak256(payload), nil
}

type restarts struct {
	overlays []node.Overlay
	err      error
}

func (r *restarts) Restart(ctx context.Context, overlay node.Overlay) error {
	r.overlays = append(r.overlays, overlay)
	return r.err
}

type boundaryMetrics struct {
	status  string
	used    uint64
	refund  uint64
	records int
}

func (m *boundaryMetrics) RecordBoundary(status string, successGasUsed, failureRefund uint64) {
	m.status, m.used, m.refund = status, successGasUsed, failureRefund
	m.records++
}

func rollup() *chainenv.Env {
	return &chainenv.Env{DAMode: chainenv.DAModeRollup, MinimalL2GasPrice: eth.WeiU64(25_000_000)}
}

func newVerifier(t *testing.T, w Wallet, r Restarter, m Metrics) *Verifier {
	return NewVerifier(testlog.Logger(t, log.LevelDebug), w, r, DefaultConfig(), m)
}

func TestVerifyPasses(t *testing.T) {
	w := newFakeMessenger()
	r := new(restarts)
	m := new(boundaryMetrics)
	res, err := newVerifier(t, w, r, m).Verify(context.Background(), rollup())
	require.NoError(t, err)
	require.Equal(t, StatusPassed, res.Status)

	want := eth.WeiU64(25_000_000 * 100_000)
	require.Equal(t, want, res.PubdataPrice)
	require.Len(t, r.overlays, 1)
	require.Equal(t, want, *r.overlays[0].L1GasPrice)
	require.Equal(t, want, *r.overlays[0].PubdataPrice)

	require.Greater(t, res.SuccessGasLimit, uint64(GasBoundary))
	require.Greater(t, res.SuccessGasUsed, uint64(GasBoundary))
	require.Equal(t, uint64(50_000), res.GasPerPubdata)
	require.Equal(t, res.SuccessGasUsed, res.FailureGasLimit, "the larger message gets the gas the smaller one used")
	require.Greater(t, res.FailureGasLimit-res.FailureGasUsed, uint64(GasBoundary))

	require.Len(t, w.payload, 2)
	require.Len(t, w.payload[0], 90_000)
	require.Len(t, w.payload[1], 91_000)
	require.Equal(t, uint8(types.LegacyTxType), w.sent[0].Type())

	require.Equal(t, "passed", m.status)
	require.Equal(t, res.SuccessGasUsed, m.used)
	require.Equal(t, uint64(4_480_000_000), m.refund)
}

func TestVerifySkipsValidium(t *testing.T) {
	r := new(restarts)
	m := new(boundaryMetrics)
	env := rollup()
	env.DAMode = chainenv.DAModeValidium
	res, err := newVerifier(t, newFakeMessenger(), r, m).Verify(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, res.Status)
	require.NotEmpty(t, res.Reason)
	require.Empty(t, r.overlays, "a skipped trial leaves the node alone")
	require.Equal(t, "skipped", m.status)
}

func TestVerifyRevertMissing(t *testing.T) {
	w := newFakeMessenger()
	w.revert = false
	res, err := newVerifier(t, w, new(restarts), nil).Verify(context.Background(), rollup())
	require.ErrorIs(t, err, ErrExpectedRevertMissing)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, ErrExpectedRevertMissing.Error(), res.Reason)
}

func TestVerifyBoundaryNotCrossed(t *testing.T) {
	w := newFakeMessenger()
	w.estimate = 4_000_000_000
	_, err := newVerifier(t, w, new(restarts), nil).Verify(context.Background(), rollup())
	require.ErrorIs(t, err, ErrBoundaryNotCrossed)
	require.ErrorContains(t, err, "gas limit 4000000000")

	w = newFakeMessenger()
	w.successUsed = 4_000_000_000
	_, err = newVerifier(t, w, new(restarts), nil).Verify(context.Background(), rollup())
	require.ErrorIs(t, err, ErrBoundaryNotCrossed)
	require.ErrorContains(t, err, "gas used")

	w = newFakeMessenger()
	w.failureUsed = 1_000_000_000
	res, err := newVerifier(t, w, new(restarts), nil).Verify(context.Background(), rollup())
	require.ErrorIs(t, err, ErrBoundaryNotCrossed)
	require.Equal(t, uint64(1_000_000_000), res.FailureGasUsed)
}

func TestVerifyChecksSimulation(t *testing.T) {
	w := newFakeMessenger()
	w.gasPerPubdata = 40_000
	_, err := newVerifier(t, w, new(restarts), nil).Verify(context.Background(), rollup())
	require.ErrorContains(t, err, "gas per pubdata byte is 40000")

	w = newFakeMessenger()
	w.wrongHash = true
	_, err = newVerifier(t, w, new(restarts), nil).Verify(context.Background(), rollup())
	require.ErrorContains(t, err, "simulated message hash")
}

func TestVerifyRestartFailure(t *testing.T) {
	spawnErr := &node.SpawnError{Binary: "zksync_server", Err: errors.New("boom")}
	res, err := newVerifier(t, newFakeMessenger(), &restarts{err: spawnErr}, nil).Verify(context.Background(), rollup())
	var target *node.SpawnError
	require.ErrorAs(t, err, &target)
	require.Equal(t, StatusFailed, res.Status)
}

func TestVerifyBoundsInclusionWait(t *testing.T) {
	w := newFakeMessenger()
	w.unmined = true
	cfg := DefaultConfig()
	cfg.TxTimeout = 50 * time.Millisecond
	v := NewVerifier(testlog.Logger(t, log.LevelDebug), w, new(restarts), cfg, nil)

	done := make(chan struct{})
	var (
		res Result
		err error
	)
	go func() {
		defer close(done)
		res, err = v.Verify(context.Background(), rollup())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("verify did not return after the tx timeout")
	}
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StatusFailed, res.Status)
	require.Len(t, w.sent, 1)
}

func TestConfigCheck(t *testing.T) {
	require.NoError(t, DefaultConfig().Check())
	cfg := DefaultConfig()
	cfg.FailurePayload = cfg.SuccessPayload
	require.ErrorContains(t, cfg.Check(), "must exceed")
	cfg = Config{}
	require.Error(t, cfg.Check())
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "skipped", StatusSkipped.String())
	require.Equal(t, "failed", StatusFailed.String())
	require.Equal(t, "Status(7)", Status(7).String())
}
