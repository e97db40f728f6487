package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/feesweep/op-feesweep/client"
	"github.com/mantlenetworkio/feesweep/op-feesweep/node"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
	"github.com/mantlenetworkio/feesweep/op-service/testlog"
	"github.com/mantlenetworkio/feesweep/op-service/wait"
)

type fakeWallet struct {
	gasPrice eth.ETH
	estimate uint64
	gasUsed  uint64
	balance  eth.ETH
	sendErr  error
	sent     []client.TxRequest
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		gasPrice: eth.WeiU64(250_000_000),
		estimate: 100_000,
		gasUsed:  50_000,
		balance:  eth.Ether(100),
	}
}

func (f *fakeWallet) GasPrice(ctx context.Context) (eth.ETH, error) {
	return f.gasPrice, nil
}

func (f *fakeWallet) Balance(ctx context.Context) (eth.ETH, error) {
	return f.balance, nil
}

func (f *fakeWallet) Estimate(ctx context.Context, req client.TxRequest) (uint64, error) {
	return f.estimate, nil
}

func (f *fakeWallet) SendAndWait(ctx context.Context, req client.TxRequest) (*types.Transaction, *types.Receipt, error) {
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return nil, nil, f.sendErr
	}
	spent := f.gasPrice.Mul(f.gasUsed)
	if req.Value != nil {
		spent = spent.Add(eth.MustWeiBig(req.Value))
	}
	f.balance, _ = f.balance.SubUnderflow(spent)
	tx := types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.sent)), To: req.To, Value: req.Value, Gas: f.estimate})
	return tx, &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: f.gasUsed}, nil
}

type recordingMetrics struct {
	trials int
	gains  map[string]float64
}

func (r *recordingMetrics) RecordTrial(scenario string, price eth.ETH, took time.Duration) {
	r.trials++
}

func (r *recordingMetrics) RecordGain(scenario string, price eth.ETH, estimated, actual float64) {
	if r.gains == nil {
		r.gains = make(map[string]float64)
	}
	r.gains[scenario+"@"+price.GWeiString()] = actual
}

var (
	warm    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	l2Token = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	refs    = References{
		ETHTransfer:   &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 21_000},
		ERC20Transfer: &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 52_000},
	}
)

func newExecutor(t *testing.T, w Wallet, m Metrics) *Executor {
	return NewExecutor(testlog.Logger(t, log.LevelDebug), w, warm, func() int { return 4242 }, m)
}

func TestStandardOrder(t *testing.T) {
	scenarios := Standard(refs, l2Token)
	require.Equal(t, []string{
		"ETH transfer (to new)",
		"ETH transfer (to old)",
		"ERC20 transfer (to new)",
		"ERC20 transfer (to old)",
	}, Labels(scenarios))
	require.Nil(t, scenarios[0].Token)
	require.Equal(t, &l2Token, scenarios[3].Token)
	require.Equal(t, RecipientWarm, scenarios[1].Recipient)
	require.Equal(t, RecipientFresh, scenarios[2].Recipient)
}

func TestRunERC20Block(t *testing.T) {
	w := newFakeWallet()
	m := new(recordingMetrics)
	e := newExecutor(t, w, m)
	price := eth.GWei(5)

	meas, block, err := e.Run(context.Background(), Standard(refs, l2Token)[3], node.PriceOverlay(price, price))
	require.NoError(t, err)
	require.Equal(t, "Gas price 5 gwei:\n"+
		"    L1 cost 0.00026,\n"+
		"    L2 estimated cost: 0.000025\n"+
		"    Estimated Gain: 10.4\n"+
		"    L2 cost: 0.0000125,\n"+
		"    Gain: 20.8\n", block)
	require.Equal(t, 4242, meas.Pid)
	require.Equal(t, price, meas.Price)
	require.Equal(t, 1, m.trials)
	require.Equal(t, 20.8, m.gains["ERC20 transfer (to old)@5"])

	require.Len(t, w.sent, 1)
	require.Equal(t, &l2Token, w.sent[0].To)
	require.Equal(t, warm.Bytes(), w.sent[0].Data[4+12:4+32], "warm receiver is encoded as the token recipient")
}

func TestRunBalanceDeltaIncludesValue(t *testing.T) {
	w := newFakeWallet()
	e := newExecutor(t, w, nil)
	price := eth.GWei(10)

	meas, _, err := e.Run(context.Background(), Standard(refs, l2Token)[1], node.PriceOverlay(price, price))
	require.NoError(t, err)
	require.Equal(t, eth.WeiU64(50_000*250_000_000+1), meas.Actual)
	require.Equal(t, eth.WeiU64(21_000*10_000_000_000), meas.Reference)
	require.Equal(t, &warm, w.sent[0].To)
}

func TestRunFreshRecipients(t *testing.T) {
	w := newFakeWallet()
	e := newExecutor(t, w, nil)
	price := eth.GWei(5)
	s := Standard(refs, l2Token)[0]

	for i := 0; i < 3; i++ {
		_, _, err := e.Run(context.Background(), s, node.PriceOverlay(price, price))
		require.NoError(t, err)
	}
	seen := make(map[common.Address]bool)
	for _, req := range w.sent {
		require.NotEqual(t, warm, *req.To)
		seen[*req.To] = true
	}
	require.Len(t, seen, 3, "every run pays for a new account")
}

func TestRunRatiosFinite(t *testing.T) {
	for _, gwei := range []uint64{1, 5, 10, 25, 50, 100, 200, 400, 800, 1000, 2000} {
		w := newFakeWallet()
		e := newExecutor(t, w, nil)
		price := eth.GWei(gwei)
		for _, s := range Standard(refs, l2Token) {
			meas, _, err := e.Run(context.Background(), s, node.PriceOverlay(price, price))
			require.NoError(t, err)
			for _, r := range []float64{meas.EstimatedGain, meas.Gain} {
				require.False(t, math.IsInf(r, 0) || math.IsNaN(r), fmt.Sprintf("%s at %d gwei", s.Label, gwei))
				require.Greater(t, r, 0.0)
			}
		}
	}
}

func TestRunDegenerateCost(t *testing.T) {
	price := eth.GWei(5)
	overlay := node.PriceOverlay(price, price)

	w := newFakeWallet()
	w.gasPrice = eth.ZeroWei
	_, _, err := newExecutor(t, w, nil).Run(context.Background(), Standard(refs, l2Token)[2], overlay)
	var degenerate *DegenerateCostError
	require.ErrorAs(t, err, &degenerate)
	require.Equal(t, "estimated", degenerate.Cost)
	require.Equal(t, "ERC20 transfer (to new)", degenerate.Scenario)

	w = newFakeWallet()
	w.gasUsed = 0
	_, _, err = newExecutor(t, w, nil).Run(context.Background(), Standard(refs, l2Token)[3], overlay)
	require.ErrorAs(t, err, &degenerate)
	require.Equal(t, "actual", degenerate.Cost)
}

func TestRunTransactionFailure(t *testing.T) {
	w := newFakeWallet()
	w.sendErr = fmt.Errorf("tx reverted: %w", wait.ErrReceiptStatus)
	price := eth.GWei(25)

	_, _, err := newExecutor(t, w, nil).Run(context.Background(), Standard(refs, l2Token)[0], node.PriceOverlay(price, price))
	var failure *TransactionFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "ETH transfer (to new)", failure.Scenario)
	require.Equal(t, price, failure.Price)
	require.Equal(t, 4242, failure.Pid)
	require.True(t, errors.Is(err, wait.ErrReceiptStatus))
	require.Contains(t, err.Error(), "25 gwei")
}

func TestRunNeedsPrice(t *testing.T) {
	_, _, err := newExecutor(t, newFakeWallet(), nil).Run(context.Background(), Standard(refs, l2Token)[0], node.Overlay{})
	require.Error(t, err)

	s := Standard(References{}, l2Token)[0]
	price := eth.GWei(5)
	_, _, err = newExecutor(t, newFakeWallet(), nil).Run(context.Background(), s, node.PriceOverlay(price, price))
	require.ErrorContains(t, err, "no reference receipt")
}

func TestScenarioRequest(t *testing.T) {
	to := common.HexToAddress("0x01")
	req, err := Standard(refs, l2Token)[0].Request(to)
	require.NoError(t, err)
	require.Equal(t, &to, req.To)
	require.Equal(t, big.NewInt(1), req.Value)
	require.Empty(t, req.Data)
}
