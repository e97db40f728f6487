// Package scenario runs the measured transactions of a sweep and derives their costs.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/feesweep/op-feesweep/client"
	"github.com/mantlenetworkio/feesweep/op-feesweep/node"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

// Recipient selects who receives a scenario's transfer.
type Recipient int

const (
	// RecipientFresh sends to a newly generated address on every run.
	RecipientFresh Recipient = iota
	// RecipientWarm sends to the receiver prepared before the sweep.
	RecipientWarm
)

func (r Recipient) String() string {
	if r == RecipientFresh {
		return "new"
	}
	return "old"
}

// Scenario is one representative operation, compared against an equivalent L1 action.
type Scenario struct {
	Label string
	// Reference is the mined L1 receipt of the equivalent action.
	Reference *types.Receipt
	Recipient Recipient
	// Token is the L2 ERC20 transferred. Nil means a plain ETH transfer.
	Token *common.Address
	Value *big.Int
}

// Request builds the transaction template for the given recipient.
func (s Scenario) Request(to common.Address) (client.TxRequest, error) {
	if s.Token == nil {
		return client.TransferRequest(to, s.Value), nil
	}
	return client.ERC20TransferRequest(*s.Token, to, s.Value)
}

// Measurement is the cost of one scenario at one price point. Costs are in wei.
type Measurement struct {
	Scenario      string  `json:"scenario"`
	Price         eth.ETH `json:"l1GasPrice"`
	Reference     eth.ETH `json:"l1Cost"`
	Estimated     eth.ETH `json:"l2EstimatedCost"`
	Actual        eth.ETH `json:"l2Cost"`
	EstimatedGain float64 `json:"estimatedGain"`
	Gain          float64 `json:"gain"`
	Pid           int     `json:"nodePid"`
}

// Block renders the report text of the measurement.
func (m Measurement) Block() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gas price %s gwei:\n", m.Price.GWeiString())
	fmt.Fprintf(&b, "    L1 cost %s,\n", m.Reference.EtherString())
	fmt.Fprintf(&b, "    L2 estimated cost: %s\n", m.Estimated.EtherString())
	fmt.Fprintf(&b, "    Estimated Gain: %s\n", FormatRatio(m.EstimatedGain))
	fmt.Fprintf(&b, "    L2 cost: %s,\n", m.Actual.EtherString())
	fmt.Fprintf(&b, "    Gain: %s\n", FormatRatio(m.Gain))
	return b.String()
}

// FormatRatio prints the shortest decimal that reads back as r.
func FormatRatio(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Wallet is the L2 account that pays for measured transactions.
type Wallet interface {
	GasPrice(ctx context.Context) (eth.ETH, error)
	Balance(ctx context.Context) (eth.ETH, error)
	Estimate(ctx context.Context, req client.TxRequest) (uint64, error)
	SendAndWait(ctx context.Context, req client.TxRequest) (*types.Transaction, *types.Receipt, error)
}

type Metrics interface {
	RecordTrial(scenario string, price eth.ETH, took time.Duration)
	RecordGain(scenario string, price eth.ETH, estimated, actual float64)
}

// Executor runs scenarios against the node currently serving the wallet's backend.
type Executor struct {
	log     log.Logger
	wallet  Wallet
	warm    common.Address
	pid     func() int
	fresh   func() (common.Address, error)
	metrics Metrics
}

// NewExecutor creates an executor. warm is the pre-funded receiver of "existing account"
// scenarios; pid reports the running node for error context and may be nil.
func NewExecutor(logger log.Logger, wallet Wallet, warm common.Address, pid func() int, m Metrics) *Executor {
	if pid == nil {
		pid = func() int { return 0 }
	}
	return &Executor{
		log:     logger,
		wallet:  wallet,
		warm:    warm,
		pid:     pid,
		fresh:   RandomAddress,
		metrics: m,
	}
}

// RandomAddress returns the address of a newly generated key.
func RandomAddress() (common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func (e *Executor) recipient(s Scenario) (common.Address, error) {
	if s.Recipient == RecipientWarm {
		return e.warm, nil
	}
	return e.fresh()
}

// Run measures the scenario under the overlay the node was started with. The transaction
// is estimated, then sent, and its actual cost is the sender's balance delta across inclusion.
func (e *Executor) Run(ctx context.Context, s Scenario, overlay node.Overlay) (Measurement, string, error) {
	if overlay.L1GasPrice == nil {
		return Measurement{}, "", errors.New("overlay has no L1 gas price to measure against")
	}
	if s.Reference == nil {
		return Measurement{}, "", fmt.Errorf("scenario %q has no reference receipt", s.Label)
	}
	start := time.Now()
	price := *overlay.L1GasPrice
	m := Measurement{Scenario: s.Label, Price: price, Pid: e.pid()}
	logger := e.log.New("scenario", s.Label, "price", price)
	fail := func(err error) error {
		return &TransactionFailure{Scenario: s.Label, Price: price, Pid: m.Pid, Err: err}
	}

	var overflow bool
	if m.Reference, overflow = price.MulOverflow(s.Reference.GasUsed); overflow {
		return Measurement{}, "", fmt.Errorf("reference cost of %q overflows", s.Label)
	}

	to, err := e.recipient(s)
	if err != nil {
		return Measurement{}, "", fmt.Errorf("failed to create recipient: %w", err)
	}
	req, err := s.Request(to)
	if err != nil {
		return Measurement{}, "", err
	}

	gasPrice, err := e.wallet.GasPrice(ctx)
	if err != nil {
		return Measurement{}, "", fail(err)
	}
	gas, err := e.wallet.Estimate(ctx, req)
	if err != nil {
		return Measurement{}, "", fail(err)
	}
	if m.Estimated, overflow = gasPrice.MulOverflow(gas); overflow {
		return Measurement{}, "", fmt.Errorf("estimated cost of %q overflows", s.Label)
	}

	before, err := e.wallet.Balance(ctx)
	if err != nil {
		return Measurement{}, "", fail(err)
	}
	tx, receipt, err := e.wallet.SendAndWait(ctx, req)
	if err != nil {
		return Measurement{}, "", fail(err)
	}
	after, err := e.wallet.Balance(ctx)
	if err != nil {
		return Measurement{}, "", fail(err)
	}
	var underflow bool
	if m.Actual, underflow = before.SubUnderflow(after); underflow {
		m.Actual = eth.ZeroWei
	}

	var ok bool
	if m.EstimatedGain, ok = m.Reference.Ratio(m.Estimated); !ok {
		return m, "", &DegenerateCostError{Scenario: s.Label, Price: price, Cost: "estimated"}
	}
	if m.Gain, ok = m.Reference.Ratio(m.Actual); !ok {
		return m, "", &DegenerateCostError{Scenario: s.Label, Price: price, Cost: "actual"}
	}

	took := time.Since(start)
	logger.Info("Measured scenario", "tx", tx.Hash(), "gasUsed", receipt.GasUsed,
		"l1Cost", m.Reference, "l2Cost", m.Actual, "gain", m.Gain, "took", took)
	if e.metrics != nil {
		e.metrics.RecordTrial(s.Label, price, took)
		e.metrics.RecordGain(s.Label, price, m.EstimatedGain, m.Gain)
	}
	return m, m.Block(), nil
}
