package client

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
	"github.com/mantlenetworkio/feesweep/op-service/wait"
)

// Backend is the subset of ethclient.Client a wallet needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TxRequest describes a transaction before it is priced, signed and sent.
type TxRequest struct {
	To    *common.Address
	Value *big.Int
	Data  []byte
	// GasLimit is estimated when zero.
	GasLimit uint64
	// Legacy sends a type 0 transaction priced at the suggested gas price.
	Legacy bool
}

// Wallet signs and sends transactions from one key on one chain.
type Wallet struct {
	log     log.Logger
	backend Backend
	key     *ecdsa.PrivateKey
	addr    common.Address
}

func NewWallet(logger log.Logger, backend Backend, key *ecdsa.PrivateKey) *Wallet {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &Wallet{
		log:     logger.New("account", addr),
		backend: backend,
		key:     key,
		addr:    addr,
	}
}

func (w *Wallet) Address() common.Address {
	return w.addr
}

func (w *Wallet) Backend() Backend {
	return w.backend
}

func (w *Wallet) GasPrice(ctx context.Context) (eth.ETH, error) {
	p, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return eth.ETH{}, fmt.Errorf("failed to get gas price: %w", err)
	}
	return eth.WeiBig(p)
}

func (w *Wallet) Balance(ctx context.Context) (eth.ETH, error) {
	b, err := w.backend.BalanceAt(ctx, w.addr, nil)
	if err != nil {
		return eth.ETH{}, fmt.Errorf("failed to get balance: %w", err)
	}
	return eth.WeiBig(b)
}

func (w *Wallet) msg(req TxRequest) ethereum.CallMsg {
	return ethereum.CallMsg{
		From:  w.addr,
		To:    req.To,
		Value: req.Value,
		Data:  req.Data,
		Gas:   req.GasLimit,
	}
}

// Estimate returns the gas the node estimates for the request. Nothing is sent.
func (w *Wallet) Estimate(ctx context.Context, req TxRequest) (uint64, error) {
	msg := w.msg(req)
	msg.Gas = 0
	gas, err := w.backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

// Call executes the request as a read-only call against the latest state.
func (w *Wallet) Call(ctx context.Context, req TxRequest) ([]byte, error) {
	out, err := w.backend.CallContract(ctx, w.msg(req), nil)
	if err != nil {
		return nil, fmt.Errorf("call failed: %w", err)
	}
	return out, nil
}

// Send signs and submits the request. It does not wait for inclusion.
func (w *Wallet) Send(ctx context.Context, req TxRequest) (*types.Transaction, error) {
	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	nonce, err := w.backend.PendingNonceAt(ctx, w.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get next nonce: %w", err)
	}
	gas := req.GasLimit
	if gas == 0 {
		if gas, err = w.Estimate(ctx, req); err != nil {
			return nil, err
		}
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	var txData types.TxData
	if req.Legacy {
		gasPrice, err := w.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		txData = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       req.To,
			Value:    value,
			Data:     req.Data,
		}
	} else {
		gasTipCap, gasFeeCap, err := w.dynamicFees(ctx)
		if err != nil {
			return nil, err
		}
		txData = &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: gasTipCap,
			GasFeeCap: gasFeeCap,
			Gas:       gas,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
		}
	}
	tx, err := types.SignNewTx(w.key, types.LatestSignerForChainID(chainID), txData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to send transaction (tx: %s): %w", tx.Hash(), err)
	}
	w.log.Debug("Sent transaction", "tx", tx.Hash(), "type", tx.Type(), "gas", gas, "nonce", nonce)
	return tx, nil
}

func (w *Wallet) dynamicFees(ctx context.Context) (tipCap, feeCap *big.Int, err error) {
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest block: %w", err)
	}
	tipCap, err = w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(params.GWei)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(3)), tipCap)
	return tipCap, feeCap, nil
}

// Wait blocks until the transaction is included with a successful status.
func (w *Wallet) Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return wait.ForReceiptOK(ctx, w.backend, hash)
}

// Receipt fetches the receipt of an included transaction, whatever its status.
func (w *Wallet) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return w.backend.TransactionReceipt(ctx, hash)
}

// SendAndWait sends the request and waits for a successful receipt.
func (w *Wallet) SendAndWait(ctx context.Context, req TxRequest) (*types.Transaction, *types.Receipt, error) {
	tx, err := w.Send(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	receipt, err := w.Wait(ctx, tx.Hash())
	if err != nil {
		return tx, receipt, err
	}
	return tx, receipt, nil
}

// TransferRequest builds a plain value transfer.
func TransferRequest(to common.Address, value *big.Int) TxRequest {
	return TxRequest{To: &to, Value: value}
}

// ERC20TransferRequest builds an ERC20 transfer call on token.
func ERC20TransferRequest(token, to common.Address, amount *big.Int) (TxRequest, error) {
	data, err := FuncTransfer.EncodeArgs(to, amount)
	if err != nil {
		return TxRequest{}, fmt.Errorf("failed to encode transfer: %w", err)
	}
	return TxRequest{To: &token, Data: data}, nil
}
