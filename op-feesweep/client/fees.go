package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

// RPCCaller is satisfied by *rpc.Client.
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// FeeParams are the L1 prices the node's fee model currently uses.
type FeeParams struct {
	L1GasPrice     eth.ETH
	L1PubdataPrice eth.ETH
}

type rawFeeParamsV2 struct {
	L1GasPrice     json.Number `json:"l1_gas_price"`
	L1PubdataPrice json.Number `json:"l1_pubdata_price"`
}

type rawFeeParams struct {
	V1 *struct {
		L1GasPrice json.Number `json:"l1_gas_price"`
	} `json:"V1"`
	V2 *rawFeeParamsV2 `json:"V2"`
}

var ErrUnknownFeeParams = errors.New("unrecognized fee params version")

// FetchFeeParams reads the fee model inputs through zks_getFeeParams.
// Version 1 responses carry no pubdata price; it is reported as the L1 gas price.
func FetchFeeParams(ctx context.Context, c RPCCaller) (FeeParams, error) {
	var raw json.RawMessage
	if err := c.CallContext(ctx, &raw, "zks_getFeeParams"); err != nil {
		return FeeParams{}, fmt.Errorf("zks_getFeeParams: %w", err)
	}
	var params rawFeeParams
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil {
		return FeeParams{}, fmt.Errorf("failed to decode fee params: %w", err)
	}
	switch {
	case params.V2 != nil:
		l1, err := parseNumber(params.V2.L1GasPrice)
		if err != nil {
			return FeeParams{}, fmt.Errorf("l1_gas_price: %w", err)
		}
		pubdata, err := parseNumber(params.V2.L1PubdataPrice)
		if err != nil {
			return FeeParams{}, fmt.Errorf("l1_pubdata_price: %w", err)
		}
		return FeeParams{L1GasPrice: l1, L1PubdataPrice: pubdata}, nil
	case params.V1 != nil:
		l1, err := parseNumber(params.V1.L1GasPrice)
		if err != nil {
			return FeeParams{}, fmt.Errorf("l1_gas_price: %w", err)
		}
		return FeeParams{L1GasPrice: l1, L1PubdataPrice: l1}, nil
	default:
		return FeeParams{}, ErrUnknownFeeParams
	}
}

func parseNumber(n json.Number) (eth.ETH, error) {
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return eth.ETH{}, fmt.Errorf("invalid number %q", n)
	}
	return eth.WeiBig(v)
}
