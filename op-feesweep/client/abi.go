package client

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

var (
	// L1MessengerAddress is the system contract that publishes L2->L1 messages.
	L1MessengerAddress = common.HexToAddress("0x0000000000000000000000000000000000008008")
	// SystemContextAddress holds block-level context such as the gas per pubdata byte.
	SystemContextAddress = common.HexToAddress("0x000000000000000000000000000000000000800b")
)

var (
	FuncTransfer          = w3.MustNewFunc("transfer(address,uint256)", "bool")
	FuncBalanceOf         = w3.MustNewFunc("balanceOf(address)", "uint256")
	FuncSendToL1          = w3.MustNewFunc("sendToL1(bytes)", "bytes32")
	FuncGasPerPubdataByte = w3.MustNewFunc("gasPerPubdataByte()", "uint256")
)
