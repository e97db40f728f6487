package scenario

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// References are the mined L1 receipts the standard scenarios compare against.
type References struct {
	ETHTransfer   *types.Receipt
	ERC20Transfer *types.Receipt
}

// Standard returns the four measured scenarios in report order. Every transfer moves one
// unit (wei or token base unit); token transfers go through the L2 token at l2Token.
func Standard(refs References, l2Token common.Address) []Scenario {
	token := l2Token
	return []Scenario{
		{Label: "ETH transfer (to new)", Reference: refs.ETHTransfer, Recipient: RecipientFresh, Value: big.NewInt(1)},
		{Label: "ETH transfer (to old)", Reference: refs.ETHTransfer, Recipient: RecipientWarm, Value: big.NewInt(1)},
		{Label: "ERC20 transfer (to new)", Reference: refs.ERC20Transfer, Recipient: RecipientFresh, Token: &token, Value: big.NewInt(1)},
		{Label: "ERC20 transfer (to old)", Reference: refs.ERC20Transfer, Recipient: RecipientWarm, Token: &token, Value: big.NewInt(1)},
	}
}

// Labels returns the labels of scenarios, in order.
func Labels(scenarios []Scenario) []string {
	out := make([]string, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.Label
	}
	return out
}
