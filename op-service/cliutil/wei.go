package cliutil

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

var ErrFlagBlank = errors.New("cannot parse blank amount")

// ParseWei parses a decimal or 0x-prefixed wei amount. A "gwei" or "ether" suffix scales the value.
func ParseWei(s string) (eth.ETH, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return eth.ETH{}, ErrFlagBlank
	}
	unit := big.NewInt(1)
	switch {
	case strings.HasSuffix(s, "gwei"):
		unit = big.NewInt(1e9)
		s = strings.TrimSpace(strings.TrimSuffix(s, "gwei"))
	case strings.HasSuffix(s, "ether"):
		unit = big.NewInt(1e18)
		s = strings.TrimSpace(strings.TrimSuffix(s, "ether"))
	case strings.HasSuffix(s, "wei"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "wei"))
	}
	base := 10
	if strings.HasPrefix(s, "0x") {
		base = 16
		s = s[2:]
	}
	out, ok := new(big.Int).SetString(s, base)
	if !ok {
		return eth.ETH{}, fmt.Errorf("error parsing amount %q", s)
	}
	return eth.WeiBig(out.Mul(out, unit))
}

// WeiListFlag reads a comma-separated list of amounts, see ParseWei.
// An unset flag yields a nil list.
func WeiListFlag(cliCtx *cli.Context, flagName string) ([]eth.ETH, error) {
	raw := cliCtx.String(flagName)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []eth.ETH
	for _, part := range strings.Split(raw, ",") {
		v, err := ParseWei(part)
		if err != nil {
			return nil, fmt.Errorf("flag %s: %w", flagName, err)
		}
		out = append(out, v)
	}
	return out, nil
}
