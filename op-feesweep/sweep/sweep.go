package sweep

import (
	"fmt"
	"slices"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

// Mode selects the built-in price list.
type Mode string

const (
	ModeCI   Mode = "ci"
	ModeFull Mode = "full"
)

func (m Mode) String() string {
	return string(m)
}

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCI, ModeFull:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown sweep mode %q, expected %q or %q", s, ModeCI, ModeFull)
	}
}

var (
	ciPrices   = []uint64{5, 10}
	fullPrices = []uint64{1, 5, 10, 25, 50, 100, 200, 400, 800, 1000, 2000}
)

// Sweep is the fixed, ordered list of L1 gas prices a run measures under.
type Sweep struct {
	mode   Mode
	values []eth.ETH
}

// New builds the sweep for a mode. A non-empty custom list replaces the built-in
// list of the mode; its values must be positive and are kept in the given order.
func New(mode Mode, custom []eth.ETH) (*Sweep, error) {
	if len(custom) > 0 {
		for i, v := range custom {
			if v.IsZero() {
				return nil, fmt.Errorf("sweep value %d is zero", i)
			}
		}
		return &Sweep{mode: mode, values: slices.Clone(custom)}, nil
	}
	var gwei []uint64
	switch mode {
	case ModeCI:
		gwei = ciPrices
	case ModeFull:
		gwei = fullPrices
	default:
		return nil, fmt.Errorf("unknown sweep mode %q", mode)
	}
	values := make([]eth.ETH, len(gwei))
	for i, g := range gwei {
		values[i] = eth.GWei(g)
	}
	return &Sweep{mode: mode, values: values}, nil
}

// Values returns a copy of the price list, in sweep order.
func (s *Sweep) Values() []eth.ETH {
	return slices.Clone(s.values)
}

func (s *Sweep) Len() int {
	return len(s.values)
}

func (s *Sweep) Mode() Mode {
	return s.mode
}
