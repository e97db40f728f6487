package eth

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/ethereum/go-ethereum/params"
)

var (
	OneEther = Ether(1)
	OneGWei  = GWei(1)
	OneWei   = WeiU64(1)
	ZeroWei  = WeiU64(0)
)

var (
	weiPerGWei = uint256.NewInt(params.GWei)
	weiPerEth  = uint256.NewInt(params.Ether)
)

var (
	ErrNegativeAmount = errors.New("negative amount")
	ErrAmountOverflow = errors.New("amount does not fit in uint256")
)

// ETH is an amount of wei. Values are passed flat and every arithmetic
// method returns a new value instead of mutating in place.
type ETH uint256.Int

// String prints the amount with thousands separators, in the largest unit
// that divides it exactly (ether, gwei or wei).
func (e ETH) String() string {
	vWei := (*uint256.Int)(&e)
	if vWei.Sign() == 0 {
		return "0 wei"
	}
	var vGWei, remainder uint256.Int
	vGWei.DivMod(vWei, weiPerGWei, &remainder)
	if remainder.Sign() == 0 {
		var vEth uint256.Int
		vEth.DivMod(vWei, weiPerEth, &remainder)
		if remainder.Sign() == 0 {
			return vEth.PrettyDec(',') + " ether"
		}
		return vGWei.PrettyDec(',') + " gwei"
	}
	return vWei.PrettyDec(',') + " wei"
}

// Decimal returns the amount, in wei, in decimal form.
func (e ETH) Decimal() string {
	return (*uint256.Int)(&e).Dec()
}

// WeiFloat returns the amount in wei as a float. Precision loss is possible.
func (e ETH) WeiFloat() float64 {
	return (*uint256.Int)(&e).Float64()
}

// EtherString returns the amount in ether units, without unit suffix or trailing zeroes.
func (e ETH) EtherString() string {
	return unitString((*uint256.Int)(&e), weiPerEth, 18)
}

// GWeiString returns the amount in gwei units, without unit suffix or trailing zeroes.
func (e ETH) GWeiString() string {
	return unitString((*uint256.Int)(&e), weiPerGWei, 9)
}

func unitString(v *uint256.Int, unit *uint256.Int, decimals int) string {
	var whole, remainder uint256.Int
	whole.DivMod(v, unit, &remainder)
	if remainder.Sign() == 0 {
		return whole.Dec()
	}
	digits := remainder.Dec()
	frac := strings.TrimRight(strings.Repeat("0", decimals-len(digits))+digits, "0")
	return whole.Dec() + "." + frac
}

// ToBig converts to *big.Int, in wei.
func (e ETH) ToBig() *big.Int {
	return (*uint256.Int)(&e).ToBig()
}

// ToU256 returns a copy of the amount as *uint256.Int, in wei.
func (e ETH) ToU256() *uint256.Int {
	return (*uint256.Int)(&e).Clone()
}

// Add panics if the sum overflows uint256.
func (e ETH) Add(v ETH) (out ETH) {
	if _, overflow := (*uint256.Int)(&out).AddOverflow((*uint256.Int)(&e), (*uint256.Int)(&v)); overflow {
		panic(fmt.Errorf("add overflow: %s + %s", e, v))
	}
	return
}

// SubUnderflow subtracts v and reports whether the subtraction wrapped below zero.
func (e ETH) SubUnderflow(v ETH) (out ETH, underflow bool) {
	_, underflow = (*uint256.Int)(&out).SubOverflow((*uint256.Int)(&e), (*uint256.Int)(&v))
	return
}

// Mul panics if the product overflows uint256.
func (e ETH) Mul(scalar uint64) (out ETH) {
	var overflow bool
	out, overflow = e.MulOverflow(scalar)
	if overflow {
		panic(fmt.Errorf("overflow on ETH mul: %s * %d", e, scalar))
	}
	return
}

func (e ETH) MulOverflow(scalar uint64) (out ETH, overflow bool) {
	_, overflow = (*uint256.Int)(&out).MulOverflow((*uint256.Int)(&e), uint256.NewInt(scalar))
	return
}

// Ratio returns e/denominator as a float. ok is false when the denominator is zero.
func (e ETH) Ratio(denominator ETH) (ratio float64, ok bool) {
	if denominator.IsZero() {
		return 0, false
	}
	r := new(big.Rat).SetFrac(e.ToBig(), denominator.ToBig())
	ratio, _ = r.Float64()
	return ratio, true
}

func (e ETH) Lt(v ETH) bool {
	return (*uint256.Int)(&e).Lt((*uint256.Int)(&v))
}

func (e ETH) Gt(v ETH) bool {
	return (*uint256.Int)(&e).Gt((*uint256.Int)(&v))
}

func (e ETH) IsZero() bool {
	return (*uint256.Int)(&e).IsZero()
}

// MarshalText marshals as a decimal wei amount, without separators or unit.
func (e ETH) MarshalText() ([]byte, error) {
	return []byte(e.Decimal()), nil
}

// UnmarshalText accepts hexadecimal (0x prefix) and decimal wei amounts.
func (e *ETH) UnmarshalText(data []byte) error {
	return (*uint256.Int)(e).UnmarshalText(data)
}

// WeiBig converts an RPC-provided amount. Unlike the constructors below it
// returns an error instead of panicking, since the value comes from outside.
func WeiBig(wei *big.Int) (out ETH, err error) {
	if wei == nil {
		return out, errors.New("nil amount")
	}
	if wei.Sign() < 0 {
		return out, ErrNegativeAmount
	}
	if (*uint256.Int)(&out).SetFromBig(wei) {
		return ETH{}, ErrAmountOverflow
	}
	return out, nil
}

// MustWeiBig is WeiBig for trusted inputs.
func MustWeiBig(wei *big.Int) ETH {
	out, err := WeiBig(wei)
	if err != nil {
		panic(err)
	}
	return out
}

// WeiU64 turns the given uint64 amount of wei into ETH-typed wei.
func WeiU64(wei uint64) (out ETH) {
	(*uint256.Int)(&out).SetUint64(wei)
	return
}

// GWei multiplies the amount by 1e9 to denominate into wei.
func GWei(gwei uint64) (out ETH) {
	var x uint256.Int
	x.SetUint64(gwei)
	x.Mul(&x, weiPerGWei)
	return ETH(x)
}

// Ether multiplies the amount by 1e18 to denominate into wei.
func Ether(ether uint64) ETH {
	var x uint256.Int
	x.SetUint64(ether)
	x.Mul(&x, weiPerEth)
	return ETH(x)
}
