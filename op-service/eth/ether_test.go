package eth

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEther(t *testing.T) {
	t.Run("constants", func(t *testing.T) {
		require.EqualValues(t, OneGWei, OneWei.Mul(1e9))
		require.EqualValues(t, OneEther, OneGWei.Mul(1e9))
		require.EqualValues(t, big.NewInt(1), OneWei.ToBig(), "sanity check not mutated value")
	})

	t.Run("string", func(t *testing.T) {
		require.Equal(t, "0 wei", ZeroWei.String())
		require.Equal(t, "1,234,567 wei", WeiU64(1_234_567).String())
		require.Equal(t, "5 gwei", GWei(5).String())
		require.Equal(t, "2,000 ether", Ether(2000).String())
	})

	t.Run("ether string", func(t *testing.T) {
		require.Equal(t, "0", ZeroWei.EtherString())
		require.Equal(t, "0.000000000000000001", OneWei.EtherString())
		require.Equal(t, "0.000021", GWei(21_000).EtherString())
		require.Equal(t, "1.000000001", OneEther.Add(OneGWei).EtherString())
	})

	t.Run("gwei string", func(t *testing.T) {
		require.Equal(t, "5", GWei(5).GWeiString())
		require.Equal(t, "2000", GWei(2000).GWeiString())
		require.Equal(t, "0.5", WeiU64(500_000_000).GWeiString())
		require.Equal(t, "0.000000001", OneWei.GWeiString())
	})

	t.Run("sub underflow", func(t *testing.T) {
		out, underflow := GWei(3).SubUnderflow(GWei(1))
		require.False(t, underflow)
		require.Equal(t, GWei(2), out)
		_, underflow = GWei(1).SubUnderflow(GWei(3))
		require.True(t, underflow)
	})

	t.Run("mul overflow", func(t *testing.T) {
		_, overflow := Ether(1).MulOverflow(math.MaxUint64)
		require.False(t, overflow)
		huge := MustWeiBig(new(big.Int).Lsh(big.NewInt(1), 250))
		_, overflow = huge.MulOverflow(1 << 10)
		require.True(t, overflow)
		require.Panics(t, func() { huge.Mul(1 << 10) })
	})

	t.Run("ratio", func(t *testing.T) {
		r, ok := GWei(10).Ratio(GWei(4))
		require.True(t, ok)
		require.Equal(t, 2.5, r)
		_, ok = GWei(10).Ratio(ZeroWei)
		require.False(t, ok)
	})
}

func TestWeiBig(t *testing.T) {
	v, err := WeiBig(big.NewInt(42))
	require.NoError(t, err)
	require.Equal(t, WeiU64(42), v)

	_, err = WeiBig(big.NewInt(-1))
	require.ErrorIs(t, err, ErrNegativeAmount)

	_, err = WeiBig(new(big.Int).Lsh(big.NewInt(1), 256))
	require.ErrorIs(t, err, ErrAmountOverflow)

	_, err = WeiBig(nil)
	require.Error(t, err)
}

func TestETHText(t *testing.T) {
	text, err := GWei(5).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "5000000000", string(text))

	var out ETH
	require.NoError(t, out.UnmarshalText([]byte("0x2a")))
	require.Equal(t, WeiU64(42), out)
}
