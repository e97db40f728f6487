package cliutil

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

func TestParseWei(t *testing.T) {
	for in, want := range map[string]eth.ETH{
		"5000000000": eth.GWei(5),
		"5gwei":      eth.GWei(5),
		"5 GWei":     eth.GWei(5),
		"0x2a":       eth.WeiU64(42),
		"1ether":     eth.OneEther,
		"7wei":       eth.WeiU64(7),
	} {
		got, err := ParseWei(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseWei(" ")
	require.ErrorIs(t, err, ErrFlagBlank)
	_, err = ParseWei("-1")
	require.ErrorIs(t, err, eth.ErrNegativeAmount)
	_, err = ParseWei("ten")
	require.Error(t, err)
}

func TestWeiListFlag(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("sweep", "", "")
	require.NoError(t, set.Parse([]string{"--sweep=1gwei, 25gwei,2000gwei"}))
	ctx := cli.NewContext(cli.NewApp(), set, nil)

	vals, err := WeiListFlag(ctx, "sweep")
	require.NoError(t, err)
	require.Equal(t, []eth.ETH{eth.GWei(1), eth.GWei(25), eth.GWei(2000)}, vals)

	empty := flag.NewFlagSet("test", flag.ContinueOnError)
	empty.String("sweep", "", "")
	vals, err = WeiListFlag(cli.NewContext(cli.NewApp(), empty, nil), "sweep")
	require.NoError(t, err)
	require.Nil(t, vals)
}
