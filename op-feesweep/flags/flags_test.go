package flags

import (
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/feesweep/op-feesweep/sweep"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

func cliContext(t *testing.T, args ...string) *cli.Context {
	app := cli.NewApp()
	app.Flags = Flags
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range app.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(app, set, nil)
}

var requiredArgs = []string{
	"--home=/era",
	"--private-key=0x7726827caac94a7f9e1b160f7ea819f172f7b6f9d2a97f992c38edeab82d4110",
	"--l1-token=0x0000000000000000000000000000000000000011",
	"--l2-token=0x0000000000000000000000000000000000000022",
}

// TestUniqueFlags asserts that all flag names and env vars are unique, to avoid accidental conflicts.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, f := range Flags {
		for _, name := range f.Names() {
			_, ok := seenCLI[name]
			require.False(t, ok, "duplicate flag %s", name)
			seenCLI[name] = struct{}{}
		}
	}
}

func TestEnvVarPrefix(t *testing.T) {
	for _, f := range Flags {
		envFlag, ok := f.(interface{ GetEnvVars() []string })
		require.True(t, ok, "flag %s has no env vars", f.Names()[0])
		vars := envFlag.GetEnvVars()
		require.NotEmpty(t, vars, "flag %s has no env vars", f.Names()[0])
		require.True(t, strings.HasPrefix(vars[0], EnvVarPrefix+"_"), "flag %s env var %s", f.Names()[0], vars[0])
	}
}

func TestCheckRequired(t *testing.T) {
	require.ErrorContains(t, CheckRequired(cliContext(t)), "flag home is required")
	require.NoError(t, CheckRequired(cliContext(t, requiredArgs...)))
}

func TestConfigFromCLI(t *testing.T) {
	args := append([]string{
		"--sweep.mode=ci",
		"--sweep.values=5gwei,10gwei",
		"--node.arg=server", "--node.arg=--chain=era",
		"--tx-timeout=45s",
		"--boundary.failure-payload=92000",
	}, requiredArgs...)
	cfg, err := ConfigFromCLI(cliContext(t, args...), "v1")
	require.NoError(t, err)
	require.NoError(t, cfg.Check())
	require.Equal(t, sweep.ModeCI, cfg.SweepMode)
	require.Equal(t, []eth.ETH{eth.GWei(5), eth.GWei(10)}, cfg.SweepValues)
	require.Equal(t, []string{"server", "--chain=era"}, cfg.ServerArgs)
	require.Equal(t, 45*time.Second, cfg.TxTimeout)
	require.Equal(t, 92_000, cfg.Boundary.FailurePayload)
	require.Equal(t, uint64(50_000), cfg.Boundary.GasPerPubdata)
	require.Equal(t, common.HexToAddress("0x22"), cfg.L2Token)
	require.True(t, cfg.VerifyFeeParams)
}

func TestConfigFromCLICIDefault(t *testing.T) {
	t.Setenv("CI", "true")
	cfg, err := ConfigFromCLI(cliContext(t, requiredArgs...), "v1")
	require.NoError(t, err)
	require.Equal(t, sweep.ModeCI, cfg.SweepMode)

	cfg, err = ConfigFromCLI(cliContext(t, append([]string{"--sweep.mode=full"}, requiredArgs...)...), "v1")
	require.NoError(t, err)
	require.Equal(t, sweep.ModeFull, cfg.SweepMode, "an explicit mode wins over CI")
}

func TestConfigFromCLICIValues(t *testing.T) {
	for v, want := range map[string]sweep.Mode{
		"1":     sweep.ModeCI,
		"yes":   sweep.ModeCI,
		"TRUE":  sweep.ModeCI,
		"false": sweep.ModeFull,
		"0":     sweep.ModeFull,
		"":      sweep.ModeFull,
	} {
		t.Run("CI="+v, func(t *testing.T) {
			t.Setenv("CI", v)
			cfg, err := ConfigFromCLI(cliContext(t, requiredArgs...), "v1")
			require.NoError(t, err)
			require.Equal(t, want, cfg.SweepMode)
		})
	}
}

func TestConfigFromCLIRejects(t *testing.T) {
	_, err := ConfigFromCLI(cliContext(t, "--sweep.mode=nightly"), "v1")
	require.Error(t, err)
	_, err = ConfigFromCLI(cliContext(t, "--l1-token=0xnope"), "v1")
	require.ErrorContains(t, err, "invalid address")
	_, err = ConfigFromCLI(cliContext(t, "--sweep.values=5gwei,,"), "v1")
	require.Error(t, err)
}
