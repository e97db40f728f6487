package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/feesweep/op-feesweep/sweep"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

func validConfig() *Config {
	cfg := DefaultCLIConfig()
	cfg.Home = "/era"
	cfg.PrivateKey = "0x01"
	cfg.L1Token = common.HexToAddress("0x01")
	cfg.L2Token = common.HexToAddress("0x02")
	return cfg
}

func TestDefaultConfigNeedsDeployment(t *testing.T) {
	err := DefaultCLIConfig().Check()
	require.ErrorContains(t, err, "home directory is required")
	require.ErrorContains(t, err, "private key is required")
	require.ErrorContains(t, err, "token addresses")
	require.NoError(t, validConfig().Check())
}

func TestCheckRejects(t *testing.T) {
	cfg := validConfig()
	cfg.SweepValues = []eth.ETH{eth.GWei(1), eth.ZeroWei}
	require.ErrorContains(t, cfg.Check(), "sweep value 1 is zero")

	cfg = validConfig()
	cfg.TxTimeout = 0
	require.ErrorContains(t, cfg.Check(), "tx timeout must be positive")

	cfg = validConfig()
	cfg.ColorOutput = "sometimes"
	require.ErrorContains(t, cfg.Check(), "unknown color mode")

	cfg = validConfig()
	cfg.Boundary.FailurePayload = 1
	require.ErrorContains(t, cfg.Check(), "failure payload")
}

func TestProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p.toml", []byte(`
mode = "ci"
sweep = ["3gwei", "7 gwei", "1000000000"]
tx_timeout = "30s"

[boundary]
skip = true
failure_payload = 95000
`), 0o644))

	p, err := LoadProfile(fs, "/p.toml")
	require.NoError(t, err)
	cfg := validConfig()
	require.NoError(t, p.Apply(cfg))
	require.Equal(t, sweep.ModeCI, cfg.SweepMode)
	require.Equal(t, []eth.ETH{eth.GWei(3), eth.GWei(7), eth.GWei(1)}, cfg.SweepValues)
	require.Equal(t, 30*time.Second, cfg.TxTimeout)
	require.Equal(t, 5*time.Minute, cfg.ReadyTimeout, "unset fields keep their value")
	require.True(t, cfg.SkipBoundary)
	require.Equal(t, 95_000, cfg.Boundary.FailurePayload)
	require.Equal(t, 90_000, cfg.Boundary.SuccessPayload)
	require.NoError(t, cfg.Check())
}

func TestProfileRejectsUnknownKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p.toml", []byte("sweeps = [\"1gwei\"]\n"), 0o644))
	_, err := LoadProfile(fs, "/p.toml")
	require.ErrorContains(t, err, "unknown keys")

	_, err = LoadProfile(fs, "/missing.toml")
	require.Error(t, err)
}

func TestProfileBadValues(t *testing.T) {
	p := &Profile{Mode: "nightly"}
	require.Error(t, p.Apply(validConfig()))
	p = &Profile{Sweep: []string{"lots"}}
	require.ErrorContains(t, p.Apply(validConfig()), "sweep value 0")
}
