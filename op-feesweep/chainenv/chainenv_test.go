package chainenv

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

const home = "/era"

func writeChain(t *testing.T, fs afero.Fs, files map[string]string) {
	dir := ConfigDir(home, "era")
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, name), []byte(content), 0o644))
	}
}

var chainFiles = map[string]string{
	"secrets.yaml": `
l1:
  l1_rpc_url: http://127.0.0.1:8545
`,
	"general.yaml": `
api:
  web3_json_rpc:
    http_url: http://127.0.0.1:3050
state_keeper:
  minimal_l2_gas_price: 25000000
  transaction_slots: 8192
`,
	"contracts.yaml": `
l1:
  base_token_addr: "0x0000000000000000000000000000000000000001"
`,
}

func TestLoadFromFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeChain(t, fs, chainFiles)

	env, err := NewLoader(fs, home).Load("era")
	require.NoError(t, err)
	require.Equal(t, "era", env.ChainName)
	require.Equal(t, "http://127.0.0.1:8545", env.L1RPC)
	require.Equal(t, "http://127.0.0.1:3050", env.L2RPC)
	require.Equal(t, common.HexToAddress("0x01"), env.BaseToken)
	require.Equal(t, eth.WeiU64(25_000_000), env.MinimalL2GasPrice)
	require.Equal(t, DAModeRollup, env.DAMode)
	require.False(t, env.Validium())
	require.Equal(t, filepath.Join(home, "chains/era/configs/general.yaml"), env.GeneralConfigPath)
}

func TestLoadGenesisDAMode(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeChain(t, fs, chainFiles)
	writeChain(t, fs, map[string]string{"genesis.yaml": "l1_batch_commit_data_generator_mode: Validium\n"})

	env, err := NewLoader(fs, home).Load("era")
	require.NoError(t, err)
	require.True(t, env.Validium())
}

func TestLoadMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeChain(t, fs, map[string]string{"general.yaml": chainFiles["general.yaml"]})
	_, err := NewLoader(fs, home).Load("era")
	require.ErrorContains(t, err, "secrets.yaml")
}

func TestLoadFromEnv(t *testing.T) {
	vars := map[string]string{
		EnvL1RPC:             "http://l1",
		EnvL2RPC:             "http://l2",
		EnvMinimalL2GasPrice: "0x17d7840",
		EnvDAMode:            "Validium",
	}
	l := &Loader{Fs: afero.NewMemMapFs(), Home: home, Getenv: func(k string) string { return vars[k] }}
	env, err := l.Load("")
	require.NoError(t, err)
	require.Empty(t, env.ChainName)
	require.Empty(t, env.GeneralConfigPath)
	require.Equal(t, eth.WeiU64(25_000_000), env.MinimalL2GasPrice)
	require.Equal(t, common.Address{}, env.BaseToken)
	require.True(t, env.Validium())
}

func TestLoadFromEnvRejectsMissing(t *testing.T) {
	l := &Loader{Fs: afero.NewMemMapFs(), Home: home, Getenv: func(string) string { return "" }}
	_, err := l.Load("")
	require.ErrorContains(t, err, EnvMinimalL2GasPrice)

	l.Getenv = func(k string) string {
		if k == EnvMinimalL2GasPrice {
			return "1"
		}
		return ""
	}
	_, err = l.Load("")
	require.ErrorContains(t, err, "missing L1 RPC url")
	require.ErrorContains(t, err, "missing L2 RPC url")
}

func TestParseDAMode(t *testing.T) {
	m, err := ParseDAMode("validium")
	require.NoError(t, err)
	require.Equal(t, DAModeValidium, m)
	m, err = ParseDAMode("")
	require.NoError(t, err)
	require.Equal(t, DAModeRollup, m)
	_, err = ParseDAMode("avail")
	require.Error(t, err)
}

func TestLogPath(t *testing.T) {
	require.Equal(t, "/era/logs/server/fees/default/server.log", LogPath(home, ""))
	require.Equal(t, "/era/logs/server/fees/era/server.log", LogPath(home, "era"))
}
