// Package chainenv resolves the deployment a run measures: RPC endpoints, base token,
// minimal L2 gas price and data availability mode. Values come from the chain's
// YAML configs when a chain is named, from the process environment otherwise.
package chainenv

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

type DAMode string

const (
	DAModeRollup   DAMode = "Rollup"
	DAModeValidium DAMode = "Validium"
)

func ParseDAMode(s string) (DAMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rollup":
		return DAModeRollup, nil
	case "validium":
		return DAModeValidium, nil
	default:
		return "", fmt.Errorf("unknown data availability mode %q", s)
	}
}

const (
	EnvL1RPC             = "ETH_CLIENT_WEB3_URL"
	EnvL2RPC             = "API_WEB3_JSON_RPC_HTTP_URL"
	EnvBaseToken         = "CONTRACTS_BASE_TOKEN_ADDR"
	EnvMinimalL2GasPrice = "CHAIN_STATE_KEEPER_MINIMAL_L2_GAS_PRICE"
	EnvDAMode            = "CHAIN_STATE_KEEPER_L1_BATCH_COMMIT_DATA_GENERATOR_MODE"
)

// Env describes the deployment under test.
type Env struct {
	// ChainName is empty when the environment came from env vars.
	ChainName         string
	L1RPC             string
	L2RPC             string
	BaseToken         common.Address
	MinimalL2GasPrice eth.ETH
	DAMode            DAMode
	// GeneralConfigPath is the file fee overlays are written to. Empty in env mode.
	GeneralConfigPath string
}

func (e *Env) Validium() bool {
	return e.DAMode == DAModeValidium
}

// Loader reads Env. Getenv defaults to os.Getenv.
type Loader struct {
	Fs     afero.Fs
	Home   string
	Getenv func(string) string
}

func NewLoader(fs afero.Fs, home string) *Loader {
	return &Loader{Fs: fs, Home: home, Getenv: os.Getenv}
}

// ConfigDir is the directory holding the YAML configs of chain.
func ConfigDir(home, chain string) string {
	return filepath.Join(home, "chains", chain, "configs")
}

// LogPath is the default node log file of a run against chain.
func LogPath(home, chain string) string {
	if chain == "" {
		chain = "default"
	}
	return filepath.Join(home, "logs", "server", "fees", chain, "server.log")
}

type secretsFile struct {
	L1 struct {
		L1RPCURL string `yaml:"l1_rpc_url"`
	} `yaml:"l1"`
}

type generalFile struct {
	API struct {
		Web3JSONRPC struct {
			HTTPURL string `yaml:"http_url"`
		} `yaml:"web3_json_rpc"`
	} `yaml:"api"`
	StateKeeper struct {
		MinimalL2GasPrice *yaml.Node `yaml:"minimal_l2_gas_price"`
		DAMode            string     `yaml:"l1_batch_commit_data_generator_mode"`
	} `yaml:"state_keeper"`
}

type contractsFile struct {
	L1 struct {
		BaseTokenAddr string `yaml:"base_token_addr"`
	} `yaml:"l1"`
}

type genesisFile struct {
	DAMode string `yaml:"l1_batch_commit_data_generator_mode"`
}

// Load resolves the environment of chain, or of the process environment when chain is empty.
func (l *Loader) Load(chain string) (*Env, error) {
	if chain == "" {
		return l.fromEnv()
	}
	return l.fromFiles(chain)
}

func (l *Loader) fromFiles(chain string) (*Env, error) {
	dir := ConfigDir(l.Home, chain)
	var (
		secrets   secretsFile
		general   generalFile
		contracts contractsFile
		genesis   genesisFile
	)
	if err := l.readYAML(filepath.Join(dir, "secrets.yaml"), &secrets, true); err != nil {
		return nil, err
	}
	generalPath := filepath.Join(dir, "general.yaml")
	if err := l.readYAML(generalPath, &general, true); err != nil {
		return nil, err
	}
	if err := l.readYAML(filepath.Join(dir, "contracts.yaml"), &contracts, true); err != nil {
		return nil, err
	}
	if err := l.readYAML(filepath.Join(dir, "genesis.yaml"), &genesis, false); err != nil {
		return nil, err
	}

	env := &Env{
		ChainName:         chain,
		L1RPC:             secrets.L1.L1RPCURL,
		L2RPC:             general.API.Web3JSONRPC.HTTPURL,
		GeneralConfigPath: generalPath,
	}
	var err error
	if env.BaseToken, err = parseAddress("l1.base_token_addr", contracts.L1.BaseTokenAddr); err != nil {
		return nil, err
	}
	if general.StateKeeper.MinimalL2GasPrice == nil {
		return nil, errors.New("general.yaml: state_keeper.minimal_l2_gas_price is not set")
	}
	if env.MinimalL2GasPrice, err = parseWei("state_keeper.minimal_l2_gas_price", general.StateKeeper.MinimalL2GasPrice.Value); err != nil {
		return nil, err
	}
	mode := genesis.DAMode
	if mode == "" {
		mode = general.StateKeeper.DAMode
	}
	if env.DAMode, err = ParseDAMode(mode); err != nil {
		return nil, err
	}
	return env, env.check()
}

func (l *Loader) fromEnv() (*Env, error) {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	env := &Env{
		L1RPC: getenv(EnvL1RPC),
		L2RPC: getenv(EnvL2RPC),
	}
	var err error
	if env.BaseToken, err = parseAddress(EnvBaseToken, getenv(EnvBaseToken)); err != nil {
		return nil, err
	}
	if env.MinimalL2GasPrice, err = parseWei(EnvMinimalL2GasPrice, getenv(EnvMinimalL2GasPrice)); err != nil {
		return nil, err
	}
	if env.DAMode, err = ParseDAMode(getenv(EnvDAMode)); err != nil {
		return nil, err
	}
	return env, env.check()
}

func (e *Env) check() error {
	var errs []error
	if e.L1RPC == "" {
		errs = append(errs, errors.New("missing L1 RPC url"))
	}
	if e.L2RPC == "" {
		errs = append(errs, errors.New("missing L2 RPC url"))
	}
	if e.MinimalL2GasPrice.IsZero() {
		errs = append(errs, errors.New("minimal L2 gas price must be positive"))
	}
	return errors.Join(errs...)
}

func (l *Loader) readYAML(path string, out any, required bool) error {
	data, err := afero.ReadFile(l.Fs, path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func parseAddress(name, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseWei(name, s string) (eth.ETH, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return eth.ETH{}, fmt.Errorf("%s is not set", name)
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return eth.ETH{}, fmt.Errorf("%s: invalid number %q", name, s)
	}
	out, err := eth.WeiBig(v)
	if err != nil {
		return eth.ETH{}, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
