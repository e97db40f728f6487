package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/feesweep/op-feesweep/boundary"
	"github.com/mantlenetworkio/feesweep/op-feesweep/sweep"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
	oplog "github.com/mantlenetworkio/feesweep/op-service/log"
	opmetrics "github.com/mantlenetworkio/feesweep/op-service/metrics"
)

const DefaultServerBinary = "zkstack"

type Config struct {
	Version string

	LogConfig     oplog.CLIConfig
	MetricsConfig opmetrics.CLIConfig

	// Home is the root of the deployment checkout; chain configs and logs live below it.
	Home  string
	Chain string

	ServerBinary string
	// ServerArgs replaces the generated server arguments when set.
	ServerArgs      []string
	EnableConsensus bool
	HealthcheckURL  string
	// LogPath defaults to the chain's fees log under Home.
	LogPath string
	// RegistryPath defaults to a file next to LogPath.
	RegistryPath string

	PrivateKey string
	L1Token    common.Address
	L2Token    common.Address

	SweepMode   sweep.Mode
	SweepValues []eth.ETH

	Boundary        boundary.Config
	SkipBoundary    bool
	VerifyFeeParams bool

	ReadyTimeout    time.Duration
	ShutdownTimeout time.Duration
	TxTimeout       time.Duration
	TeardownTimeout time.Duration

	ReportJSON  string
	ReportPlot  string
	Summary     bool
	ColorOutput string
}

func (c *Config) Check() error {
	var result error
	result = errors.Join(result, c.MetricsConfig.Check())
	result = errors.Join(result, c.Boundary.Check())
	if c.Home == "" {
		result = errors.Join(result, errors.New("home directory is required"))
	}
	if c.ServerBinary == "" {
		result = errors.Join(result, errors.New("server binary is required"))
	}
	if c.PrivateKey == "" {
		result = errors.Join(result, errors.New("private key is required"))
	}
	if c.L1Token == (common.Address{}) || c.L2Token == (common.Address{}) {
		result = errors.Join(result, errors.New("both L1 and L2 test token addresses are required"))
	}
	if _, err := sweep.New(c.SweepMode, c.SweepValues); err != nil {
		result = errors.Join(result, err)
	}
	for name, d := range map[string]time.Duration{
		"ready timeout":    c.ReadyTimeout,
		"shutdown timeout": c.ShutdownTimeout,
		"tx timeout":       c.TxTimeout,
		"teardown timeout": c.TeardownTimeout,
	} {
		if d <= 0 {
			result = errors.Join(result, fmt.Errorf("%s must be positive", name))
		}
	}
	switch c.ColorOutput {
	case "auto", "always", "never":
	default:
		result = errors.Join(result, fmt.Errorf("unknown color mode %q", c.ColorOutput))
	}
	return result
}

func DefaultCLIConfig() *Config {
	return &Config{
		Version:         "dev",
		LogConfig:       oplog.DefaultCLIConfig(),
		MetricsConfig:   opmetrics.DefaultCLIConfig(),
		ServerBinary:    DefaultServerBinary,
		SweepMode:       sweep.ModeFull,
		Boundary:        boundary.DefaultConfig(),
		VerifyFeeParams: true,
		ReadyTimeout:    5 * time.Minute,
		ShutdownTimeout: time.Minute,
		TxTimeout:       2 * time.Minute,
		TeardownTimeout: 6 * time.Minute,
		ColorOutput:     "auto",
	}
}
