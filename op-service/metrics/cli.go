package metrics

import (
	"errors"
	"math"

	"github.com/urfave/cli/v2"

	opservice "github.com/mantlenetworkio/feesweep/op-service"
)

const (
	EnabledFlagName     = "metrics.enabled"
	ListenAddrFlagName  = "metrics.addr"
	PortFlagName        = "metrics.port"
	PushgatewayFlagName = "metrics.pushgateway"
	defaultListenAddr   = "0.0.0.0"
	defaultListenPort   = 7300
)

var ErrInvalidPort = errors.New("invalid metrics port")

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Enabled:    false,
		ListenAddr: defaultListenAddr,
		ListenPort: defaultListenPort,
	}
}

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    EnabledFlagName,
			Usage:   "Enable the metrics server",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "METRICS_ENABLED"),
		},
		&cli.StringFlag{
			Name:    ListenAddrFlagName,
			Usage:   "Metrics listening address",
			Value:   defaultListenAddr,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "METRICS_ADDR"),
		},
		&cli.IntFlag{
			Name:    PortFlagName,
			Usage:   "Metrics listening port",
			Value:   defaultListenPort,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "METRICS_PORT"),
		},
		&cli.StringFlag{
			Name:    PushgatewayFlagName,
			Usage:   "Pushgateway URL to push the final metrics to when the run ends. Empty disables pushing.",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "METRICS_PUSHGATEWAY"),
		},
	}
}

type CLIConfig struct {
	Enabled        bool
	ListenAddr     string
	ListenPort     int
	PushgatewayURL string
}

func (m CLIConfig) Check() error {
	if !m.Enabled {
		return nil
	}
	if m.ListenPort < 0 || m.ListenPort > math.MaxUint16 {
		return ErrInvalidPort
	}
	return nil
}

func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	return CLIConfig{
		Enabled:        ctx.Bool(EnabledFlagName),
		ListenAddr:     ctx.String(ListenAddrFlagName),
		ListenPort:     ctx.Int(PortFlagName),
		PushgatewayURL: ctx.String(PushgatewayFlagName),
	}
}
