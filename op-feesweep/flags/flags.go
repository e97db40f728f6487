package flags

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/feesweep/op-feesweep/config"
	"github.com/mantlenetworkio/feesweep/op-feesweep/sweep"
	opservice "github.com/mantlenetworkio/feesweep/op-service"
	"github.com/mantlenetworkio/feesweep/op-service/cliutil"
	oplog "github.com/mantlenetworkio/feesweep/op-service/log"
	opmetrics "github.com/mantlenetworkio/feesweep/op-service/metrics"
)

const EnvVarPrefix = "OP_FEESWEEP"

func prefixEnvVars(name string) []string {
	return opservice.PrefixEnvVar(EnvVarPrefix, name)
}

var (
	HomeFlag = &cli.StringFlag{
		Name:    "home",
		Usage:   "Root of the deployment checkout. Chain configs and logs are resolved below it.",
		EnvVars: append(prefixEnvVars("HOME"), "ZKSYNC_HOME"),
	}
	PrivateKeyFlag = &cli.StringFlag{
		Name:    "private-key",
		Usage:   "Hex private key of the funded account sending on L1 and L2",
		EnvVars: prefixEnvVars("PRIVATE_KEY"),
	}
	L1TokenFlag = &cli.StringFlag{
		Name:    "l1-token",
		Usage:   "ERC20 test token on L1, used for the reference transfer",
		EnvVars: prefixEnvVars("L1_TOKEN"),
	}
	L2TokenFlag = &cli.StringFlag{
		Name:    "l2-token",
		Usage:   "Bridged counterpart of the test token on L2",
		EnvVars: prefixEnvVars("L2_TOKEN"),
	}
)

var (
	ChainFlag = &cli.StringFlag{
		Name:    "chain",
		Usage:   "Chain whose YAML configs are used. Unset reads the deployment from env vars.",
		EnvVars: append(prefixEnvVars("CHAIN"), "CHAIN_NAME"),
	}
	ServerBinaryFlag = &cli.StringFlag{
		Name:    "node.binary",
		Usage:   "Server launcher binary",
		Value:   config.DefaultServerBinary,
		EnvVars: prefixEnvVars("NODE_BINARY"),
	}
	ServerArgsFlag = &cli.StringSliceFlag{
		Name:    "node.arg",
		Usage:   "Server argument, repeatable. Replaces the generated arguments when set.",
		EnvVars: prefixEnvVars("NODE_ARGS"),
	}
	EnableConsensusFlag = &cli.BoolFlag{
		Name:    "node.enable-consensus",
		Usage:   "Run the server with the consensus component",
		EnvVars: append(prefixEnvVars("ENABLE_CONSENSUS"), "ENABLE_CONSENSUS"),
	}
	HealthcheckURLFlag = &cli.StringFlag{
		Name:    "node.healthcheck-url",
		Usage:   "Healthcheck endpoint polled, besides eth_chainId, while the server starts",
		EnvVars: prefixEnvVars("NODE_HEALTHCHECK_URL"),
	}
	LogPathFlag = &cli.StringFlag{
		Name:    "node.log-path",
		Usage:   "Server log file, appended to across restarts. Defaults to logs/server/fees/<chain>/server.log under home.",
		EnvVars: prefixEnvVars("NODE_LOG_PATH"),
	}
	RegistryPathFlag = &cli.StringFlag{
		Name:    "node.registry-path",
		Usage:   "File recording the server left running by a run. Defaults to a file next to the server log.",
		EnvVars: prefixEnvVars("NODE_REGISTRY_PATH"),
	}
	ReadyTimeoutFlag = &cli.DurationFlag{
		Name:    "node.ready-timeout",
		Usage:   "Bound on the wait for a started server to serve requests",
		Value:   config.DefaultCLIConfig().ReadyTimeout,
		EnvVars: prefixEnvVars("NODE_READY_TIMEOUT"),
	}
	ShutdownTimeoutFlag = &cli.DurationFlag{
		Name:    "node.shutdown-timeout",
		Usage:   "Bound on the wait for the server process group to exit",
		Value:   config.DefaultCLIConfig().ShutdownTimeout,
		EnvVars: prefixEnvVars("NODE_SHUTDOWN_TIMEOUT"),
	}
	SweepModeFlag = &cli.StringFlag{
		Name:    "sweep.mode",
		Usage:   "Built-in L1 gas price list: 'ci' or 'full'. Defaults to 'ci' when CI is set.",
		Value:   sweep.ModeFull.String(),
		EnvVars: prefixEnvVars("SWEEP_MODE"),
	}
	SweepValuesFlag = &cli.StringFlag{
		Name:    "sweep.values",
		Usage:   "Comma-separated L1 gas prices replacing the built-in list, e.g. '5gwei,10gwei'",
		EnvVars: prefixEnvVars("SWEEP_VALUES"),
	}
	SkipBoundaryFlag = &cli.BoolFlag{
		Name:    "boundary.skip",
		Usage:   "Do not run the uint32 gas boundary trial",
		EnvVars: prefixEnvVars("BOUNDARY_SKIP"),
	}
	SuccessPayloadFlag = &cli.IntFlag{
		Name:    "boundary.success-payload",
		Usage:   "Size in bytes of the message expected to cross the gas boundary",
		Value:   config.DefaultCLIConfig().Boundary.SuccessPayload,
		EnvVars: prefixEnvVars("BOUNDARY_SUCCESS_PAYLOAD"),
	}
	FailurePayloadFlag = &cli.IntFlag{
		Name:    "boundary.failure-payload",
		Usage:   "Size in bytes of the message sent with too little gas",
		Value:   config.DefaultCLIConfig().Boundary.FailurePayload,
		EnvVars: prefixEnvVars("BOUNDARY_FAILURE_PAYLOAD"),
	}
	PubdataMultiplierFlag = &cli.Uint64Flag{
		Name:    "boundary.pubdata-multiplier",
		Usage:   "Factor applied to the minimal L2 gas price to get the enforced pubdata price",
		Value:   config.DefaultCLIConfig().Boundary.PubdataMultiplier,
		EnvVars: prefixEnvVars("BOUNDARY_PUBDATA_MULTIPLIER"),
	}
	VerifyFeeParamsFlag = &cli.BoolFlag{
		Name:    "verify-fee-params",
		Usage:   "After each restart, check zks_getFeeParams reports the enforced prices",
		Value:   true,
		EnvVars: prefixEnvVars("VERIFY_FEE_PARAMS"),
	}
	TxTimeoutFlag = &cli.DurationFlag{
		Name:    "tx-timeout",
		Usage:   "Bound on each transaction inclusion wait",
		Value:   config.DefaultCLIConfig().TxTimeout,
		EnvVars: prefixEnvVars("TX_TIMEOUT"),
	}
	TeardownTimeoutFlag = &cli.DurationFlag{
		Name:    "teardown-timeout",
		Usage:   "Bound on restoring and restarting the server after the run",
		Value:   config.DefaultCLIConfig().TeardownTimeout,
		EnvVars: prefixEnvVars("TEARDOWN_TIMEOUT"),
	}
	ReportJSONFlag = &cli.StringFlag{
		Name:    "report.json",
		Usage:   "Write the measurements as JSON to this file",
		EnvVars: prefixEnvVars("REPORT_JSON"),
	}
	ReportPlotFlag = &cli.StringFlag{
		Name:    "report.plot",
		Usage:   "Write a PNG chart of the gains to this file",
		EnvVars: prefixEnvVars("REPORT_PLOT"),
	}
	SummaryFlag = &cli.BoolFlag{
		Name:    "report.summary",
		Usage:   "Print a summary table after the full report",
		EnvVars: prefixEnvVars("REPORT_SUMMARY"),
	}
	ColorFlag = &cli.StringFlag{
		Name:    "report.color",
		Usage:   "Color the console report: 'auto', 'always' or 'never'",
		Value:   "auto",
		EnvVars: prefixEnvVars("REPORT_COLOR"),
	}
	ProfileFlag = &cli.StringFlag{
		Name:    "profile",
		Usage:   "TOML profile overriding the sweep, timeouts and boundary settings",
		EnvVars: prefixEnvVars("PROFILE"),
	}
)

var requiredFlags = []cli.Flag{
	HomeFlag,
	PrivateKeyFlag,
	L1TokenFlag,
	L2TokenFlag,
}

var optionalFlags = []cli.Flag{
	ChainFlag,
	ServerBinaryFlag,
	ServerArgsFlag,
	EnableConsensusFlag,
	HealthcheckURLFlag,
	LogPathFlag,
	RegistryPathFlag,
	ReadyTimeoutFlag,
	ShutdownTimeoutFlag,
	SweepModeFlag,
	SweepValuesFlag,
	SkipBoundaryFlag,
	SuccessPayloadFlag,
	FailurePayloadFlag,
	PubdataMultiplierFlag,
	VerifyFeeParamsFlag,
	TxTimeoutFlag,
	TeardownTimeoutFlag,
	ReportJSONFlag,
	ReportPlotFlag,
	SummaryFlag,
	ColorFlag,
	ProfileFlag,
}

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(Flags, requiredFlags...)
	Flags = append(Flags, optionalFlags...)
}

// Flags contains the list of configuration options available to the binary.
var Flags []cli.Flag

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}

// inCI follows the CI env var convention: any value other than an explicit false counts.
func inCI() bool {
	v := os.Getenv("CI")
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}

// ConfigFromCLI builds the config from flags, then applies the profile if one is given.
// The sweep mode defaults to ci when the CI env var is set and the mode flag is unset.
func ConfigFromCLI(ctx *cli.Context, version string) (*config.Config, error) {
	mode, err := sweep.ParseMode(ctx.String(SweepModeFlag.Name))
	if err != nil {
		return nil, err
	}
	if !ctx.IsSet(SweepModeFlag.Name) && inCI() {
		mode = sweep.ModeCI
	}
	values, err := cliutil.WeiListFlag(ctx, SweepValuesFlag.Name)
	if err != nil {
		return nil, err
	}
	l1Token, err := addressFlag(ctx, L1TokenFlag.Name)
	if err != nil {
		return nil, err
	}
	l2Token, err := addressFlag(ctx, L2TokenFlag.Name)
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{
		Version:         version,
		LogConfig:       oplog.ReadCLIConfig(ctx),
		MetricsConfig:   opmetrics.ReadCLIConfig(ctx),
		Home:            ctx.String(HomeFlag.Name),
		Chain:           ctx.String(ChainFlag.Name),
		ServerBinary:    ctx.String(ServerBinaryFlag.Name),
		ServerArgs:      ctx.StringSlice(ServerArgsFlag.Name),
		EnableConsensus: ctx.Bool(EnableConsensusFlag.Name),
		HealthcheckURL:  ctx.String(HealthcheckURLFlag.Name),
		LogPath:         ctx.String(LogPathFlag.Name),
		RegistryPath:    ctx.String(RegistryPathFlag.Name),
		PrivateKey:      ctx.String(PrivateKeyFlag.Name),
		L1Token:         l1Token,
		L2Token:         l2Token,
		SweepMode:       mode,
		SweepValues:     values,
		SkipBoundary:    ctx.Bool(SkipBoundaryFlag.Name),
		VerifyFeeParams: ctx.Bool(VerifyFeeParamsFlag.Name),
		ReadyTimeout:    ctx.Duration(ReadyTimeoutFlag.Name),
		ShutdownTimeout: ctx.Duration(ShutdownTimeoutFlag.Name),
		TxTimeout:       ctx.Duration(TxTimeoutFlag.Name),
		TeardownTimeout: ctx.Duration(TeardownTimeoutFlag.Name),
		ReportJSON:      ctx.String(ReportJSONFlag.Name),
		ReportPlot:      ctx.String(ReportPlotFlag.Name),
		Summary:         ctx.Bool(SummaryFlag.Name),
		ColorOutput:     ctx.String(ColorFlag.Name),
	}
	cfg.Boundary.SuccessPayload = ctx.Int(SuccessPayloadFlag.Name)
	cfg.Boundary.FailurePayload = ctx.Int(FailurePayloadFlag.Name)
	cfg.Boundary.PubdataMultiplier = ctx.Uint64(PubdataMultiplierFlag.Name)
	cfg.Boundary.GasPerPubdata = config.DefaultCLIConfig().Boundary.GasPerPubdata

	if path := ctx.String(ProfileFlag.Name); path != "" {
		p, err := config.LoadProfile(afero.NewOsFs(), path)
		if err != nil {
			return nil, err
		}
		if err := p.Apply(cfg); err != nil {
			return nil, fmt.Errorf("profile %s: %w", path, err)
		}
	}
	return cfg, nil
}

func addressFlag(ctx *cli.Context, name string) (common.Address, error) {
	s := ctx.String(name)
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("flag %s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}
