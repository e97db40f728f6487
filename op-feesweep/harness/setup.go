package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/feesweep/op-feesweep/chainenv"
	"github.com/mantlenetworkio/feesweep/op-feesweep/client"
	"github.com/mantlenetworkio/feesweep/op-feesweep/config"
	"github.com/mantlenetworkio/feesweep/op-feesweep/node"
	"github.com/mantlenetworkio/feesweep/op-feesweep/registry"
	"github.com/mantlenetworkio/feesweep/op-feesweep/sweep"
	"github.com/mantlenetworkio/feesweep/op-service/ioutil"
)

// ServerArgs are the launcher arguments of a measurement node.
func ServerArgs(chain string, enableConsensus bool) []string {
	args := []string{"server", "--ignore-prerequisites"}
	if chain != "" {
		args = append(args, "--chain", chain)
	}
	return append(args, "--components="+node.Components(enableConsensus))
}

// Setup is a harness wired to a real deployment, with the resources it holds.
type Setup struct {
	Harness *Harness
	Env     *chainenv.Env
	Sweep   *sweep.Sweep
	LogPath string

	closers []io.Closer
}

func (s *Setup) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// FromConfig resolves the deployment and wires a harness against it. Nothing is
// started until Run is called.
func FromConfig(ctx context.Context, fs afero.Fs, cfg *config.Config, logger log.Logger, m Metrics, progress ioutil.Progressor) (*Setup, error) {
	env, err := chainenv.NewLoader(fs, cfg.Home).Load(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain environment: %w", err)
	}
	sw, err := sweep.New(cfg.SweepMode, cfg.SweepValues)
	if err != nil {
		return nil, err
	}
	key, err := client.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	setup := &Setup{Env: env, Sweep: sw}

	setup.LogPath = cfg.LogPath
	if setup.LogPath == "" {
		setup.LogPath = chainenv.LogPath(cfg.Home, cfg.Chain)
	}
	sink, err := node.OpenLogSink(fs, setup.LogPath)
	if err != nil {
		return nil, err
	}
	setup.closers = append(setup.closers, sink)
	logger.Info("Writing server logs", "path", setup.LogPath)

	l1, _, err := client.Dial(ctx, env.L1RPC)
	if err != nil {
		_ = setup.Close()
		return nil, err
	}
	setup.closers = append(setup.closers, closerFunc(l1.Close))
	l2, l2RPC, err := client.Dial(ctx, env.L2RPC)
	if err != nil {
		_ = setup.Close()
		return nil, err
	}
	setup.closers = append(setup.closers, closerFunc(l2.Close))

	var (
		overlay     node.OverlayWriter = node.EnvOverlay{}
		fileOverlay *node.FileOverlay
	)
	if env.GeneralConfigPath != "" {
		fileOverlay = &node.FileOverlay{Fs: fs, Path: env.GeneralConfigPath}
		overlay = fileOverlay
	}

	args := cfg.ServerArgs
	if len(args) == 0 {
		args = ServerArgs(cfg.Chain, cfg.EnableConsensus)
	}
	spawner := node.NewSpawner(logger.New("component", "node"), node.Config{
		Binary:          cfg.ServerBinary,
		Args:            args,
		ReadyTimeout:    cfg.ReadyTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, overlay, node.NewReadinessProbe(l2, cfg.HealthcheckURL), sink, m)

	registryPath := cfg.RegistryPath
	if registryPath == "" {
		registryPath = filepath.Join(filepath.Dir(setup.LogPath), registry.DefaultFileName)
	}

	deps := Deps{
		Controller:  FromSpawner(spawner),
		Overlay:     overlay,
		FileOverlay: fileOverlay,
		Registry:    registry.New(logger.New("component", "registry"), fs, registryPath),
		L1:          client.NewWallet(logger.New("layer", "l1"), l1, key),
		L2:          client.NewWallet(logger.New("layer", "l2"), l2, key),
		Env:         env,
		Metrics:     m,
		Progress:    progress,
	}
	if cfg.VerifyFeeParams {
		deps.Fees = RPCFeeSource{RPC: l2RPC}
	}
	setup.Harness = New(logger, Config{
		Sweep:           sw,
		L1Token:         cfg.L1Token,
		L2Token:         cfg.L2Token,
		Boundary:        cfg.Boundary,
		SkipBoundary:    cfg.SkipBoundary,
		TxTimeout:       cfg.TxTimeout,
		TeardownTimeout: cfg.TeardownTimeout,
	}, deps)
	return setup, nil
}
