package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/feesweep/op-feesweep/boundary"
	"github.com/mantlenetworkio/feesweep/op-feesweep/config"
	"github.com/mantlenetworkio/feesweep/op-feesweep/flags"
	"github.com/mantlenetworkio/feesweep/op-feesweep/harness"
	"github.com/mantlenetworkio/feesweep/op-feesweep/metrics"
	"github.com/mantlenetworkio/feesweep/op-feesweep/report"
	opservice "github.com/mantlenetworkio/feesweep/op-service"
	"github.com/mantlenetworkio/feesweep/op-service/ioutil"
	oplog "github.com/mantlenetworkio/feesweep/op-service/log"
	opmetrics "github.com/mantlenetworkio/feesweep/op-service/metrics"
)

var (
	Version   = "v0.0.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args)
	stop()
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx context.Context, w io.Writer, ew io.Writer, args []string) error {
	app := cli.NewApp()
	app.Writer = w
	app.ErrWriter = ew
	app.Flags = flags.Flags
	app.Version = opservice.FormatVersion(Version, GitCommit, GitDate, "")
	app.Name = "op-feesweep"
	app.Usage = "Measures L2 transaction costs against L1 across a sweep of enforced L1 gas prices."
	app.Description = "Restarts the local node once per price point, runs four transfer scenarios against it,\n" +
		" prints the gain of each over L1 and checks the uint32 gas boundary.\n" +
		" A default node is left running when the sweep ends, whatever the outcome."
	app.Action = func(cliCtx *cli.Context) error {
		return sweepAction(cliCtx, app.Version)
	}
	app.Commands = []*cli.Command{
		{
			Name:  "doc",
			Usage: "Documentation subcommands",
			Subcommands: []*cli.Command{
				{
					Name:  "metrics",
					Usage: "Dumps a list of supported metrics",
					Action: func(cliCtx *cli.Context) error {
						return writeMetricsDoc(cliCtx.App.Writer, metrics.NewMetrics("default"))
					},
				},
			},
		},
	}
	return app.RunContext(ctx, args)
}

func writeMetricsDoc(w io.Writer, m *metrics.Metrics) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Type", "Labels", "Description"})
	table.SetAutoWrapText(false)
	for _, d := range m.Document() {
		table.Append([]string{d.Name, d.Type, fmt.Sprint(d.Labels), d.Help})
	}
	table.Render()
	return nil
}

func sweepAction(cliCtx *cli.Context, version string) error {
	if err := flags.CheckRequired(cliCtx); err != nil {
		return err
	}
	cfg, err := flags.ConfigFromCLI(cliCtx, version)
	if err != nil {
		return err
	}
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid CLI flags: %w", err)
	}

	ew := cliCtx.App.ErrWriter
	logger := oplog.NewLogger(ew, cfg.LogConfig)
	oplog.SetGlobalLogHandler(logger.Handler())
	logger.Info("Starting fee sweep", "version", version, "chain", cfg.Chain, "mode", cfg.SweepMode)

	m := metrics.NewMetrics("default")
	m.RecordInfo(version)
	if cfg.MetricsConfig.Enabled {
		srv, err := opmetrics.StartServer(m.Registry(), cfg.MetricsConfig.ListenAddr, cfg.MetricsConfig.ListenPort)
		if err != nil {
			return err
		}
		logger.Info("Started metrics server", "addr", srv.Addr())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				logger.Error("Failed to stop metrics server", "err", err)
			}
		}()
	}

	fs := afero.NewOsFs()
	setup, err := harness.FromConfig(cliCtx.Context, fs, cfg, logger, m, progressor(ew, logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := setup.Close(); err != nil {
			logger.Warn("Failed to release resources", "err", err)
		}
	}()

	out, runErr := setup.Harness.Run(cliCtx.Context)
	if out.FinalPid != 0 {
		logger.Info("Default node left running", "pid", out.FinalPid)
	}
	if out.Report != nil {
		if err := publish(cliCtx.App.Writer, fs, cfg, setup, out); err != nil {
			logger.Error("Failed to write report", "err", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	if url := cfg.MetricsConfig.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(cliCtx.Context), 10*time.Second)
		defer cancel()
		if err := opmetrics.Push(pushCtx, url, "op-feesweep", m.Registry()); err != nil {
			logger.Warn("Failed to push metrics", "url", url, "err", err)
		}
	}
	return runErr
}

func progressor(ew io.Writer, logger log.Logger) ioutil.Progressor {
	if f, ok := ew.(*os.File); ok && report.IsTerminal(f) {
		return ioutil.BarProgressor(ew, "measurements")
	}
	return ioutil.NewLogProgressor(logger, "Sweep progress").Progressor
}

func colorize(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && report.IsTerminal(f)
}

// publish prints the report and writes the optional JSON and plot files.
func publish(w io.Writer, fs afero.Fs, cfg *config.Config, setup *harness.Setup, out *harness.Outcome) error {
	if err := report.NewPrinter(w, colorize(cfg.ColorOutput, w)).Print(out.Report); err != nil {
		return err
	}
	if cfg.Summary {
		out.Report.WriteSummary(w)
	}
	if cfg.ReportJSON != "" {
		meta := report.Meta{
			RunID: out.RunID,
			Mode:  setup.Sweep.Mode().String(),
			Sweep: setup.Sweep.Values(),
		}
		if out.Boundary.Status != boundary.StatusSkipped || out.Boundary.Reason != "" {
			meta.Boundary = out.Boundary.Status.String()
		}
		if err := writeFile(fs, cfg.ReportJSON, func(f io.Writer) error {
			return out.Report.WriteJSON(f, meta)
		}); err != nil {
			return err
		}
	}
	if cfg.ReportPlot != "" {
		if err := writeFile(fs, cfg.ReportPlot, out.Report.WritePlot); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(fs afero.Fs, path string, fn func(w io.Writer) error) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
