package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/mantlenetworkio/feesweep/op-feesweep/scenario"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

var ErrNoMeasurements = errors.New("no measurements recorded")

// Meta describes the run a report belongs to.
type Meta struct {
	RunID    string    `json:"runId"`
	Mode     string    `json:"mode"`
	Sweep    []eth.ETH `json:"sweep"`
	Boundary string    `json:"boundary,omitempty"`
}

type document struct {
	Meta
	Measurements []scenario.Measurement `json:"measurements"`
}

// WriteJSON writes the measurements with the run metadata as one indented JSON document.
func (a *Aggregator) WriteJSON(w io.Writer, meta Meta) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	rows := a.Measurements()
	if rows == nil {
		rows = []scenario.Measurement{}
	}
	return enc.Encode(document{Meta: meta, Measurements: rows})
}

// WriteSummary renders one table row per measurement.
func (a *Aggregator) WriteSummary(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scenario", "L1 gas price (gwei)", "L1 cost", "L2 estimated cost", "L2 cost", "Estimated gain", "Gain"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	for _, m := range a.rows {
		table.Append([]string{
			m.Scenario,
			m.Price.GWeiString(),
			m.Reference.EtherString(),
			m.Estimated.EtherString(),
			m.Actual.EtherString(),
			fmt.Sprintf("%.2f", m.EstimatedGain),
			fmt.Sprintf("%.2f", m.Gain),
		})
	}
	table.Render()
}

// WritePlot renders the actual gain against the L1 gas price as a PNG, one line per scenario.
func (a *Aggregator) WritePlot(w io.Writer) error {
	if len(a.rows) == 0 {
		return ErrNoMeasurements
	}
	p := plot.New()
	p.Title.Text = "L2 gain versus L1 gas price"
	p.X.Label.Text = "L1 gas price (gwei)"
	p.Y.Label.Text = "Gain (L1 cost / L2 cost)"

	for i, s := range a.sections {
		var pts plotter.XYs
		for _, m := range a.rows {
			if m.Scenario != s.Label {
				continue
			}
			pts = append(pts, plotter.XY{X: m.Price.WeiFloat() / 1e9, Y: m.Gain})
		}
		if len(pts) == 0 {
			continue
		}
		slices.SortFunc(pts, func(x, y plotter.XY) int {
			switch {
			case x.X < y.X:
				return -1
			case x.X > y.X:
				return 1
			}
			return 0
		})
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("create line for %q: %w", s.Label, err)
		}
		c := plotutil.Color(i)
		line.Color = c
		line.Width = vg.Points(2)
		points.Color = c
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(s.Label, line, points)
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// Printer writes the final report to a console, highlighting scenario headers.
type Printer struct {
	w      io.Writer
	header *color.Color
}

func NewPrinter(w io.Writer, colorize bool) *Printer {
	header := color.New(color.FgCyan, color.Bold)
	if colorize {
		header.EnableColor()
	} else {
		header.DisableColor()
	}
	return &Printer{w: w, header: header}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) Print(a *Aggregator) error {
	if _, err := io.WriteString(p.w, "Full report: \n\n"); err != nil {
		return err
	}
	for i, s := range a.Sections() {
		if i > 0 {
			if _, err := io.WriteString(p.w, "\n\n"); err != nil {
				return err
			}
		}
		if _, err := p.header.Fprint(p.w, s.Label+":"); err != nil {
			return err
		}
		if _, err := io.WriteString(p.w, "\n\n"); err != nil {
			return err
		}
		for _, b := range s.Blocks {
			if _, err := io.WriteString(p.w, b); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(p.w, "\n")
	return err
}
