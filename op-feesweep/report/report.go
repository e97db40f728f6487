// Package report accumulates the per-scenario measurement blocks of a sweep.
package report

import (
	"fmt"
	"strings"

	"github.com/mantlenetworkio/feesweep/op-feesweep/scenario"
)

// Section is the report of one scenario: its label and one block per price point.
type Section struct {
	Label  string
	Blocks []string
}

func (s Section) String() string {
	return s.Label + ":\n\n" + strings.Join(s.Blocks, "")
}

// Aggregator is append-only: blocks are kept in the order they arrive and sections
// in the order the scenarios were declared.
type Aggregator struct {
	sections []Section
	rows     []scenario.Measurement
}

func New(labels []string) *Aggregator {
	sections := make([]Section, len(labels))
	for i, l := range labels {
		sections[i] = Section{Label: l}
	}
	return &Aggregator{sections: sections}
}

// IndexError is returned for a scenario index outside the declared scenarios.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("scenario index %d out of range [0, %d)", e.Index, e.Len)
}

func (a *Aggregator) Append(idx int, block string) error {
	if idx < 0 || idx >= len(a.sections) {
		return &IndexError{Index: idx, Len: len(a.sections)}
	}
	a.sections[idx].Blocks = append(a.sections[idx].Blocks, block)
	return nil
}

// Record appends the block of a measurement and keeps the measurement for the structured outputs.
func (a *Aggregator) Record(idx int, m scenario.Measurement, block string) error {
	if err := a.Append(idx, block); err != nil {
		return err
	}
	a.rows = append(a.rows, m)
	return nil
}

// Count is the number of blocks appended for the scenario at idx.
func (a *Aggregator) Count(idx int) int {
	if idx < 0 || idx >= len(a.sections) {
		return 0
	}
	return len(a.sections[idx].Blocks)
}

// Sections returns a copy of the scenario reports.
func (a *Aggregator) Sections() []Section {
	out := make([]Section, len(a.sections))
	for i, s := range a.sections {
		out[i] = Section{Label: s.Label, Blocks: append([]string(nil), s.Blocks...)}
	}
	return out
}

// Measurements returns the recorded measurements in recording order.
func (a *Aggregator) Measurements() []scenario.Measurement {
	return append([]scenario.Measurement(nil), a.rows...)
}

// Finalize joins the scenario reports with blank lines.
func (a *Aggregator) Finalize() string {
	parts := make([]string, len(a.sections))
	for i, s := range a.sections {
		parts[i] = s.String()
	}
	return strings.Join(parts, "\n\n")
}
