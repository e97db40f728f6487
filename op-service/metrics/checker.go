package metrics

import (
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	gocl "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

type MetricFamilyChecker struct {
	fam *gocl.MetricFamily
	t   require.TestingT
}

func hasAllLabels(m *gocl.Metric, labels map[string]string) bool {
	for k, v := range labels {
		found := false
		for _, lab := range m.Label {
			if lab.GetName() == k && lab.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FindByLabels finds the single metric of the family that carries all the given labels.
// It fails the test if there is none, or more than one.
func (f *MetricFamilyChecker) FindByLabels(labels map[string]string) *gocl.Metric {
	var found *gocl.Metric
	for _, m := range f.fam.Metric {
		if hasAllLabels(m, labels) {
			require.Nil(f.t, found, "labels %v match more than one metric", labels)
			found = m
		}
	}
	require.NotNil(f.t, found, "cannot find metric with labels %v", labels)
	return found
}

// Count returns the number of metrics in the family.
func (f *MetricFamilyChecker) Count() int {
	return len(f.fam.Metric)
}

type MetricFamiliesChecker struct {
	families []*gocl.MetricFamily
	t        require.TestingT
}

// FindByName finds a metric family by its full name, failing the test if it is absent.
func (m *MetricFamiliesChecker) FindByName(name string) *MetricFamilyChecker {
	for _, f := range m.families {
		if f.GetName() == name {
			return &MetricFamilyChecker{fam: f, t: m.t}
		}
	}
	require.FailNow(m.t, "cannot find metric family", name)
	return nil
}

// Dump prints the gathered families as indented JSON, for debugging.
func (m *MetricFamiliesChecker) Dump() string {
	outStr, _ := json.MarshalIndent(m.families, "  ", "  ")
	return string(outStr)
}

// NewMetricChecker gathers the registry once, for searching in tests.
func NewMetricChecker(t require.TestingT, reg *prometheus.Registry) *MetricFamiliesChecker {
	families, err := reg.Gather()
	require.NoError(t, err, "must gather metrics")
	return &MetricFamiliesChecker{families: families, t: t}
}
