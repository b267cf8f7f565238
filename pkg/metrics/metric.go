// Package metrics computes whole-graph measures of a prepared connectome.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/modularity"
)

var (
	// ErrTooSmall is returned for graphs with fewer than two nodes.
	ErrTooSmall = errors.New("metrics: graph needs at least two nodes")
	// ErrUnknownMetric is returned by Registry.Get for an unregistered name.
	ErrUnknownMetric = errors.New("metrics: unknown metric")
)

// Metric names, also the CLI arguments of compute.
const (
	GlobalEfficiencyName = "global_efficiency"
	CharPathLengthName   = "char_path_length"
	ClusteringName       = "clustering"
	StrengthName         = "strength"
	ModularityName       = "modularity"
)

// Values holds the output columns of one metric on one connectome.
type Values struct {
	Scalars map[string]float64
	Labels  map[string]string
	// Nodes is the per-node vector for metrics that have one.
	Nodes []float64
	// Details are logged with each file but not written.
	Details map[string]float64
}

// Get returns the scalar column col, NaN when absent.
func (v Values) Get(col string) float64 {
	if x, ok := v.Scalars[col]; ok {
		return x
	}
	return math.NaN()
}

// Metric computes a fixed set of columns from a weight matrix.
type Metric interface {
	Name() string
	Columns() []string
	Compute(ctx context.Context, w mat.Matrix) (Values, error)
}

// Failed returns the NaN values written when a metric cannot be computed.
func Failed(m Metric) Values {
	v := Values{Scalars: make(map[string]float64), Labels: make(map[string]string)}
	for _, c := range m.Columns() {
		v.Scalars[c] = math.NaN()
	}
	return v
}

// Registry looks metrics up by name.
type Registry struct {
	metrics map[string]Metric
}

// NewRegistry registers ms under their names.
func NewRegistry(ms ...Metric) *Registry {
	r := &Registry{metrics: make(map[string]Metric, len(ms))}
	for _, m := range ms {
		r.metrics[m.Name()] = m
	}
	return r
}

// Get returns the metric registered as name.
func (r *Registry) Get(name string) (Metric, error) {
	m, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return m, nil
}

// Names lists the registered metrics in the canonical compute order.
func (r *Registry) Names() []string {
	order := map[string]int{
		GlobalEfficiencyName: 0,
		CharPathLengthName:   1,
		ClusteringName:       2,
		StrengthName:         3,
		ModularityName:       4,
	}
	names := make([]string, 0, len(r.metrics))
	for n := range r.metrics {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
	return names
}

// Options configures the default registry.
type Options struct {
	IncludeInfinite bool
	Modularity      modularity.Options
	Logger          zerolog.Logger
}

// DefaultRegistry registers every metric.
func DefaultRegistry(opts Options) *Registry {
	return NewRegistry(
		GlobalEfficiencyMetric{},
		CharPathLengthMetric{IncludeInfinite: opts.IncludeInfinite},
		ClusteringMetric{},
		StrengthMetric{},
		ModularityMetric{Options: opts.Modularity, Logger: opts.Logger},
	)
}
