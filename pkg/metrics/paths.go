package metrics

import (
	"context"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
)

// Distances returns the all-pairs weighted shortest path lengths of w, where
// each positive weight becomes the length 1/w. Unreachable pairs are +Inf and
// the diagonal is 0.
func Distances(w mat.Matrix) *mat.Dense {
	n := connectome.Size(w)
	if n == 0 {
		return &mat.Dense{}
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if v := w.At(i, j); v > 0 {
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(j), 1/v))
			}
		}
	}

	paths := path.DijkstraAllPaths(g)
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d.Set(i, j, paths.Weight(int64(i), int64(j)))
		}
	}
	return d
}

// GlobalEfficiency is the mean inverse shortest path length over ordered
// pairs of distinct nodes. Unreachable pairs contribute zero.
func GlobalEfficiency(w mat.Matrix) (float64, error) {
	n := connectome.Size(w)
	if n < 2 {
		return math.NaN(), ErrTooSmall
	}
	d := Distances(w)
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				sum += 1 / d.At(i, j)
			}
		}
	}
	return sum / float64(n*n-n), nil
}

// CharPathLength is the mean shortest path length over ordered pairs of
// distinct nodes. With includeInfinite a single unreachable pair makes it
// +Inf; otherwise only finite pairs are averaged and NaN is returned when
// there are none.
func CharPathLength(w mat.Matrix, includeInfinite bool) (float64, error) {
	n := connectome.Size(w)
	if n < 2 {
		return math.NaN(), ErrTooSmall
	}
	d := Distances(w)
	sum, count := 0.0, 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			v := d.At(i, j)
			if math.IsInf(v, 1) {
				if includeInfinite {
					return math.Inf(1), nil
				}
				continue
			}
			sum += v
			count++
		}
	}
	if count == 0 {
		return math.NaN(), nil
	}
	return sum / float64(count), nil
}

// GlobalEfficiencyMetric reports global_efficiency.
type GlobalEfficiencyMetric struct{}

func (GlobalEfficiencyMetric) Name() string      { return GlobalEfficiencyName }
func (GlobalEfficiencyMetric) Columns() []string { return []string{"global_efficiency"} }

func (m GlobalEfficiencyMetric) Compute(ctx context.Context, w mat.Matrix) (Values, error) {
	if err := ctx.Err(); err != nil {
		return Failed(m), err
	}
	e, err := GlobalEfficiency(w)
	if err != nil {
		return Failed(m), err
	}
	return Values{Scalars: map[string]float64{"global_efficiency": e}}, nil
}

// CharPathLengthMetric reports char_path_length.
type CharPathLengthMetric struct {
	IncludeInfinite bool
}

func (CharPathLengthMetric) Name() string      { return CharPathLengthName }
func (CharPathLengthMetric) Columns() []string { return []string{"char_path_length"} }

func (m CharPathLengthMetric) Compute(ctx context.Context, w mat.Matrix) (Values, error) {
	if err := ctx.Err(); err != nil {
		return Failed(m), err
	}
	l, err := CharPathLength(w, m.IncludeInfinite)
	if err != nil {
		return Failed(m), err
	}
	return Values{Scalars: map[string]float64{"char_path_length": l}}, nil
}
