package metrics

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
	"github.com/gilchrisn/connectome-metrics/pkg/stats"
)

// ClusteringCoefficients returns the weighted clustering coefficient of every
// node: the geometric mean of triangle weights around i, cyc3_i = (W^⅓)³_ii,
// divided by k_i(k_i − 1) for binary degree k_i. Nodes without triangles
// score 0.
func ClusteringCoefficients(w mat.Matrix) []float64 {
	n := connectome.Size(w)
	if n == 0 {
		return nil
	}

	ws := mat.NewDense(n, n, nil)
	ws.Apply(func(_, _ int, v float64) float64 { return math.Cbrt(v) }, w)

	var sq, cube mat.Dense
	sq.Mul(ws, ws)
	cube.Mul(&sq, ws)

	c := make([]float64, n)
	for i := 0; i < n; i++ {
		k := 0
		for j := 0; j < n; j++ {
			if w.At(i, j) != 0 {
				k++
			}
		}
		cyc3 := cube.At(i, i)
		if cyc3 == 0 || k < 2 {
			continue
		}
		c[i] = cyc3 / float64(k*(k-1))
	}
	return c
}

// ClusteringMetric reports the mean and population standard deviation of the
// per-node clustering coefficients.
type ClusteringMetric struct{}

func (ClusteringMetric) Name() string { return ClusteringName }
func (ClusteringMetric) Columns() []string {
	return []string{"mean_clustering", "std_clustering"}
}

func (m ClusteringMetric) Compute(ctx context.Context, w mat.Matrix) (Values, error) {
	if err := ctx.Err(); err != nil {
		return Failed(m), err
	}
	if connectome.Size(w) < 2 {
		return Failed(m), ErrTooSmall
	}
	c := ClusteringCoefficients(w)
	valid := stats.DropNaN(c)
	mean := math.NaN()
	if len(valid) > 0 {
		mean = stat.Mean(valid, nil)
	}
	return Values{
		Scalars: map[string]float64{
			"mean_clustering": mean,
			"std_clustering":  stats.PopStd(valid),
		},
		Nodes: c,
	}, nil
}
