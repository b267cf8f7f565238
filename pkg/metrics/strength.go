package metrics

import (
	"context"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
	"github.com/gilchrisn/connectome-metrics/pkg/stats"
)

// Strength returns the row sums of w.
func Strength(w mat.Matrix) []float64 {
	n := connectome.Size(w)
	s := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s[i] += w.At(i, j)
		}
	}
	return s
}

// StrengthMetric summarizes node strength. The per-node vector is returned in
// Values.Nodes. A single region has strength 0.
type StrengthMetric struct{}

func (StrengthMetric) Name() string { return StrengthName }
func (StrengthMetric) Columns() []string {
	return []string{"mean_strength", "median_strength", "std_strength"}
}

func (m StrengthMetric) Compute(ctx context.Context, w mat.Matrix) (Values, error) {
	if err := ctx.Err(); err != nil {
		return Failed(m), err
	}
	s := Strength(w)
	return Values{
		Scalars: map[string]float64{
			"mean_strength":   stat.Mean(s, nil),
			"median_strength": stats.Median(s),
			"std_strength":    stats.PopStd(s),
		},
		Nodes: s,
	}, nil
}
