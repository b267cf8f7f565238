package metrics

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/modularity"
)

// ModularityMetric reports modularity_Q, n_communities and the algorithm
// that produced the partition.
type ModularityMetric struct {
	Options modularity.Options
	Logger  zerolog.Logger
}

func (ModularityMetric) Name() string { return ModularityName }
func (ModularityMetric) Columns() []string {
	return []string{"modularity_Q", "n_communities", "algorithm"}
}

func (m ModularityMetric) Compute(ctx context.Context, w mat.Matrix) (Values, error) {
	res, err := modularity.Detect(ctx, w, m.Options, m.Logger)
	if err != nil {
		return m.failed(), err
	}
	return Values{
		Scalars: map[string]float64{
			"modularity_Q":  res.Q,
			"n_communities": float64(res.Communities),
		},
		Labels:  map[string]string{"algorithm": string(res.Algorithm)},
		Nodes:   membershipVector(res.Membership),
		Details: map[string]float64{"levels": float64(res.Levels)},
	}, nil
}

func (m ModularityMetric) failed() Values {
	return Values{
		Scalars: map[string]float64{
			"modularity_Q":  math.NaN(),
			"n_communities": math.NaN(),
		},
		Labels: map[string]string{"algorithm": ""},
	}
}

func membershipVector(membership []int) []float64 {
	if membership == nil {
		return nil
	}
	out := make([]float64, len(membership))
	for i, c := range membership {
		out[i] = float64(c)
	}
	return out
}
