package metrics

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/modularity"
)

func undirected(n int, edges map[[2]int]float64) *mat.Dense {
	w := mat.NewDense(n, n, nil)
	for e, v := range edges {
		w.Set(e[0], e[1], v)
		w.Set(e[1], e[0], v)
	}
	return w
}

func ring4() *mat.Dense {
	return undirected(4, map[[2]int]float64{{0, 1}: 1, {1, 2}: 1, {2, 3}: 1, {3, 0}: 1})
}

func k4() *mat.Dense {
	return undirected(4, map[[2]int]float64{
		{0, 1}: 1, {0, 2}: 1, {0, 3}: 1, {1, 2}: 1, {1, 3}: 1, {2, 3}: 1,
	})
}

// islands is an edge 0-1 plus an isolated node 2.
func islands() *mat.Dense {
	return undirected(3, map[[2]int]float64{{0, 1}: 0.5})
}

func TestDistances(t *testing.T) {
	d := Distances(undirected(3, map[[2]int]float64{{0, 1}: 0.5, {1, 2}: 0.25, {0, 2}: 0.1}))
	// 0-1 costs 2, 1-2 costs 4, the direct 0-2 link costs 10
	assert.Equal(t, 2.0, d.At(0, 1))
	assert.Equal(t, 6.0, d.At(0, 2))
	assert.Equal(t, 6.0, d.At(2, 0))
	assert.Zero(t, d.At(1, 1))

	assert.True(t, math.IsInf(Distances(islands()).At(0, 2), 1))
}

func TestGlobalEfficiency(t *testing.T) {
	e, err := GlobalEfficiency(ring4())
	require.NoError(t, err)
	assert.InDelta(t, 5.0/6.0, e, 1e-12)

	e, err = GlobalEfficiency(k4())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e, 1e-12)

	// only the pair 0-1 (length 2) is reachable: 2·½ / 6
	e, err = GlobalEfficiency(islands())
	require.NoError(t, err)
	assert.InDelta(t, 1.0/6.0, e, 1e-12)

	_, err = GlobalEfficiency(mat.NewDense(1, 1, nil))
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestCharPathLength(t *testing.T) {
	l, err := CharPathLength(ring4(), true)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, l, 1e-12)

	l, err = CharPathLength(islands(), true)
	require.NoError(t, err)
	assert.True(t, math.IsInf(l, 1))

	l, err = CharPathLength(islands(), false)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, l, 1e-12)

	l, err = CharPathLength(mat.NewDense(3, 3, nil), false)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(l))
}

func TestClusteringCoefficients(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0, 0}, ClusteringCoefficients(ring4()))

	for _, c := range ClusteringCoefficients(k4()) {
		assert.InDelta(t, 1.0, c, 1e-12)
	}

	// a triangle's coefficient is the geometric mean of its three weights
	tri := undirected(3, map[[2]int]float64{{0, 1}: 1, {1, 2}: 0.125, {0, 2}: 1})
	for _, c := range ClusteringCoefficients(tri) {
		assert.InDelta(t, 0.5, c, 1e-12)
	}
}

func TestStrength(t *testing.T) {
	w := undirected(3, map[[2]int]float64{{0, 1}: 1, {1, 2}: 3})
	assert.Equal(t, []float64{1, 4, 3}, Strength(w))

	vals, err := StrengthMetric{}.Compute(context.Background(), w)
	require.NoError(t, err)
	assert.InDelta(t, 8.0/3.0, vals.Get("mean_strength"), 1e-12)
	assert.InDelta(t, 3.0, vals.Get("median_strength"), 1e-12)
	assert.InDelta(t, math.Sqrt(14.0/9.0), vals.Get("std_strength"), 1e-12)
	assert.Len(t, vals.Nodes, 3)
}

func TestRegistry(t *testing.T) {
	opts := Options{IncludeInfinite: true, Modularity: modularity.DefaultOptions(), Logger: zerolog.Nop()}
	reg := DefaultRegistry(opts)
	assert.Equal(t, []string{
		GlobalEfficiencyName, CharPathLengthName, ClusteringName, StrengthName, ModularityName,
	}, reg.Names())

	_, err := reg.Get("betweenness")
	assert.ErrorIs(t, err, ErrUnknownMetric)

	ctx := context.Background()
	tests := []struct {
		metric string
		w      *mat.Dense
		col    string
		want   float64
	}{
		{GlobalEfficiencyName, ring4(), "global_efficiency", 5.0 / 6.0},
		{CharPathLengthName, ring4(), "char_path_length", 4.0 / 3.0},
		{ClusteringName, k4(), "mean_clustering", 1},
		{ClusteringName, k4(), "std_clustering", 0},
		{ModularityName, k4(), "n_communities", 1},
	}
	for _, tt := range tests {
		t.Run(tt.metric+"/"+tt.col, func(t *testing.T) {
			m, err := reg.Get(tt.metric)
			require.NoError(t, err)
			vals, err := m.Compute(ctx, tt.w)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, vals.Get(tt.col), 1e-12)
		})
	}
}

func TestComputeTooSmall(t *testing.T) {
	ctx := context.Background()
	single := mat.NewDense(1, 1, nil)
	for _, m := range []Metric{GlobalEfficiencyMetric{}, CharPathLengthMetric{}, ClusteringMetric{}} {
		vals, err := m.Compute(ctx, single)
		assert.ErrorIs(t, err, ErrTooSmall, m.Name())
		for _, c := range m.Columns() {
			assert.True(t, math.IsNaN(vals.Get(c)), "%s/%s", m.Name(), c)
		}
	}
}

func TestStrengthSingleNode(t *testing.T) {
	vals, err := StrengthMetric{}.Compute(context.Background(), mat.NewDense(1, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, vals.Nodes)
	for _, c := range (StrengthMetric{}).Columns() {
		assert.Zero(t, vals.Get(c), c)
	}
}

func TestModularityMetricLevels(t *testing.T) {
	m := ModularityMetric{Options: modularity.DefaultOptions(), Logger: zerolog.Nop()}
	vals, err := m.Compute(context.Background(), ring4())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, vals.Details["levels"], 1.0)
	assert.NotContains(t, m.Columns(), "levels")
}

func TestModularityMetricNoEdges(t *testing.T) {
	m := ModularityMetric{Options: modularity.DefaultOptions(), Logger: zerolog.Nop()}
	vals, err := m.Compute(context.Background(), mat.NewDense(4, 4, nil))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(vals.Get("modularity_Q")))
	assert.Zero(t, vals.Get("n_communities"))
	assert.Equal(t, "LOUVAIN", vals.Labels["algorithm"])
}
