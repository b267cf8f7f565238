package plots

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/connectome-metrics/pkg/table"
)

func master(t *testing.T) *table.Table {
	t.Helper()
	tb := table.New()
	require.NoError(t, tb.AddString("subject", []string{"S_C1", "S_C1", "S_P1", "S_P1", "S_P2", "S_P2"}))
	require.NoError(t, tb.AddString("method", []string{"ACT", "TREKKER", "ACT", "TREKKER", "ACT", "TREKKER"}))
	require.NoError(t, tb.AddString("group", []string{"control", "control", "patient", "patient", "patient", "patient"}))
	require.NoError(t, tb.AddFloat("score", []float64{0.5, 0.6, 0.4, 0.45, 0.42, math.NaN()}))
	require.NoError(t, tb.AddFloat("empty", []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}))
	return tb
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestBoxplot(t *testing.T) {
	dir := t.TempDir()
	tb := master(t)

	path := filepath.Join(dir, "boxplot_score.png")
	require.NoError(t, Boxplot(tb, "score", "Score", path, 72))
	assertPNG(t, path)

	err := Boxplot(tb, "empty", "Empty", filepath.Join(dir, "boxplot_empty.png"), 72)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.NoFileExists(t, filepath.Join(dir, "boxplot_empty.png"))

	assert.ErrorIs(t, Boxplot(tb, "missing", "Missing", filepath.Join(dir, "x.png"), 72), ErrNoData)
}

func TestScatter(t *testing.T) {
	dir := t.TempDir()
	tb := master(t)
	methods := [2]string{"ACT", "TREKKER"}

	path := filepath.Join(dir, "scatter_score.png")
	require.NoError(t, Scatter(tb, "score", "Score", path, methods, 72))
	assertPNG(t, path)

	assert.ErrorIs(t, Scatter(tb, "empty", "Empty", filepath.Join(dir, "e.png"), methods, 72), ErrNoData)
	assert.ErrorIs(t, Scatter(tb, "score", "Score", filepath.Join(dir, "m.png"), [2]string{"ACT", "OTHER"}, 72), ErrNoData)
}

func TestLimits(t *testing.T) {
	lo, hi := Limits([]float64{1, 2}, []float64{3, math.NaN()})
	assert.InDelta(t, 0.9, lo, 1e-12)
	assert.InDelta(t, 3.1, hi, 1e-12)

	lo, hi = Limits([]float64{math.Inf(1)}, []float64{0})
	assert.True(t, math.IsInf(hi, 1))
	assert.Equal(t, -1.0, lo)
}
