// Package stats provides the descriptive summaries and two-sample tests used
// to compare groups and tractography methods.
//
// Every test drops NaN observations first. A sample too small to test, or a
// degenerate variance, yields NaN statistics together with
// ErrInsufficientData or ErrDegenerate.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientData is returned when a sample has fewer than two values.
	ErrInsufficientData = errors.New("stats: insufficient data")
	// ErrDegenerate is returned when a test statistic is undefined.
	ErrDegenerate = errors.New("stats: degenerate variance")
	// ErrLengthMismatch is returned for paired samples of different lengths.
	ErrLengthMismatch = errors.New("stats: paired samples differ in length")
)

// Summary describes one sample.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
}

// DropNaN returns the non-NaN values of x in order.
func DropNaN(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Describe returns the count, mean, sample standard deviation and median of
// the non-NaN values of x.
func Describe(x []float64) Summary {
	v := DropNaN(x)
	s := Summary{Count: len(v), Mean: math.NaN(), Std: math.NaN(), Median: math.NaN()}
	if len(v) == 0 {
		return s
	}
	s.Mean = stat.Mean(v, nil)
	s.Median = Median(v)
	if len(v) > 1 {
		s.Std = stat.StdDev(v, nil)
	}
	return s
}

// Median returns the middle value of x, averaging the two middle values of an
// even-length sample. It is NaN for an empty sample.
func Median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// PopStd is the population standard deviation of x.
func PopStd(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	_, std := stat.PopMeanStdDev(x, nil)
	return std
}

// rank assigns average ranks (1-based) to x and returns the tie correction
// term Σ(t³ − t) over tie groups.
func rank(x []float64) ([]float64, float64) {
	n := len(x)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	ranks := make([]float64, n)
	ties := 0.0
	for i := 0; i < n; {
		j := i
		for j+1 < n && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		if t := float64(j - i + 1); t > 1 {
			ties += t*t*t - t
		}
		i = j + 1
	}
	return ranks, ties
}
