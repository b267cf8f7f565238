package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// mannWhitneyExactMax is the largest smaller-sample size for which the
	// exact U distribution is used.
	mannWhitneyExactMax = 8
	// wilcoxonExactMax is the largest number of non-zero differences for
	// which the exact signed-rank distribution is used.
	wilcoxonExactMax = 50
)

// TestResult is a test statistic and its two-sided p-value.
type TestResult struct {
	Statistic float64 `json:"statistic"`
	P         float64 `json:"p"`
}

func nanResult() TestResult {
	return TestResult{Statistic: math.NaN(), P: math.NaN()}
}

func clampP(p float64) float64 {
	return math.Min(1, math.Max(0, p))
}

// MannWhitneyU runs the two-sided Mann–Whitney U test. The statistic is U of
// the first sample.
func MannWhitneyU(a, b []float64) (TestResult, error) {
	a, b = DropNaN(a), DropNaN(b)
	n1, n2 := len(a), len(b)
	if n1 < 2 || n2 < 2 {
		return nanResult(), fmt.Errorf("%w: n1=%d n2=%d", ErrInsufficientData, n1, n2)
	}

	pooled := append(append(make([]float64, 0, n1+n2), a...), b...)
	ranks, ties := rank(pooled)
	r1 := 0.0
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}
	u1 := r1 - float64(n1*(n1+1))/2
	u2 := float64(n1*n2) - u1
	uMax := math.Max(u1, u2)

	if ties == 0 && (n1 <= mannWhitneyExactMax || n2 <= mannWhitneyExactMax) {
		return TestResult{Statistic: u1, P: clampP(2 * mannWhitneySF(uMax, n1, n2))}, nil
	}

	n := float64(n1 + n2)
	mu := float64(n1*n2) / 2
	sigma := math.Sqrt(float64(n1*n2) / 12 * ((n + 1) - ties/(n*(n-1))))
	if sigma == 0 {
		return TestResult{Statistic: u1, P: math.NaN()}, ErrDegenerate
	}
	z := (uMax - mu - 0.5) / sigma
	return TestResult{Statistic: u1, P: clampP(2 * distuv.UnitNormal.Survival(z))}, nil
}

// mannWhitneySF returns P(U ≥ u) under the null for sample sizes n1 and n2,
// counting rank arrangements.
func mannWhitneySF(u float64, n1, n2 int) float64 {
	maxU := n1 * n2
	// counts[i][j][k]: arrangements of i and j items with U = k
	prev := make([][]float64, n2+1)
	for j := range prev {
		prev[j] = make([]float64, maxU+1)
		prev[j][0] = 1
	}
	for i := 1; i <= n1; i++ {
		cur := make([][]float64, n2+1)
		cur[0] = make([]float64, maxU+1)
		cur[0][0] = 1
		for j := 1; j <= n2; j++ {
			cur[j] = make([]float64, maxU+1)
			for k := 0; k <= i*j; k++ {
				v := cur[j-1][k]
				if k >= j {
					v += prev[j][k-j]
				}
				cur[j][k] = v
			}
		}
		prev = cur
	}

	dist := prev[n2]
	total, tail := 0.0, 0.0
	start := int(math.Ceil(u))
	for k, c := range dist {
		total += c
		if k >= start {
			tail += c
		}
	}
	return tail / total
}

// WelchTTest runs the two-sided t-test for independent samples without
// assuming equal variances.
func WelchTTest(a, b []float64) (TestResult, error) {
	a, b = DropNaN(a), DropNaN(b)
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return nanResult(), fmt.Errorf("%w: n1=%d n2=%d", ErrInsufficientData, len(a), len(b))
	}

	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	se1, se2 := v1/n1, v2/n2
	se := math.Sqrt(se1 + se2)
	if se == 0 {
		return nanResult(), ErrDegenerate
	}

	t := (m1 - m2) / se
	df := (se1 + se2) * (se1 + se2) / (se1*se1/(n1-1) + se2*se2/(n2-1))
	return TestResult{Statistic: t, P: studentTwoSided(t, df)}, nil
}

// PairedTTest runs the two-sided t-test on the differences x − y.
func PairedTTest(x, y []float64) (TestResult, error) {
	d, err := differences(x, y)
	if err != nil {
		return nanResult(), err
	}
	n := float64(len(d))
	if len(d) < 2 {
		return nanResult(), fmt.Errorf("%w: %d pairs", ErrInsufficientData, len(d))
	}

	mean, variance := stat.MeanVariance(d, nil)
	se := math.Sqrt(variance / n)
	if se == 0 {
		return nanResult(), ErrDegenerate
	}
	t := mean / se
	return TestResult{Statistic: t, P: studentTwoSided(t, n-1)}, nil
}

func studentTwoSided(t, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return clampP(2 * dist.Survival(math.Abs(t)))
}

// differences pairs x and y, dropping pairs where either side is NaN.
func differences(x, y []float64) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(y))
	}
	d := make([]float64, 0, len(x))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		d = append(d, x[i]-y[i])
	}
	return d, nil
}

// WilcoxonSignedRank runs the two-sided Wilcoxon signed-rank test on x − y.
// Zero differences are dropped. The statistic is min(W+, W−).
func WilcoxonSignedRank(x, y []float64) (TestResult, error) {
	all, err := differences(x, y)
	if err != nil {
		return nanResult(), err
	}
	if len(all) < 2 {
		return nanResult(), fmt.Errorf("%w: %d pairs", ErrInsufficientData, len(all))
	}

	d := make([]float64, 0, len(all))
	abs := make([]float64, 0, len(all))
	for _, v := range all {
		if v != 0 {
			d = append(d, v)
			abs = append(abs, math.Abs(v))
		}
	}
	n := len(d)
	zeros := len(all) - n
	if n == 0 {
		return nanResult(), ErrDegenerate
	}

	ranks, ties := rank(abs)
	wPlus, wMinus := 0.0, 0.0
	for i, v := range d {
		if v > 0 {
			wPlus += ranks[i]
		} else {
			wMinus += ranks[i]
		}
	}
	w := math.Min(wPlus, wMinus)

	if n <= wilcoxonExactMax && ties == 0 && zeros == 0 {
		return TestResult{Statistic: w, P: clampP(2 * signedRankCDF(w, n))}, nil
	}

	fn := float64(n)
	mean := fn * (fn + 1) / 4
	variance := fn*(fn+1)*(2*fn+1)/24 - ties/48
	if variance <= 0 {
		return TestResult{Statistic: w, P: math.NaN()}, ErrDegenerate
	}
	z := (w - mean) / math.Sqrt(variance)
	return TestResult{Statistic: w, P: clampP(2 * distuv.UnitNormal.CDF(-math.Abs(z)))}, nil
}

// signedRankCDF returns P(W+ ≤ w) for n untied non-zero differences.
func signedRankCDF(w float64, n int) float64 {
	maxW := n * (n + 1) / 2
	counts := make([]float64, maxW+1)
	counts[0] = 1
	for k := 1; k <= n; k++ {
		for s := maxW; s >= k; s-- {
			counts[s] += counts[s-k]
		}
	}
	total := math.Pow(2, float64(n))
	cum := 0.0
	limit := int(math.Floor(w))
	for s := 0; s <= limit && s <= maxW; s++ {
		cum += counts[s]
	}
	return cum / total
}
