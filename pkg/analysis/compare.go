package analysis

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/connectome-metrics/pkg/dataset"
	"github.com/gilchrisn/connectome-metrics/pkg/stats"
	"github.com/gilchrisn/connectome-metrics/pkg/table"
)

// AllGroups labels the paired comparison pooled over groups.
const AllGroups = "ALL"

// runTest returns NaN for both values when the test cannot be computed.
func runTest(logger zerolog.Logger, name string, test func() (stats.TestResult, error)) (float64, float64) {
	r, err := test()
	if err != nil {
		logger.Debug().Err(err).Str("test", name).Msg("test not computed")
		return math.NaN(), math.NaN()
	}
	return r.Statistic, r.P
}

// GroupTests compares patients against controls within each method with a
// Mann–Whitney U test and Welch's t-test.
func GroupTests(t *table.Table, cols, methods []string, logger zerolog.Logger) (*table.Table, error) {
	var (
		metric, method      []string
		nPatient, nControl  []float64
		mwU, mwP, tStat, tP []float64
	)

	groups, err := t.String("group")
	if err != nil {
		return nil, err
	}
	rowMethods, err := t.String("method")
	if err != nil {
		return nil, err
	}

	for _, col := range cols {
		if !t.Has(col) {
			continue
		}
		values, err := t.Float(col)
		if err != nil {
			return nil, err
		}
		for _, m := range methods {
			var a, b []float64
			for i, v := range values {
				if rowMethods[i] != m || math.IsNaN(v) {
					continue
				}
				switch groups[i] {
				case dataset.Patient:
					a = append(a, v)
				case dataset.Control:
					b = append(b, v)
				}
			}

			u, up := math.NaN(), math.NaN()
			tv, tp := math.NaN(), math.NaN()
			if len(a) > 1 && len(b) > 1 {
				log := logger.With().Str("metric", col).Str("method", m).Logger()
				u, up = runTest(log, "mannwhitneyu", func() (stats.TestResult, error) { return stats.MannWhitneyU(a, b) })
				tv, tp = runTest(log, "welch", func() (stats.TestResult, error) { return stats.WelchTTest(a, b) })
			}

			metric = append(metric, col)
			method = append(method, m)
			nPatient = append(nPatient, float64(len(a)))
			nControl = append(nControl, float64(len(b)))
			mwU = append(mwU, u)
			mwP = append(mwP, up)
			tStat = append(tStat, tv)
			tP = append(tP, tp)
		}
	}

	return assemble(
		textCol("metric", metric),
		textCol("method", method),
		numCol("n_patient", nPatient),
		numCol("n_control", nControl),
		numCol("mwU", mwU),
		numCol("mwP", mwP),
		numCol("t", tStat),
		numCol("tp", tP),
	)
}

// Pairs returns the per-subject values of col under two methods for the
// subjects that have both, restricted to group unless it is AllGroups.
// Duplicate rows of a subject and method are averaged.
func Pairs(t *table.Table, col, group string, methods [2]string) ([]float64, []float64, error) {
	sub := t
	if group != AllGroups {
		groups, err := t.String("group")
		if err != nil {
			return nil, nil, err
		}
		sub = t.Filter(func(i int) bool { return groups[i] == group })
	}

	piv, err := sub.Pivot([]string{"subject"}, "method", col)
	if err != nil {
		return nil, nil, err
	}
	if !piv.Has(methods[0]) || !piv.Has(methods[1]) {
		return nil, nil, nil
	}
	piv = piv.DropNaN(methods[0], methods[1])
	x, err := piv.Float(methods[0])
	if err != nil {
		return nil, nil, err
	}
	y, err := piv.Float(methods[1])
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// PairedTests compares the two methods within subjects, pooled and per
// group, with the Wilcoxon signed-rank test and the paired t-test.
func PairedTests(t *table.Table, cols []string, methods [2]string, logger zerolog.Logger) (*table.Table, error) {
	var (
		metric, group     []string
		nPairs            []float64
		wW, wP, tStat, tP []float64
	)

	for _, col := range cols {
		if !t.Has(col) {
			continue
		}
		for _, g := range []string{AllGroups, dataset.Patient, dataset.Control} {
			x, y, err := Pairs(t, col, g, methods)
			if err != nil {
				return nil, err
			}

			w, wp := math.NaN(), math.NaN()
			tv, tp := math.NaN(), math.NaN()
			if len(x) > 1 {
				log := logger.With().Str("metric", col).Str("group", g).Logger()
				w, wp = runTest(log, "wilcoxon", func() (stats.TestResult, error) { return stats.WilcoxonSignedRank(x, y) })
				tv, tp = runTest(log, "ttest_rel", func() (stats.TestResult, error) { return stats.PairedTTest(x, y) })
			}

			metric = append(metric, col)
			group = append(group, g)
			nPairs = append(nPairs, float64(len(x)))
			wW = append(wW, w)
			wP = append(wP, wp)
			tStat = append(tStat, tv)
			tP = append(tP, tp)
		}
	}

	return assemble(
		textCol("metric", metric),
		textCol("group", group),
		numCol("n_pairs", nPairs),
		numCol("wilcoxonW", wW),
		numCol("wilcoxonP", wP),
		numCol("t", tStat),
		numCol("tp", tP),
	)
}
