package analysis

import (
	"sort"

	"github.com/gilchrisn/connectome-metrics/pkg/stats"
	"github.com/gilchrisn/connectome-metrics/pkg/table"
)

// cellGroup is one (group, method) combination.
type cellGroup struct {
	group  string
	method string
}

// groupCells returns the distinct (group, method) pairs of t, groups ordered
// with the empty group last, methods alphabetically.
func groupCells(groups, methods []string) []cellGroup {
	seen := make(map[cellGroup]bool)
	var out []cellGroup
	for i := range groups {
		k := cellGroup{groups[i], methods[i]}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		ga, gb := out[a].group, out[b].group
		if ga != gb {
			if ga == "" || gb == "" {
				return gb == ""
			}
			return ga < gb
		}
		return out[a].method < out[b].method
	})
	return out
}

// GroupSummaries describes every listed column by (group, method). Columns
// missing from t are skipped.
func GroupSummaries(t *table.Table, cols []string) (*table.Table, error) {
	var (
		metric, group, method []string
		count, mean, std, med []float64
	)

	groups, err := t.String("group")
	if err != nil {
		return nil, err
	}
	methods, err := t.String("method")
	if err != nil {
		return nil, err
	}
	cells := groupCells(groups, methods)

	for _, col := range cols {
		if !t.Has(col) {
			continue
		}
		values, err := t.Float(col)
		if err != nil {
			return nil, err
		}
		for _, c := range cells {
			var sample []float64
			for i := range values {
				if groups[i] == c.group && methods[i] == c.method {
					sample = append(sample, values[i])
				}
			}
			s := stats.Describe(sample)
			metric = append(metric, col)
			group = append(group, c.group)
			method = append(method, c.method)
			count = append(count, float64(s.Count))
			mean = append(mean, s.Mean)
			std = append(std, s.Std)
			med = append(med, s.Median)
		}
	}

	return assemble(
		textCol("metric", metric),
		textCol("group", group),
		textCol("method", method),
		numCol("count", count),
		numCol("mean", mean),
		numCol("std", std),
		numCol("median", med),
	)
}

type column struct {
	name string
	text []string
	num  []float64
	str  bool
}

func textCol(name string, v []string) column { return column{name: name, text: v, str: true} }
func numCol(name string, v []float64) column { return column{name: name, num: v} }

// assemble builds a table from columns in order.
func assemble(cs ...column) (*table.Table, error) {
	out := table.New()
	for _, c := range cs {
		var err error
		if c.str {
			err = out.AddString(c.name, c.text)
		} else {
			err = out.AddFloat(c.name, c.num)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
