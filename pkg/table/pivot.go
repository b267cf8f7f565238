package table

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Pivot spreads value across one column per distinct entry of column, one
// row per distinct index combination. Duplicates are averaged and NaN values
// ignored; index rows without any value are dropped.
func (t *Table) Pivot(index []string, column, value string) (*Table, error) {
	for _, c := range append(append([]string(nil), index...), column, value) {
		if !t.Has(c) {
			return nil, fmt.Errorf("%w: %s", ErrNoColumn, c)
		}
	}
	vals, err := t.Float(value)
	if err != nil {
		return nil, err
	}

	type acc struct {
		sum   float64
		count int
	}
	cells := make(map[string]map[string]*acc)
	first := make(map[string]int)
	headers := make(map[string]bool)

	for i := 0; i < t.rows; i++ {
		v := vals[i]
		if math.IsNaN(v) {
			continue
		}
		rk := t.rowKey(index, i)
		ck := t.Cell(column, i)
		if _, ok := cells[rk]; !ok {
			cells[rk] = make(map[string]*acc)
			first[rk] = i
		}
		a, ok := cells[rk][ck]
		if !ok {
			a = &acc{}
			cells[rk][ck] = a
		}
		a.sum += v
		a.count++
		headers[ck] = true
	}

	rowKeys := make([]string, 0, len(cells))
	for k := range cells {
		rowKeys = append(rowKeys, k)
	}
	sort.Strings(rowKeys)
	colKeys := make([]string, 0, len(headers))
	for k := range headers {
		colKeys = append(colKeys, k)
	}
	sort.Strings(colKeys)

	out := New()
	for k, name := range index {
		col := make([]string, len(rowKeys))
		for r, rk := range rowKeys {
			col[r] = strings.Split(rk, keySep)[k]
		}
		if err := out.AddString(name, col); err != nil {
			return nil, err
		}
	}
	for _, ck := range colKeys {
		col := make([]float64, len(rowKeys))
		for r, rk := range rowKeys {
			if a, ok := cells[rk][ck]; ok {
				col[r] = a.sum / float64(a.count)
			} else {
				col[r] = math.NaN()
			}
		}
		if err := out.AddFloat(ck, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DropNaN returns the rows where every listed numeric column is present.
func (t *Table) DropNaN(cols ...string) *Table {
	series := make([][]float64, 0, len(cols))
	for _, c := range cols {
		v, err := t.Float(c)
		if err != nil {
			return t.Filter(func(int) bool { return false })
		}
		series = append(series, v)
	}
	return t.Filter(func(i int) bool {
		for _, s := range series {
			if math.IsNaN(s[i]) {
				return false
			}
		}
		return true
	})
}
