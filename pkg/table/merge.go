package table

import (
	"math"
	"sort"
	"strings"
)

// keySep joins key cells; it cannot occur in CSV-decoded text.
const keySep = "\x00"

func (t *Table) rowKey(keys []string, i int) string {
	parts := make([]string, len(keys))
	for k, name := range keys {
		parts[k] = t.Cell(name, i)
	}
	return strings.Join(parts, keySep)
}

// OuterMerge joins a and b on keys, keeping rows from either side. Non-key
// columns present in both get suffixes[0] and suffixes[1]. Rows are ordered
// by key, and duplicate keys produce every pairing.
func OuterMerge(a, b *Table, keys []string, suffixes [2]string) *Table {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	aRows := make(map[string][]int)
	bRows := make(map[string][]int)
	var keyOrder []string
	for i := 0; i < a.rows; i++ {
		k := a.rowKey(keys, i)
		if _, seen := aRows[k]; !seen {
			keyOrder = append(keyOrder, k)
		}
		aRows[k] = append(aRows[k], i)
	}
	for i := 0; i < b.rows; i++ {
		k := b.rowKey(keys, i)
		if _, seenA := aRows[k]; !seenA {
			if _, seenB := bRows[k]; !seenB {
				keyOrder = append(keyOrder, k)
			}
		}
		bRows[k] = append(bRows[k], i)
	}
	sort.Strings(keyOrder)

	var ai, bi []int
	for _, k := range keyOrder {
		la, lb := aRows[k], bRows[k]
		switch {
		case len(la) == 0:
			for _, j := range lb {
				ai, bi = append(ai, -1), append(bi, j)
			}
		case len(lb) == 0:
			for _, i := range la {
				ai, bi = append(ai, i), append(bi, -1)
			}
		default:
			for _, i := range la {
				for _, j := range lb {
					ai, bi = append(ai, i), append(bi, j)
				}
			}
		}
	}

	left := a.take(ai)
	right := b.take(bi)
	out := New()
	out.rows = len(ai)

	for _, name := range a.order {
		col := left.cols[name]
		if isKey[name] {
			col = mergeKey(col, right.cols[name])
		} else if b.Has(name) {
			col.Name = name + suffixes[0]
		}
		out.cols[col.Name] = col
		out.order = append(out.order, col.Name)
	}
	for _, name := range b.order {
		if isKey[name] && a.Has(name) {
			continue
		}
		col := right.cols[name]
		if a.Has(name) {
			col.Name = name + suffixes[1]
		}
		out.cols[col.Name] = col
		out.order = append(out.order, col.Name)
	}
	return out
}

// mergeKey fills the key cells missing on the left from the right.
func mergeKey(l, r *Column) *Column {
	if r == nil {
		return l
	}
	if l.Text {
		for i, v := range l.Strings {
			if v == "" {
				if r.Text {
					l.Strings[i] = r.Strings[i]
				} else {
					l.Strings[i] = FormatFloat(r.Floats[i])
				}
			}
		}
		return l
	}
	for i, v := range l.Floats {
		if math.IsNaN(v) {
			if r.Text {
				l.Floats[i] = parseFloat(r.Strings[i])
			} else {
				l.Floats[i] = r.Floats[i]
			}
		}
	}
	return l
}
