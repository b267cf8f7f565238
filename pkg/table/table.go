// Package table is a small column-ordered data frame for the per-metric CSV
// files: numeric and text columns, outer merges on key columns and pivots.
//
// Missing numeric cells are NaN. They are written as empty CSV fields and
// read back as NaN.
package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrNoColumn is returned when a named column does not exist.
	ErrNoColumn = errors.New("table: no such column")
	// ErrLength is returned when a column length differs from the table's.
	ErrLength = errors.New("table: column length mismatch")
)

// Column is either numeric or text.
type Column struct {
	Name    string
	Floats  []float64
	Strings []string
	Text    bool
}

func (c *Column) len() int {
	if c.Text {
		return len(c.Strings)
	}
	return len(c.Floats)
}

// cell renders row i as it is written to CSV.
func (c *Column) cell(i int) string {
	if c.Text {
		return c.Strings[i]
	}
	return FormatFloat(c.Floats[i])
}

// Table is an ordered set of equal-length columns.
type Table struct {
	order []string
	cols  map[string]*Column
	rows  int
}

// New returns an empty table.
func New() *Table {
	return &Table{cols: make(map[string]*Column)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.order...)
}

// Has reports whether col exists.
func (t *Table) Has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

// IsText reports whether col holds strings.
func (t *Table) IsText(col string) bool {
	c, ok := t.cols[col]
	return ok && c.Text
}

func (t *Table) add(c *Column) error {
	if len(t.order) > 0 && c.len() != t.rows {
		return fmt.Errorf("%w: %s has %d rows, table has %d", ErrLength, c.Name, c.len(), t.rows)
	}
	if _, exists := t.cols[c.Name]; !exists {
		t.order = append(t.order, c.Name)
	}
	t.cols[c.Name] = c
	t.rows = c.len()
	return nil
}

// AddFloat appends or replaces a numeric column.
func (t *Table) AddFloat(name string, values []float64) error {
	return t.add(&Column{Name: name, Floats: values})
}

// AddString appends or replaces a text column.
func (t *Table) AddString(name string, values []string) error {
	return t.add(&Column{Name: name, Strings: values, Text: true})
}

// Float returns a numeric column. Text cells that parse as numbers are
// converted, other text is NaN.
func (t *Table) Float(col string) ([]float64, error) {
	c, ok := t.cols[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, col)
	}
	if !c.Text {
		return c.Floats, nil
	}
	out := make([]float64, len(c.Strings))
	for i, s := range c.Strings {
		out[i] = parseFloat(s)
	}
	return out, nil
}

// String returns a column rendered as text.
func (t *Table) String(col string) ([]string, error) {
	c, ok := t.cols[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, col)
	}
	out := make([]string, t.rows)
	for i := range out {
		out[i] = c.cell(i)
	}
	return out, nil
}

// Cell returns row i of col as text, or "" when col does not exist.
func (t *Table) Cell(col string, i int) string {
	c, ok := t.cols[col]
	if !ok {
		return ""
	}
	return c.cell(i)
}

// Select returns a table with the listed columns that exist, in that order.
func (t *Table) Select(cols ...string) *Table {
	out := New()
	out.rows = t.rows
	for _, name := range cols {
		if c, ok := t.cols[name]; ok {
			cp := &Column{Name: name, Text: c.Text}
			cp.Floats = append([]float64(nil), c.Floats...)
			cp.Strings = append([]string(nil), c.Strings...)
			out.cols[name] = cp
			out.order = append(out.order, name)
		}
	}
	return out
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	var idx []int
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.take(idx)
}

// take builds a table from the given row indices; -1 yields a missing row.
func (t *Table) take(idx []int) *Table {
	out := New()
	out.rows = len(idx)
	for _, name := range t.order {
		c := t.cols[name]
		nc := &Column{Name: name, Text: c.Text}
		if c.Text {
			nc.Strings = make([]string, len(idx))
			for k, i := range idx {
				if i >= 0 {
					nc.Strings[k] = c.Strings[i]
				}
			}
		} else {
			nc.Floats = make([]float64, len(idx))
			for k, i := range idx {
				if i >= 0 {
					nc.Floats[k] = c.Floats[i]
				} else {
					nc.Floats[k] = math.NaN()
				}
			}
		}
		out.cols[name] = nc
		out.order = append(out.order, name)
	}
	return out
}

// ReplaceInf turns ±Inf in every numeric column into NaN.
func (t *Table) ReplaceInf() {
	for _, c := range t.cols {
		if c.Text {
			continue
		}
		for i, v := range c.Floats {
			if math.IsInf(v, 0) {
				c.Floats[i] = math.NaN()
			}
		}
	}
}

// FormatFloat writes v in its shortest exact form, NaN as "".
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) float64 {
	switch s {
	case "", "nan", "NaN":
		return math.NaN()
	case "inf", "Inf":
		return math.Inf(1)
	case "-inf", "-Inf":
		return math.Inf(-1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func isNumeric(s string) bool {
	switch s {
	case "", "nan", "NaN", "inf", "Inf", "-inf", "-Inf":
		return true
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
