package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadCSV loads a headed CSV file. A column whose cells all parse as numbers
// (or are empty) becomes numeric, any other column is text.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// Read parses a headed CSV stream.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	t := New()
	if len(records) == 0 {
		return t, nil
	}
	header := records[0]
	body := records[1:]

	for c, name := range header {
		cells := make([]string, len(body))
		numeric := true
		for i, rec := range body {
			if c < len(rec) {
				cells[i] = rec[c]
			}
			if numeric && !isNumeric(cells[i]) {
				numeric = false
			}
		}
		if numeric {
			vals := make([]float64, len(cells))
			for i, s := range cells {
				vals[i] = parseFloat(s)
			}
			err = t.AddFloat(name, vals)
		} else {
			err = t.AddString(name, cells)
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Write encodes t as CSV with a header row.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.order); err != nil {
		return err
	}
	record := make([]string, len(t.order))
	for i := 0; i < t.rows; i++ {
		for c, name := range t.order {
			record[c] = t.cols[name].cell(i)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes t to path, creating or truncating the file.
func (t *Table) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
