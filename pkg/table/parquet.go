package table

import (
	"fmt"
	"math"
	"os"

	"github.com/parquet-go/parquet-go"
)

// ParquetCell is one record of the long layout written by WriteParquet.
type ParquetCell struct {
	Row    int64    `parquet:"row"`
	Column string   `parquet:"column"`
	Value  *float64 `parquet:"value,optional"`
	Text   *string  `parquet:"text,optional"`
}

// WriteParquet exports t in long form: one record per cell carrying its row
// index, column name and either a numeric or a text value. NaN is null.
func (t *Table) WriteParquet(path string) error {
	rows := make([]ParquetCell, 0, t.rows*len(t.order))
	for i := 0; i < t.rows; i++ {
		for _, name := range t.order {
			c := t.cols[name]
			cell := ParquetCell{Row: int64(i), Column: name}
			if c.Text {
				s := c.Strings[i]
				cell.Text = &s
			} else if v := c.Floats[i]; !math.IsNaN(v) {
				cell.Value = &v
			}
			rows = append(rows, cell)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	writer := parquet.NewGenericWriter[ParquetCell](file)
	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to close parquet writer for %s: %w", path, err)
	}
	return file.Close()
}

// ReadParquet loads the long-form cells written by WriteParquet.
func ReadParquet(path string) ([]ParquetCell, error) {
	rows, err := parquet.ReadFile[ParquetCell](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}
