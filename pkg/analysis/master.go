package analysis

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gilchrisn/connectome-metrics/pkg/pipeline"
	"github.com/gilchrisn/connectome-metrics/pkg/stats"
	"github.com/gilchrisn/connectome-metrics/pkg/table"
)

var (
	// ErrMissingInput is returned when a per-metric CSV does not exist.
	ErrMissingInput = errors.New("analysis: missing input file")
	// ErrMissingColumn is returned when a strict input lacks a column.
	ErrMissingColumn = errors.New("analysis: missing column")
	// ErrUnknownProfile is returned for an unrecognised profile name.
	ErrUnknownProfile = errors.New("analysis: unknown profile")
)

// QCColumn flags rows whose giant component is not much smaller than usual.
const QCColumn = "qc_gcc_ok"

// LoadInput reads the CSV of in from dir and keeps its listed columns.
func LoadInput(dir string, in Input) (*table.Table, error) {
	path := filepath.Join(dir, pipeline.FileName(in.Metric))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	t, err := table.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	if in.Strict {
		for _, c := range in.Columns {
			if !t.Has(c) {
				return nil, fmt.Errorf("%w: %s in %s", ErrMissingColumn, c, path)
			}
		}
	}
	for _, k := range keyColumns {
		if !t.Has(k) {
			return nil, fmt.Errorf("%w: %s in %s", ErrMissingColumn, k, path)
		}
	}
	return t.Select(in.Columns...), nil
}

// BuildMaster outer-merges the inputs of p on subject, method and group,
// turns infinities into NaN and, for profiles with QC, adds QCColumn.
func BuildMaster(dir string, p Profile, qcFraction float64) (*table.Table, error) {
	var master *table.Table
	for _, in := range p.Inputs {
		t, err := LoadInput(dir, in)
		if err != nil {
			return nil, err
		}
		if master == nil {
			master = t
			continue
		}
		master = table.OuterMerge(master, t, keyColumns, p.Suffixes)
	}
	if master == nil {
		return table.New(), nil
	}

	master.ReplaceInf()
	if p.QC {
		if err := addQC(master, qcFraction); err != nil {
			return nil, err
		}
	}
	return master, nil
}

// addQC marks rows with n_nodes ≥ fraction × median(n_nodes). Without an
// n_nodes column every row passes.
func addQC(t *table.Table, fraction float64) error {
	flags := make([]string, t.Len())
	if !t.Has("n_nodes") {
		for i := range flags {
			flags[i] = "True"
		}
		return t.AddString(QCColumn, flags)
	}

	n, err := t.Float("n_nodes")
	if err != nil {
		return err
	}
	cut := fraction * stats.Median(stats.DropNaN(n))
	for i, v := range n {
		flags[i] = "False"
		if !math.IsNaN(v) && v >= cut {
			flags[i] = "True"
		}
	}
	return t.AddString(QCColumn, flags)
}
