package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gilchrisn/connectome-metrics/pkg/metrics"
	"github.com/gilchrisn/connectome-metrics/pkg/table"
)

// ManifestFile is the run manifest written next to the metric CSVs.
const ManifestFile = "run_manifest.json"

// fileNames maps each metric to its output CSV.
var fileNames = map[string]string{
	metrics.GlobalEfficiencyName: "global_efficiency_bct.csv",
	metrics.CharPathLengthName:   "characteristic_path_length_bct.csv",
	metrics.ClusteringName:       "clustering_coefficient_bct.csv",
	metrics.StrengthName:         "node_strength.csv",
	metrics.ModularityName:       "modularity_robust.csv",
}

// FileName returns the CSV name a metric's rows are written to.
func FileName(metric string) string {
	if name, ok := fileNames[metric]; ok {
		return name
	}
	return metric + ".csv"
}

// trailing lists metric columns written after the common ones.
var trailing = map[string][]string{
	metrics.ModularityName: {"algorithm", "used_density", "available_density"},
	metrics.StrengthName:   {"per_node_file"},
}

// Columns lists the CSV header of a metric's output.
func Columns(m metrics.Metric) []string {
	tail := trailing[m.Name()]
	cols := []string{"subject", "method", "group"}
	for _, c := range m.Columns() {
		if !slices.Contains(tail, c) {
			cols = append(cols, c)
		}
	}
	cols = append(cols, "n_nodes", "density", "file")
	return append(cols, tail...)
}

// Table lays rows out under Columns(m).
func Table(rows []Row, m metrics.Metric) (*table.Table, error) {
	t := table.New()
	for _, col := range Columns(m) {
		var err error
		switch col {
		case "subject", "method", "group", "file", "per_node_file":
			err = t.AddString(col, textColumn(rows, col))
		case "n_nodes":
			err = t.AddFloat(col, floatColumn(rows, func(r Row) float64 { return float64(r.Nodes) }))
		case "density":
			err = t.AddFloat(col, floatColumn(rows, func(r Row) float64 { return r.Density }))
		case "used_density":
			err = t.AddFloat(col, floatColumn(rows, func(r Row) float64 { return r.UsedDensity }))
		case "available_density":
			err = t.AddFloat(col, floatColumn(rows, func(r Row) float64 { return r.AvailableDensity }))
		default:
			if isLabel(rows, col) {
				err = t.AddString(col, textColumn(rows, col))
			} else {
				c := col
				err = t.AddFloat(col, floatColumn(rows, func(r Row) float64 { return r.Values.Get(c) }))
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func isLabel(rows []Row, col string) bool {
	for _, r := range rows {
		if _, ok := r.Values.Labels[col]; ok {
			return true
		}
	}
	return false
}

func textColumn(rows []Row, col string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		switch col {
		case "subject":
			out[i] = r.Entry.Subject
		case "method":
			out[i] = r.Entry.Method
		case "group":
			out[i] = r.Entry.Group
		case "file":
			out[i] = r.Entry.File
		case "per_node_file":
			out[i] = r.PerNodeFile
		default:
			out[i] = r.Values.Labels[col]
		}
	}
	return out
}

func floatColumn(rows []Row, get func(Row) float64) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = get(r)
	}
	return out
}

// WriteRows writes rows as CSV under Columns(m).
func WriteRows(path string, rows []Row, m metrics.Metric) error {
	t, err := Table(rows, m)
	if err != nil {
		return err
	}
	return t.WriteCSV(path)
}

// RunSummary is one metric's entry in the manifest.
type RunSummary struct {
	Metric     string    `json:"metric"`
	Output     string    `json:"output"`
	Files      int       `json:"files"`
	Rows       int       `json:"rows"`
	Skipped    int       `json:"skipped"`
	Failures   int       `json:"failures"`
	Options    Options   `json:"options"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Manifest records one compute invocation.
type Manifest struct {
	RunID      string       `json:"run_id"`
	InputDir   string       `json:"input_dir"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Runs       []RunSummary `json:"runs"`
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest(inputDir string) *Manifest {
	return &Manifest{
		RunID:     uuid.New().String(),
		InputDir:  inputDir,
		StartedAt: time.Now(),
	}
}

// Add records a finished metric run.
func (m *Manifest) Add(report *Report, files int, output string, opts Options) {
	m.Runs = append(m.Runs, RunSummary{
		Metric:     report.Metric,
		Output:     output,
		Files:      files,
		Rows:       len(report.Rows),
		Skipped:    report.Skipped,
		Failures:   report.Failed,
		Options:    opts,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	})
}

// Write stamps the finish time and writes the manifest as indented JSON.
func (m *Manifest) Write(path string) error {
	m.FinishedAt = time.Now()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
