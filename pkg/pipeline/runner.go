package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
	"github.com/gilchrisn/connectome-metrics/pkg/dataset"
	"github.com/gilchrisn/connectome-metrics/pkg/metrics"
	"github.com/gilchrisn/connectome-metrics/pkg/table"
)

// Row is the result of one metric on one connectome file.
type Row struct {
	Entry            dataset.Entry
	Values           metrics.Values
	Nodes            int
	Density          float64
	UsedDensity      float64
	AvailableDensity float64
	PerNodeFile      string
	Err              error
}

// Report collects the rows of one metric run.
type Report struct {
	Metric     string
	Rows       []Row
	Skipped    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner computes one metric over a list of connectome files.
type Runner struct {
	Logger  zerolog.Logger
	Options Options
	// NodeDir receives per-node vectors of metrics that have them; empty
	// disables them.
	NodeDir string
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
}

// perNodeColumns names the per-node CSV column of metrics that write one.
var perNodeColumns = map[string]string{
	metrics.StrengthName: "strength",
}

func (r *Runner) progressBar(description string, max int) *progressbar.ProgressBar {
	if r.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(r.Progress),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(r.Progress)
		}),
	)
}

// Run loads, prepares and measures every entry. An unreadable file is logged
// and skipped. A metric failure is logged and recorded as NaN. Rows are sorted
// by method, group and subject.
func (r *Runner) Run(ctx context.Context, entries []dataset.Entry, m metrics.Metric) (*Report, error) {
	report := &Report{Metric: m.Name(), StartedAt: time.Now()}
	logger := r.Logger.With().Str("metric", m.Name()).Logger()
	logger.Info().Int("files", len(entries)).Msg("Starting batch")

	if r.NodeDir != "" {
		if _, ok := perNodeColumns[m.Name()]; ok {
			if err := os.MkdirAll(r.NodeDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", r.NodeDir, err)
			}
		}
	}

	bar := r.progressBar(m.Name(), len(entries))
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		raw, err := connectome.Load(e.Path)
		if err != nil {
			logger.Error().Err(err).Str("file", e.File).Msg("Failed to load connectome, skipping")
			report.Skipped++
			if bar != nil {
				_ = bar.Add(1)
			}
			continue
		}

		row, err := r.measure(ctx, e, raw, m, logger)
		if err != nil {
			return nil, err
		}
		if row.Err != nil {
			report.Failed++
		}
		report.Rows = append(report.Rows, row)

		ev := logger.Info().
			Int("index", i+1).
			Int("total", len(entries)).
			Str("subject", e.Subject).
			Str("method", e.Method).
			Str("group", e.Group).
			Int("n", row.Nodes).
			Float64("density", row.Density)
		for _, col := range m.Columns() {
			if label, ok := row.Values.Labels[col]; ok {
				ev = ev.Str(col, label)
			} else {
				ev = ev.Float64(col, row.Values.Get(col))
			}
		}
		details := make([]string, 0, len(row.Values.Details))
		for k := range row.Values.Details {
			details = append(details, k)
		}
		sort.Strings(details)
		for _, k := range details {
			ev = ev.Float64(k, row.Values.Details[k])
		}
		ev.Dur("elapsed", time.Since(start)).Msg("Processed connectome")

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	SortRows(report.Rows)
	report.FinishedAt = time.Now()
	logger.Info().
		Int("rows", len(report.Rows)).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Batch completed")
	return report, nil
}

func (r *Runner) measure(ctx context.Context, e dataset.Entry, raw mat.Matrix, m metrics.Metric, logger zerolog.Logger) (Row, error) {
	row := Row{Entry: e}

	prep, err := Preprocess(raw, r.Options)
	if err != nil {
		logger.Warn().Err(err).Str("file", e.File).Msg("Preprocessing failed, recording NaN")
		row.Values = metrics.Failed(m)
		row.Err = err
		row.Nodes = connectome.Size(raw)
		row.Density = connectome.Density(raw)
		row.UsedDensity, row.AvailableDensity = math.NaN(), math.NaN()
		return row, nil
	}
	row.Nodes = prep.Nodes()
	row.Density = prep.Density
	row.UsedDensity = prep.UsedDensity
	row.AvailableDensity = prep.AvailableDensity

	if prep.Capped(r.Options) {
		logger.Info().
			Str("file", e.File).
			Float64("target", r.Options.TargetDensity).
			Float64("available", prep.AvailableDensity).
			Float64("used", prep.UsedDensity).
			Msg("Target density capped to available")
	}
	if prep.Reduced() {
		logger.Info().
			Str("file", e.File).
			Int("kept", prep.Nodes()).
			Int("total", prep.OriginalNodes).
			Msg("Using giant component")
	}

	vals, err := m.Compute(ctx, prep.W)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return row, ctxErr
		}
		logger.Warn().Err(err).Str("file", e.File).Msg("Metric failed, recording NaN")
		row.Values = metrics.Failed(m)
		row.Err = err
		return row, nil
	}
	row.Values = vals

	if col, ok := perNodeColumns[m.Name()]; ok && r.NodeDir != "" && len(vals.Nodes) > 0 {
		path := filepath.Join(r.NodeDir, fmt.Sprintf("%s_%s_%s.csv", e.Subject, e.Method, m.Name()))
		if err := writeNodeVector(path, col, prep.Kept, vals.Nodes); err != nil {
			return row, err
		}
		row.PerNodeFile = path
	}
	return row, nil
}

func writeNodeVector(path, col string, nodes []int, values []float64) error {
	ids := make([]float64, len(values))
	for i := range values {
		if i < len(nodes) {
			ids[i] = float64(nodes[i])
		} else {
			ids[i] = float64(i)
		}
	}
	t := table.New()
	if err := t.AddFloat("node", ids); err != nil {
		return err
	}
	if err := t.AddFloat(col, values); err != nil {
		return err
	}
	return t.WriteCSV(path)
}

// SortRows orders rows by method, group and subject. Rows without a group
// sort after the known groups of the same method.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Entry, rows[j].Entry
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		if a.Group != b.Group {
			if a.Group == "" || b.Group == "" {
				return b.Group == ""
			}
			return a.Group < b.Group
		}
		return a.Subject < b.Subject
	})
}
