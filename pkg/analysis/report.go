package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/gilchrisn/connectome-metrics/pkg/plots"
	"github.com/gilchrisn/connectome-metrics/pkg/table"
)

// WorkbookFile collects every summary table, one sheet each.
const WorkbookFile = "summaries.xlsx"

// Options configures an Analyzer.
type Options struct {
	// Dir holds the per-metric CSVs and receives the master tables.
	Dir        string
	Methods    [2]string
	QCFraction float64
	Figures    bool
	DPI        int
	// Preview receives console tables of every output; nil disables them.
	Preview    io.Writer
	PreviewMax int
}

// DefaultOptions analyzes dir with the original settings.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:        dir,
		Methods:    [2]string{"ACT", "TREKKER"},
		QCFraction: 0.90,
		Figures:    true,
		DPI:        plots.DefaultDPI,
		PreviewMax: 5,
	}
}

// Sheet is one named output table.
type Sheet struct {
	Name  string
	File  string
	Table *table.Table
}

// Result holds what one profile produced.
type Result struct {
	Profile string
	Master  *table.Table
	Sheets  []Sheet
	Files   []string
}

// Analyzer runs analysis profiles over a metrics directory.
type Analyzer struct {
	Options Options
	Logger  zerolog.Logger
}

func (a *Analyzer) summaryDir() string { return filepath.Join(a.Options.Dir, "summaries") }
func (a *Analyzer) figureDir() string  { return filepath.Join(a.Options.Dir, "figures") }

// Run executes each profile and writes the combined workbook.
func (a *Analyzer) Run(ctx context.Context, profiles ...Profile) ([]*Result, error) {
	for _, dir := range []string{a.summaryDir(), a.figureDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	var results []*Result
	var sheets []Sheet
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := a.RunProfile(ctx, p)
		if err != nil {
			return results, fmt.Errorf("profile %s: %w", p.Name, err)
		}
		results = append(results, res)
		sheets = append(sheets, res.Sheets...)
	}

	if len(sheets) > 0 {
		path := filepath.Join(a.summaryDir(), WorkbookFile)
		if err := WriteWorkbook(path, sheets); err != nil {
			return results, err
		}
		a.Logger.Info().Str("path", path).Int("sheets", len(sheets)).Msg("Saved workbook")
	}
	return results, nil
}

// RunProfile builds the master table of p and writes its derived outputs.
func (a *Analyzer) RunProfile(ctx context.Context, p Profile) (*Result, error) {
	logger := a.Logger.With().Str("profile", p.Name).Logger()
	opts := a.Options

	master, err := BuildMaster(opts.Dir, p, opts.QCFraction)
	if err != nil {
		return nil, err
	}
	res := &Result{Profile: p.Name, Master: master}

	masterPath := filepath.Join(opts.Dir, p.Master)
	if err := master.WriteCSV(masterPath); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, masterPath)
	a.preview("Merged table", master)
	logger.Info().Str("path", masterPath).Int("rows", master.Len()).Msg("Saved master table")

	if p.Parquet {
		pq := masterPath[:len(masterPath)-len(filepath.Ext(masterPath))] + ".parquet"
		if err := master.WriteParquet(pq); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, pq)
	}

	if opts.Figures {
		res.Files = append(res.Files, a.figures(ctx, master, p, logger)...)
	}

	summaries, err := GroupSummaries(master, p.Summaries)
	if err != nil {
		return nil, err
	}
	res.Sheets = append(res.Sheets, Sheet{
		Name: p.SheetPrefix + "_summaries", File: "group_summaries" + p.FileSuffix + ".csv", Table: summaries,
	})

	if len(p.Tests) > 0 {
		groupTests, err := GroupTests(master, p.Tests, opts.Methods[:], logger)
		if err != nil {
			return nil, err
		}
		paired, err := PairedTests(master, p.Tests, opts.Methods, logger)
		if err != nil {
			return nil, err
		}
		res.Sheets = append(res.Sheets,
			Sheet{Name: p.SheetPrefix + "_group_tests", File: "patients_vs_controls_tests" + p.FileSuffix + ".csv", Table: groupTests},
			Sheet{Name: p.SheetPrefix + "_paired_tests", File: "act_vs_trekker_paired_tests" + p.FileSuffix + ".csv", Table: paired},
		)
	}

	for _, s := range res.Sheets {
		path := filepath.Join(a.summaryDir(), s.File)
		if err := s.Table.WriteCSV(path); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, path)
		a.preview(s.File, s.Table)
		logger.Info().Str("path", path).Int("rows", s.Table.Len()).Msg("Saved summary")
	}
	return res, nil
}

// figures draws the profile's plots. A plot without data is skipped with a
// log line; other failures are logged and do not stop the analysis.
func (a *Analyzer) figures(ctx context.Context, master *table.Table, p Profile, logger zerolog.Logger) []string {
	var files []string
	draw := func(kind, col string, render func(path string) error) {
		if ctx.Err() != nil {
			return
		}
		path := filepath.Join(a.figureDir(), fmt.Sprintf("%s_%s.png", kind, col))
		err := render(path)
		switch {
		case errors.Is(err, plots.ErrNoData):
			logger.Info().Str("metric", col).Msgf("Skipping %s: %v", kind, err)
		case err != nil:
			logger.Warn().Err(err).Str("metric", col).Msgf("Failed to draw %s", kind)
		default:
			files = append(files, path)
			logger.Info().Str("path", path).Msg("Saved figure")
		}
	}

	for _, col := range p.Boxplots {
		draw("boxplot", col, func(path string) error {
			return plots.Boxplot(master, col, Title(col), path, a.Options.DPI)
		})
	}
	for _, col := range p.Scatters {
		draw("scatter", col, func(path string) error {
			return plots.Scatter(master, col, Title(col), path, a.Options.Methods, a.Options.DPI)
		})
	}
	return files
}

// WriteWorkbook writes each sheet's table into one xlsx file. Missing
// numeric cells are left blank.
func WriteWorkbook(path string, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for _, s := range sheets {
		if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", s.Name, err)
		}
		cols := s.Table.Columns()
		for c, name := range cols {
			cell, err := excelize.CoordinatesToCellName(c+1, 1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(s.Name, cell, name); err != nil {
				return err
			}
		}
		for c, name := range cols {
			var values []float64
			if !s.Table.IsText(name) {
				values, _ = s.Table.Float(name)
			}
			for r := 0; r < s.Table.Len(); r++ {
				cell, err := excelize.CoordinatesToCellName(c+1, r+2)
				if err != nil {
					return err
				}
				var v interface{} = s.Table.Cell(name, r)
				if values != nil {
					if math.IsNaN(values[r]) || math.IsInf(values[r], 0) {
						continue
					}
					v = values[r]
				}
				if err := f.SetCellValue(s.Name, cell, v); err != nil {
					return err
				}
			}
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// preview prints the first rows of t as a console table.
func (a *Analyzer) preview(title string, t *table.Table) {
	if a.Options.Preview == nil {
		return
	}
	limit := a.Options.PreviewMax
	if limit <= 0 || limit > t.Len() {
		limit = t.Len()
	}
	Preview(a.Options.Preview, title, t, limit)
}

// Preview renders the first limit rows of t under a coloured heading.
func Preview(w io.Writer, title string, t *table.Table, limit int) {
	color.New(color.FgYellow, color.Bold).Fprintf(w, "\n%s\n", title)

	tw := tablewriter.NewWriter(w)
	cols := t.Columns()
	tw.SetHeader(cols)
	tw.SetAutoFormatHeaders(false)
	for r := 0; r < limit && r < t.Len(); r++ {
		row := make([]string, len(cols))
		for c, name := range cols {
			row[c] = previewCell(t, name, r)
		}
		tw.Append(row)
	}
	tw.Render()
}

func previewCell(t *table.Table, col string, r int) string {
	if t.IsText(col) {
		return t.Cell(col, r)
	}
	v, _ := t.Float(col)
	if math.IsNaN(v[r]) {
		return "NaN"
	}
	return strconv.FormatFloat(v[r], 'g', 6, 64)
}
