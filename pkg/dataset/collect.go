package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
)

// Output file names written by Collect.
const (
	MetadataFile   = "subjects_metadata.csv"
	MergedLongFile = "connectomes_merged_long.csv"
	MergedWideFile = "connectomes_merged_wide.csv"
)

// CollectOptions configures Collect.
type CollectOptions struct {
	SubjectPrefix   string
	Methods         []string
	UpperOnly       bool
	IncludeDiagonal bool
}

// DefaultCollectOptions flattens the strict upper triangle of ACT and
// TREKKER connectomes of INsIDER subjects.
func DefaultCollectOptions() CollectOptions {
	return CollectOptions{
		SubjectPrefix: "INsIDER",
		Methods:       []string{"ACT", "TREKKER"},
		UpperOnly:     true,
	}
}

// Subject records which methods were found for one subject folder.
type Subject struct {
	Name    string
	Group   string
	Methods map[string]bool
}

// CollectReport summarizes a Collect run.
type CollectReport struct {
	Subjects []Subject
	Found    map[string]int
	Written  []string
}

type collected struct {
	subject string
	method  string
	group   string
	w       *mat.Dense
}

// Collect reads <rawDir>/<prefix…>/<METHOD>/connectome_<METHOD>.csv for every
// subject folder, writes each as <subject>_<METHOD>.csv into outDir and
// builds the metadata table and the merged long and wide edge tables.
func Collect(rawDir, outDir string, opts CollectOptions, logger zerolog.Logger) (*CollectReport, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	items, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", rawDir, err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name() < items[j].Name() })

	report := &CollectReport{Found: make(map[string]int)}
	byMethod := make(map[string][]collected)

	for _, it := range items {
		name := it.Name()
		if !it.IsDir() || !strings.HasPrefix(name, opts.SubjectPrefix) {
			continue
		}
		subj := Subject{Name: name, Group: InferGroup(name), Methods: make(map[string]bool)}

		for _, method := range opts.Methods {
			src := filepath.Join(rawDir, name, method, "connectome_"+method+".csv")
			if _, err := os.Stat(src); err != nil {
				continue
			}
			w, err := connectome.Load(src)
			if err != nil {
				logger.Warn().Err(err).Str("subject", name).Str("method", method).Msg("Skipping unreadable connectome")
				continue
			}
			dst := filepath.Join(outDir, name+"_"+method+".csv")
			if err := connectome.WriteCSV(dst, w); err != nil {
				return nil, err
			}
			subj.Methods[method] = true
			report.Found[method]++
			byMethod[method] = append(byMethod[method], collected{subject: name, method: method, group: subj.Group, w: w})
		}
		report.Subjects = append(report.Subjects, subj)
	}

	var all []collected
	for _, method := range opts.Methods {
		all = append(all, byMethod[method]...)
	}

	metaPath := filepath.Join(outDir, MetadataFile)
	if err := writeMetadata(metaPath, report.Subjects, opts.Methods); err != nil {
		return nil, err
	}
	longPath := filepath.Join(outDir, MergedLongFile)
	if err := writeLong(longPath, all, opts); err != nil {
		return nil, err
	}
	widePath := filepath.Join(outDir, MergedWideFile)
	if err := writeWide(widePath, all, opts); err != nil {
		return nil, err
	}
	report.Written = []string{metaPath, longPath, widePath}

	logger.Info().
		Int("subjects", len(report.Subjects)).
		Interface("found", report.Found).
		Str("output_dir", outDir).
		Msg("Collected connectomes")
	return report, nil
}

func flatten(w *mat.Dense, opts CollectOptions) []connectome.Edge {
	if opts.UpperOnly {
		return connectome.UpperTriangle(w, opts.IncludeDiagonal)
	}
	return connectome.Flatten(w)
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func writeCSV(path string, fill func(cw *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := fill(cw); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeMetadata(path string, subjects []Subject, methods []string) error {
	return writeCSV(path, func(cw *csv.Writer) error {
		header := []string{"subject", "group"}
		for _, m := range methods {
			header = append(header, "has_"+m)
		}
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, s := range subjects {
			rec := []string{s.Name, s.Group}
			for _, m := range methods {
				rec = append(rec, pyBool(s.Methods[m]))
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeLong(path string, all []collected, opts CollectOptions) error {
	return writeCSV(path, func(cw *csv.Writer) error {
		if err := cw.Write([]string{"subject", "method", "edge_row", "edge_col", "weight", "group"}); err != nil {
			return err
		}
		for _, c := range all {
			for _, e := range flatten(c.w, opts) {
				rec := []string{c.subject, c.method, strconv.Itoa(e.Row), strconv.Itoa(e.Col), formatWeight(e.Weight), c.group}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// writeWide writes one row per subject and method with one e_<r>_<c> column
// per edge. Connectomes of different sizes leave the missing edges empty.
func writeWide(path string, all []collected, opts CollectOptions) error {
	var edgeCols []string
	seen := make(map[string]int)
	rows := make([]map[string]float64, len(all))
	for i, c := range all {
		rows[i] = make(map[string]float64)
		for _, e := range flatten(c.w, opts) {
			col := "e_" + strconv.Itoa(e.Row) + "_" + strconv.Itoa(e.Col)
			if _, ok := seen[col]; !ok {
				seen[col] = len(edgeCols)
				edgeCols = append(edgeCols, col)
			}
			rows[i][col] = e.Weight
		}
	}

	return writeCSV(path, func(cw *csv.Writer) error {
		if err := cw.Write(append([]string{"subject", "method", "group"}, edgeCols...)); err != nil {
			return err
		}
		for i, c := range all {
			rec := make([]string, 0, 3+len(edgeCols))
			rec = append(rec, c.subject, c.method, c.group)
			for _, col := range edgeCols {
				if v, ok := rows[i][col]; ok {
					rec = append(rec, formatWeight(v))
				} else {
					rec = append(rec, "")
				}
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
