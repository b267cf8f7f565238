package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/connectome-metrics/pkg/dataset"
	"github.com/gilchrisn/connectome-metrics/pkg/metrics"
	"github.com/gilchrisn/connectome-metrics/pkg/pipeline"
)

func newComputeCmd(a *app) *cobra.Command {
	var noProgress bool
	cmd := &cobra.Command{
		Use:   "compute <metric>... | all",
		Short: "Compute graph metrics for every connectome",
		Long: `compute runs each named metric over every matching connectome and writes one
CSV per metric into the output directory. Metrics: global_efficiency,
char_path_length, clustering, strength, modularity, or all.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCompute(cmd, args, noProgress)
		},
	}
	f := cmd.Flags()
	f.String("pattern", dataset.DefaultPattern, "file name pattern with subject and method groups")
	f.Float64("gamma", 1.0, "modularity resolution")
	f.String("algorithm", "louvain", "community detection: louvain or spectral")
	f.Int64("seed", 42, "Louvain node order seed")
	f.BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

// resolveMetrics expands "all" and rejects unknown names.
func resolveMetrics(reg *metrics.Registry, args []string) ([]metrics.Metric, error) {
	var names []string
	for _, arg := range args {
		if strings.EqualFold(arg, "all") {
			names = append(names, reg.Names()...)
			continue
		}
		names = append(names, arg)
	}

	seen := make(map[string]bool)
	var out []metrics.Metric
	for _, name := range names {
		m, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		if !seen[m.Name()] {
			seen[m.Name()] = true
			out = append(out, m)
		}
	}
	return out, nil
}

func (a *app) runCompute(cmd *cobra.Command, args []string, noProgress bool) error {
	ctx := cmd.Context()
	reg := a.cfg.Registry(a.logger)
	selected, err := resolveMetrics(reg, args)
	if err != nil {
		return err
	}

	re, err := dataset.Compile(a.cfg.FilePattern())
	if err != nil {
		return err
	}
	entries, err := dataset.Discover(a.cfg.InputDir(), re)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.logger.Warn().Str("dir", a.cfg.InputDir()).Msg("No connectome files matched")
	}

	outDir := a.cfg.OutputDir()
	if err := ensureDir(outDir); err != nil {
		return err
	}

	manifest := pipeline.NewManifest(a.cfg.InputDir())
	for _, m := range selected {
		runner := &pipeline.Runner{
			Logger:  a.logger,
			Options: a.cfg.Preprocess(m.Name()),
			NodeDir: a.cfg.NodeDir(),
		}
		if !noProgress {
			runner.Progress = progressWriter()
		}

		report, err := runner.Run(ctx, entries, m)
		if err != nil {
			return err
		}

		path := filepath.Join(outDir, pipeline.FileName(m.Name()))
		if err := pipeline.WriteRows(path, report.Rows, m); err != nil {
			return err
		}
		manifest.Add(report, len(entries), path, runner.Options)
		fmt.Fprintf(a.out, "Saved %s (%d rows, %d failed, %d skipped)\n",
			path, len(report.Rows), report.Failed, report.Skipped)
	}

	return manifest.Write(filepath.Join(outDir, pipeline.ManifestFile))
}
