package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/connectome-metrics/pkg/analysis"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		profiles []string
		quiet    bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Merge metric tables and compare groups and methods",
		Long: `analyze merges the per-metric CSVs of the output directory into master tables
and writes group summaries, patient/control tests and ACT/TREKKER paired tests
under summaries/, with figures under figures/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := analysis.Profiles(profiles...)
			if err != nil {
				return err
			}

			methods := a.cfg.Methods()
			if len(methods) < 2 {
				return fmt.Errorf("analysis needs two methods, got %v", methods)
			}
			opts := analysis.DefaultOptions(a.cfg.OutputDir())
			opts.Methods = [2]string{methods[0], methods[1]}
			opts.QCFraction = a.cfg.QCFraction()
			opts.Figures = a.cfg.Figures()
			opts.DPI = a.cfg.DPI()
			if !quiet {
				opts.Preview = a.out
			}

			an := &analysis.Analyzer{Options: opts, Logger: a.logger}
			results, err := an.Run(cmd.Context(), ps...)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(a.out, "\n%s: %d files\n", r.Profile, len(r.Files))
				for _, f := range r.Files {
					fmt.Fprintf(a.out, "  %s\n", f)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&profiles, "profile", []string{"all"}, "analysis profiles: network, clustering_strength or all")
	f.Bool("no-figures", false, "skip the PNG figures")
	f.Int("dpi", 300, "figure resolution")
	f.BoolVar(&quiet, "quiet", false, "do not print table previews")
	return cmd
}
