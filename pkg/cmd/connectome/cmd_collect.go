package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/connectome-metrics/pkg/dataset"
)

func newCollectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Gather raw subject folders into per-subject connectome CSVs",
		Long: `collect walks <raw-dir>/INsIDER_*/<METHOD>/connectome_<METHOD>.csv, copies each
matrix to <input-dir>/<SUBJECT>_<METHOD>.csv and writes the subject metadata
and the merged long and wide edge tables next to them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.cfg.InputDir()
			rep, err := dataset.Collect(a.cfg.RawDir(), out, a.cfg.CollectOptions(), a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Collected %d subjects into %s\n", len(rep.Subjects), out)
			for _, m := range a.cfg.Methods() {
				fmt.Fprintf(a.out, "  %s: %d matrices\n", m, rep.Found[m])
			}
			for _, f := range rep.Written {
				fmt.Fprintf(a.out, "  %s\n", f)
			}
			return nil
		},
	}
	cmd.Flags().String("raw-dir", ".", "root holding INsIDER_* subject folders")
	return cmd
}
