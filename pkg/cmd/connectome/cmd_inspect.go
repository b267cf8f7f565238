package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
	"github.com/gilchrisn/connectome-metrics/pkg/dataset"
)

// maxListedProblems bounds the problem table.
const maxListedProblems = 10

func newInspectCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Check that every connectome file is a square matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInspect(strict)
		},
	}
	cmd.Flags().String("pattern", dataset.DefaultPattern, "file name pattern with subject and method groups")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any file is not square")
	return cmd
}

func (a *app) runInspect(strict bool) error {
	re, err := dataset.Compile(a.cfg.FilePattern())
	if err != nil {
		return err
	}
	entries, err := dataset.Discover(a.cfg.InputDir(), re)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Scanning %d CSV files in %s\n", len(entries), a.cfg.InputDir())

	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	var problems [][]string
	for _, e := range entries {
		rep, err := connectome.Inspect(e.Path)
		if err != nil {
			return err
		}
		switch {
		case rep.Empty:
			bad.Fprintf(a.out, "[EMPTY] %s\n", e.File)
			problems = append(problems, []string{e.File, "empty"})
		case !rep.Square:
			bad.Fprintf(a.out, "[PROBLEM] %s: unique row lengths=%s (lines=%d)\n", e.File, lengths(rep.UniqueLengths), rep.Lines)
			problems = append(problems, []string{e.File, "row_lengths=" + lengths(rep.UniqueLengths)})
		default:
			ok.Fprintf(a.out, "[OK] %s: %dx%d\n", e.File, rep.Lines, rep.UniqueLengths[0])
		}
	}

	fmt.Fprintln(a.out, strings.Repeat("=", 60))
	fmt.Fprintf(a.out, "Total files with problems: %d\n", len(problems))
	if len(problems) > 0 {
		tw := tablewriter.NewWriter(a.out)
		tw.SetHeader([]string{"File", "Problem"})
		limit := len(problems)
		if limit > maxListedProblems {
			limit = maxListedProblems
		}
		tw.AppendBulk(problems[:limit])
		tw.Render()
		if len(problems) > maxListedProblems {
			fmt.Fprintln(a.out, "  ... (more)")
		}
	}

	if strict && len(problems) > 0 {
		return fmt.Errorf("%d of %d files are not square", len(problems), len(entries))
	}
	return nil
}

func lengths(ls []int) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = strconv.Itoa(l)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
