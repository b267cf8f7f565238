// Package analysis aggregates the per-metric CSVs of a compute run into a
// master table, group summaries, group comparisons and method comparisons.
package analysis

import (
	"fmt"
	"strings"

	"github.com/gilchrisn/connectome-metrics/pkg/metrics"
)

// Input is one per-metric CSV feeding a master table.
type Input struct {
	Metric  string
	Columns []string
	// Strict requires every listed column; otherwise missing ones are dropped.
	Strict bool
}

// Profile describes one master table and what is derived from it.
type Profile struct {
	Name     string
	Inputs   []Input
	Suffixes [2]string
	Master   string
	Parquet  bool
	QC       bool

	Summaries []string
	Tests     []string
	Boxplots  []string
	Scatters  []string

	// FileSuffix is appended to the summary and test file names.
	FileSuffix string
	// SheetPrefix names this profile's workbook sheets.
	SheetPrefix string
}

// Profile names.
const (
	NetworkName            = "network"
	ClusteringStrengthName = "clustering_strength"
)

var keyColumns = []string{"subject", "method", "group"}

// Network merges global efficiency, path length and modularity.
func Network() Profile {
	return Profile{
		Name: NetworkName,
		Inputs: []Input{
			{Metric: metrics.GlobalEfficiencyName, Columns: cols("global_efficiency"), Strict: true},
			{Metric: metrics.CharPathLengthName, Columns: cols("char_path_length"), Strict: true},
			{Metric: metrics.ModularityName, Columns: cols(
				"modularity_Q", "n_nodes", "density", "used_density", "available_density",
			), Strict: true},
		},
		Suffixes:    [2]string{"_x", "_y"},
		Master:      "metrics_master.csv",
		Parquet:     true,
		QC:          true,
		Summaries:   []string{"global_efficiency", "char_path_length", "modularity_Q"},
		Tests:       []string{"global_efficiency", "char_path_length", "modularity_Q"},
		Boxplots:    []string{"global_efficiency", "char_path_length", "modularity_Q"},
		Scatters:    []string{"global_efficiency", "char_path_length", "modularity_Q"},
		SheetPrefix: "net",
	}
}

// ClusteringStrength merges the clustering and strength summaries.
func ClusteringStrength() Profile {
	return Profile{
		Name: ClusteringStrengthName,
		Inputs: []Input{
			{Metric: metrics.ClusteringName, Columns: cols(
				"mean_clustering", "std_clustering", "n_nodes", "density", "file",
			)},
			{Metric: metrics.StrengthName, Columns: cols(
				"mean_strength", "median_strength", "std_strength", "n_nodes", "density", "file",
			)},
		},
		Suffixes:    [2]string{"_clu", "_str"},
		Master:      "metrics_clustering_strength_master.csv",
		Summaries:   []string{"mean_clustering", "mean_strength", "median_strength"},
		Tests:       []string{"mean_clustering", "mean_strength", "median_strength"},
		Boxplots:    []string{"mean_clustering", "mean_strength", "median_strength"},
		Scatters:    []string{"mean_clustering", "mean_strength"},
		FileSuffix:  "_clustering_strength",
		SheetPrefix: "cs",
	}
}

// Profiles resolves profile names; "all" selects every profile.
func Profiles(names ...string) ([]Profile, error) {
	var out []Profile
	seen := make(map[string]bool)
	for _, name := range names {
		var ps []Profile
		switch strings.ToLower(strings.TrimSpace(name)) {
		case NetworkName:
			ps = []Profile{Network()}
		case ClusteringStrengthName:
			ps = []Profile{ClusteringStrength()}
		case "all":
			ps = []Profile{Network(), ClusteringStrength()}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
		}
		for _, p := range ps {
			if !seen[p.Name] {
				seen[p.Name] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// titles are the plot and preview labels of each analyzed column.
var titles = map[string]string{
	"global_efficiency": "Global Efficiency",
	"char_path_length":  "Characteristic Path Length",
	"modularity_Q":      "Modularity Q",
	"mean_clustering":   "Mean Clustering Coefficient",
	"std_clustering":    "Clustering Coefficient (Std)",
	"mean_strength":     "Mean Node Strength",
	"median_strength":   "Median Node Strength",
	"std_strength":      "Node Strength (Std)",
}

// Title returns the display label of a column.
func Title(col string) string {
	if t, ok := titles[col]; ok {
		return t
	}
	return col
}

func cols(extra ...string) []string {
	return append(append([]string(nil), keyColumns...), extra...)
}
