package analysis

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gilchrisn/connectome-metrics/pkg/stats"
	"github.com/gilchrisn/connectome-metrics/pkg/table"
)

const effCSV = `subject,method,group,global_efficiency,n_nodes,density,file
INsIDER_C01,ACT,control,0.5,10,0.3,INsIDER_C01_ACT.csv
INsIDER_C02,ACT,control,0.7,10,0.3,INsIDER_C02_ACT.csv
INsIDER_P01,ACT,patient,0.4,10,0.3,INsIDER_P01_ACT.csv
INsIDER_P02,ACT,patient,0.3,10,0.3,INsIDER_P02_ACT.csv
INsIDER_P03,ACT,patient,0.35,10,0.3,INsIDER_P03_ACT.csv
INsIDER_C01,TREKKER,control,0.55,10,0.3,INsIDER_C01_TREKKER.csv
INsIDER_C02,TREKKER,control,0.72,10,0.3,INsIDER_C02_TREKKER.csv
INsIDER_P01,TREKKER,patient,0.41,10,0.3,INsIDER_P01_TREKKER.csv
INsIDER_P02,TREKKER,patient,0.36,10,0.3,INsIDER_P02_TREKKER.csv
INsIDER_P03,TREKKER,patient,0.37,10,0.3,INsIDER_P03_TREKKER.csv
`

const cplCSV = `subject,method,group,char_path_length,n_nodes,density,file
INsIDER_C01,ACT,control,2,10,0.3,INsIDER_C01_ACT.csv
INsIDER_C02,ACT,control,1.5,10,0.3,INsIDER_C02_ACT.csv
INsIDER_P01,ACT,patient,inf,10,0.3,INsIDER_P01_ACT.csv
INsIDER_P02,ACT,patient,3,10,0.3,INsIDER_P02_ACT.csv
INsIDER_P03,ACT,patient,2.8,10,0.3,INsIDER_P03_ACT.csv
INsIDER_C01,TREKKER,control,1.9,10,0.3,INsIDER_C01_TREKKER.csv
INsIDER_C02,TREKKER,control,1.4,10,0.3,INsIDER_C02_TREKKER.csv
INsIDER_P01,TREKKER,patient,2.5,10,0.3,INsIDER_P01_TREKKER.csv
INsIDER_P02,TREKKER,patient,2.7,10,0.3,INsIDER_P02_TREKKER.csv
INsIDER_P03,TREKKER,patient,2.6,10,0.3,INsIDER_P03_TREKKER.csv
`

const modCSV = `subject,method,group,modularity_Q,n_communities,n_nodes,density,file,algorithm,used_density,available_density
INsIDER_C01,ACT,control,0.4,3,10,0.08,INsIDER_C01_ACT.csv,LOUVAIN,0.08,0.3
INsIDER_C02,ACT,control,0.42,3,10,0.08,INsIDER_C02_ACT.csv,LOUVAIN,0.08,0.3
INsIDER_P01,ACT,patient,0.5,4,8,0.08,INsIDER_P01_ACT.csv,LOUVAIN,0.08,0.3
INsIDER_P02,ACT,patient,0.52,4,10,0.08,INsIDER_P02_ACT.csv,LOUVAIN,0.08,0.3
INsIDER_P03,ACT,patient,0.51,4,10,0.08,INsIDER_P03_ACT.csv,LOUVAIN,0.08,0.3
INsIDER_C01,TREKKER,control,0.41,3,10,0.08,INsIDER_C01_TREKKER.csv,LOUVAIN,0.08,0.3
INsIDER_C02,TREKKER,control,0.43,3,10,0.08,INsIDER_C02_TREKKER.csv,LOUVAIN,0.08,0.3
INsIDER_P01,TREKKER,patient,0.49,4,10,0.08,INsIDER_P01_TREKKER.csv,LOUVAIN,0.08,0.3
INsIDER_P02,TREKKER,patient,,0,10,0,INsIDER_P02_TREKKER.csv,LOUVAIN,0,0
INsIDER_P03,TREKKER,patient,0.5,4,10,0.08,INsIDER_P03_TREKKER.csv,LOUVAIN,0.08,0.3
`

const cluCSV = `subject,method,group,mean_clustering,std_clustering,n_nodes,density,file
INsIDER_C01,ACT,control,0.2,0.05,10,0.3,INsIDER_C01_ACT.csv
INsIDER_P01,ACT,patient,0.25,0.04,10,0.3,INsIDER_P01_ACT.csv
`

const strCSV = `subject,method,group,mean_strength,median_strength,std_strength,n_nodes,density,file,per_node_file
INsIDER_C01,ACT,control,3.5,3,1.2,10,0.3,INsIDER_C01_ACT.csv,node_metrics/INsIDER_C01_ACT_strength.csv
INsIDER_P02,ACT,patient,4.5,4,1.1,10,0.3,INsIDER_P02_ACT.csv,node_metrics/INsIDER_P02_ACT_strength.csv
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func networkDir(t *testing.T) string {
	return writeFiles(t, map[string]string{
		"global_efficiency_bct.csv":          effCSV,
		"characteristic_path_length_bct.csv": cplCSV,
		"modularity_robust.csv":              modCSV,
	})
}

func floatColumn(t *testing.T, tb *table.Table, col string) []float64 {
	t.Helper()
	v, err := tb.Float(col)
	require.NoError(t, err)
	return v
}

func TestProfiles(t *testing.T) {
	ps, err := Profiles("all", "network")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, NetworkName, ps[0].Name)
	assert.Equal(t, ClusteringStrengthName, ps[1].Name)

	_, err = Profiles("bogus")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestBuildMasterNetwork(t *testing.T) {
	dir := networkDir(t)

	master, err := BuildMaster(dir, Network(), 0.9)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"subject", "method", "group",
		"global_efficiency", "char_path_length",
		"modularity_Q", "n_nodes", "density", "used_density", "available_density",
		QCColumn,
	}, master.Columns())
	assert.Equal(t, 10, master.Len())

	subjects, _ := master.String("subject")
	methods, _ := master.String("method")
	cpl := floatColumn(t, master, "char_path_length")
	qc, _ := master.String(QCColumn)
	for i := range subjects {
		if subjects[i] == "INsIDER_P01" && methods[i] == "ACT" {
			assert.True(t, math.IsNaN(cpl[i]), "inf becomes NaN")
			assert.Equal(t, "False", qc[i], "8 < 0.9 × 10")
		} else {
			assert.Equal(t, "True", qc[i])
		}
	}
}

func TestBuildMasterMissingInput(t *testing.T) {
	dir := writeFiles(t, map[string]string{"global_efficiency_bct.csv": effCSV})
	_, err := BuildMaster(dir, Network(), 0.9)
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = BuildMaster(t.TempDir(), ClusteringStrength(), 0.9)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestBuildMasterMissingStrictColumn(t *testing.T) {
	dir := networkDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modularity_robust.csv"),
		[]byte("subject,method,group,modularity_Q\nINsIDER_C01,ACT,control,0.4\n"), 0o644))

	_, err := BuildMaster(dir, Network(), 0.9)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestBuildMasterClusteringStrength(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"clustering_coefficient_bct.csv": cluCSV,
		"node_strength.csv":              strCSV,
	})

	master, err := BuildMaster(dir, ClusteringStrength(), 0.9)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"subject", "method", "group",
		"mean_clustering", "std_clustering", "n_nodes_clu", "density_clu", "file_clu",
		"mean_strength", "median_strength", "std_strength", "n_nodes_str", "density_str", "file_str",
	}, master.Columns())
	assert.Equal(t, 3, master.Len())
	assert.False(t, master.Has(QCColumn))
	assert.False(t, master.Has("per_node_file"))
}

func TestGroupSummaries(t *testing.T) {
	master, err := BuildMaster(networkDir(t), Network(), 0.9)
	require.NoError(t, err)

	s, err := GroupSummaries(master, []string{"global_efficiency", "missing", "modularity_Q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "group", "method", "count", "mean", "std", "median"}, s.Columns())
	require.Equal(t, 8, s.Len())

	groups, _ := s.String("group")
	methods, _ := s.String("method")
	assert.Equal(t, []string{"control", "control", "patient", "patient"}, groups[:4])
	assert.Equal(t, []string{"ACT", "TREKKER", "ACT", "TREKKER"}, methods[:4])

	count := floatColumn(t, s, "count")
	mean := floatColumn(t, s, "mean")
	std := floatColumn(t, s, "std")
	median := floatColumn(t, s, "median")

	// global_efficiency, control, ACT: 0.5 and 0.7
	assert.Equal(t, 2.0, count[0])
	assert.InDelta(t, 0.6, mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(0.02), std[0], 1e-12)
	assert.InDelta(t, 0.6, median[0], 1e-12)

	// modularity_Q, patient, TREKKER: one value missing
	assert.Equal(t, 2.0, count[7])
	assert.InDelta(t, 0.495, mean[7], 1e-12)
}

func TestGroupSummariesEmptyGroupLast(t *testing.T) {
	tb := table.New()
	require.NoError(t, tb.AddString("group", []string{"", "patient", "control"}))
	require.NoError(t, tb.AddString("method", []string{"ACT", "ACT", "ACT"}))
	require.NoError(t, tb.AddFloat("x", []float64{1, 2, 3}))

	s, err := GroupSummaries(tb, []string{"x"})
	require.NoError(t, err)
	groups, _ := s.String("group")
	assert.Equal(t, []string{"control", "patient", ""}, groups)

	std := floatColumn(t, s, "std")
	assert.True(t, math.IsNaN(std[0]), "single value has no sample std")
}

func TestGroupTests(t *testing.T) {
	master, err := BuildMaster(networkDir(t), Network(), 0.9)
	require.NoError(t, err)

	gt, err := GroupTests(master, []string{"global_efficiency", "char_path_length"}, []string{"ACT", "TREKKER"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "method", "n_patient", "n_control", "mwU", "mwP", "t", "tp"}, gt.Columns())
	require.Equal(t, 4, gt.Len())

	nPatient := floatColumn(t, gt, "n_patient")
	nControl := floatColumn(t, gt, "n_control")
	assert.Equal(t, []float64{3, 3, 2, 3}, nPatient, "the infinite path length is dropped")
	assert.Equal(t, []float64{2, 2, 2, 2}, nControl)

	want, err := stats.MannWhitneyU([]float64{0.4, 0.3, 0.35}, []float64{0.5, 0.7})
	require.NoError(t, err)
	assert.InDelta(t, want.Statistic, floatColumn(t, gt, "mwU")[0], 1e-12)
	assert.InDelta(t, want.P, floatColumn(t, gt, "mwP")[0], 1e-12)

	welch, err := stats.WelchTTest([]float64{0.4, 0.3, 0.35}, []float64{0.5, 0.7})
	require.NoError(t, err)
	assert.InDelta(t, welch.Statistic, floatColumn(t, gt, "t")[0], 1e-12)
}

func TestGroupTestsTooFewSamples(t *testing.T) {
	tb := table.New()
	require.NoError(t, tb.AddString("group", []string{"patient", "control", "control"}))
	require.NoError(t, tb.AddString("method", []string{"ACT", "ACT", "ACT"}))
	require.NoError(t, tb.AddFloat("x", []float64{1, 2, 3}))

	gt, err := GroupTests(tb, []string{"x"}, []string{"ACT"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1.0, floatColumn(t, gt, "n_patient")[0])
	assert.True(t, math.IsNaN(floatColumn(t, gt, "mwU")[0]))
	assert.True(t, math.IsNaN(floatColumn(t, gt, "tp")[0]))
}

func TestPairedTests(t *testing.T) {
	master, err := BuildMaster(networkDir(t), Network(), 0.9)
	require.NoError(t, err)

	pt, err := PairedTests(master, []string{"global_efficiency", "modularity_Q"}, [2]string{"ACT", "TREKKER"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "group", "n_pairs", "wilcoxonW", "wilcoxonP", "t", "tp"}, pt.Columns())
	require.Equal(t, 6, pt.Len())

	groups, _ := pt.String("group")
	assert.Equal(t, []string{AllGroups, "patient", "control", AllGroups, "patient", "control"}, groups)
	assert.Equal(t, []float64{5, 3, 2, 4, 2, 2}, floatColumn(t, pt, "n_pairs"))

	act := []float64{0.5, 0.7, 0.4, 0.3, 0.35}
	trk := []float64{0.55, 0.72, 0.41, 0.36, 0.37}
	want, err := stats.PairedTTest(act, trk)
	require.NoError(t, err)
	assert.InDelta(t, want.Statistic, floatColumn(t, pt, "t")[0], 1e-12)
	assert.InDelta(t, want.P, floatColumn(t, pt, "tp")[0], 1e-12)

	w, err := stats.WilcoxonSignedRank(act, trk)
	require.NoError(t, err)
	assert.InDelta(t, w.Statistic, floatColumn(t, pt, "wilcoxonW")[0], 1e-12)
}

func TestPairs(t *testing.T) {
	tb := table.New()
	require.NoError(t, tb.AddString("subject", []string{"A", "A", "A", "B"}))
	require.NoError(t, tb.AddString("group", []string{"patient", "patient", "patient", "control"}))
	require.NoError(t, tb.AddString("method", []string{"ACT", "ACT", "TREKKER", "ACT"}))
	require.NoError(t, tb.AddFloat("x", []float64{1, 3, 5, 7}))

	x, y, err := Pairs(tb, "x", AllGroups, [2]string{"ACT", "TREKKER"})
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, x, "duplicates are averaged")
	assert.Equal(t, []float64{5}, y)

	x, _, err = Pairs(tb, "x", "control", [2]string{"ACT", "TREKKER"})
	require.NoError(t, err)
	assert.Empty(t, x)
}

func TestAnalyzerRun(t *testing.T) {
	dir := networkDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clustering_coefficient_bct.csv"), []byte(cluCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_strength.csv"), []byte(strCSV), 0o644))

	var preview strings.Builder
	opts := DefaultOptions(dir)
	opts.Figures = false
	opts.Preview = &preview
	a := &Analyzer{Options: opts, Logger: zerolog.Nop()}

	results, err := a.Run(context.Background(), Network(), ClusteringStrength())
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, name := range []string{
		"metrics_master.csv",
		"metrics_master.parquet",
		"metrics_clustering_strength_master.csv",
		"summaries/group_summaries.csv",
		"summaries/patients_vs_controls_tests.csv",
		"summaries/act_vs_trekker_paired_tests.csv",
		"summaries/group_summaries_clustering_strength.csv",
		"summaries/patients_vs_controls_tests_clustering_strength.csv",
		"summaries/act_vs_trekker_paired_tests_clustering_strength.csv",
		"summaries/" + WorkbookFile,
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	cells, err := table.ReadParquet(filepath.Join(dir, "metrics_master.parquet"))
	require.NoError(t, err)
	assert.Len(t, cells, 10*11)

	f, err := excelize.OpenFile(filepath.Join(dir, "summaries", WorkbookFile))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{
		"net_summaries", "net_group_tests", "net_paired_tests",
		"cs_summaries", "cs_group_tests", "cs_paired_tests",
	}, f.GetSheetList())

	header, err := f.GetCellValue("net_summaries", "A1")
	require.NoError(t, err)
	assert.Equal(t, "metric", header)
	first, err := f.GetCellValue("net_summaries", "B2")
	require.NoError(t, err)
	assert.Equal(t, "control", first)

	out := preview.String()
	assert.Contains(t, out, "Merged table")
	assert.Contains(t, out, "group_summaries.csv")
	assert.Contains(t, out, "INsIDER_C01")
}

func TestAnalyzerFigures(t *testing.T) {
	dir := networkDir(t)
	opts := DefaultOptions(dir)
	opts.DPI = 30
	a := &Analyzer{Options: opts, Logger: zerolog.Nop()}

	results, err := a.Run(context.Background(), Network())
	require.NoError(t, err)
	require.Len(t, results, 1)

	for _, metric := range []string{"global_efficiency", "char_path_length", "modularity_Q"} {
		assert.FileExists(t, filepath.Join(dir, "figures", "boxplot_"+metric+".png"))
		assert.FileExists(t, filepath.Join(dir, "figures", "scatter_"+metric+".png"))
	}
}

func TestAnalyzerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &Analyzer{Options: DefaultOptions(networkDir(t)), Logger: zerolog.Nop()}
	_, err := a.Run(ctx, Network())
	assert.ErrorIs(t, err, context.Canceled)
}
