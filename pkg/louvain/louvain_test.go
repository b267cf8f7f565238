package louvain

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// TestGraph pairs a fixture with the community count Louvain must find.
type TestGraph struct {
	Name        string
	Graph       *Graph
	ExpectedMin int
	ExpectedMax int
	Description string
}

func mustEdges(t *testing.T, n int, edges [][3]float64) *Graph {
	t.Helper()
	g := NewGraph(n)
	for _, e := range edges {
		if err := g.AddEdge(int(e[0]), int(e[1]), e[2]); err != nil {
			t.Fatalf("AddEdge(%v): %v", e, err)
		}
	}
	return g
}

func twoTriangles(t *testing.T) *Graph {
	return mustEdges(t, 6, [][3]float64{
		{0, 1, 1}, {1, 2, 1}, {2, 0, 1},
		{3, 4, 1}, {4, 5, 1}, {5, 3, 1},
	})
}

func bridgedTriangles(t *testing.T) *Graph {
	g := twoTriangles(t)
	if err := g.AddEdge(2, 3, 1); err != nil {
		t.Fatal(err)
	}
	return g
}

func createTestGraphs(t *testing.T) []TestGraph {
	return []TestGraph{
		{
			Name:        "TwoConnected",
			Graph:       mustEdges(t, 2, [][3]float64{{0, 1, 1}}),
			ExpectedMin: 1,
			ExpectedMax: 1,
			Description: "Two nodes connected by single edge",
		},
		{
			Name:        "Triangle",
			Graph:       mustEdges(t, 3, [][3]float64{{0, 1, 1}, {1, 2, 1}, {2, 0, 1}}),
			ExpectedMin: 1,
			ExpectedMax: 1,
			Description: "Complete graph K3",
		},
		{
			Name:        "TwoTriangles",
			Graph:       twoTriangles(t),
			ExpectedMin: 2,
			ExpectedMax: 2,
			Description: "Two disjoint triangles",
		},
		{
			Name:        "BridgedTriangles",
			Graph:       bridgedTriangles(t),
			ExpectedMin: 2,
			ExpectedMax: 2,
			Description: "Two triangles joined by one edge",
		},
	}
}

func TestRunCommunityCounts(t *testing.T) {
	for _, tg := range createTestGraphs(t) {
		t.Run(tg.Name, func(t *testing.T) {
			res, err := Run(context.Background(), tg.Graph, DefaultOptions(), zerolog.Nop())
			if err != nil {
				t.Fatalf("%s: %v", tg.Description, err)
			}
			if res.NumCommunities < tg.ExpectedMin || res.NumCommunities > tg.ExpectedMax {
				t.Errorf("%s: got %d communities, want [%d, %d]",
					tg.Description, res.NumCommunities, tg.ExpectedMin, tg.ExpectedMax)
			}
			if len(res.Membership) != tg.Graph.NumNodes {
				t.Errorf("membership covers %d nodes, want %d", len(res.Membership), tg.Graph.NumNodes)
			}
		})
	}
}

func TestRunTriangleSplit(t *testing.T) {
	res, err := Run(context.Background(), bridgedTriangles(t), DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	m := res.Membership
	if m[0] != m[1] || m[1] != m[2] || m[3] != m[4] || m[4] != m[5] || m[0] == m[3] {
		t.Errorf("unexpected membership %v", m)
	}
	want := 6.0/7.0 - 0.5
	if math.Abs(res.Modularity-want) > 1e-12 {
		t.Errorf("modularity = %f, want %f", res.Modularity, want)
	}
}

func TestModularity(t *testing.T) {
	g := twoTriangles(t)

	t.Run("split", func(t *testing.T) {
		q, err := Modularity(g, []int{0, 0, 0, 1, 1, 1}, 1)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(q-0.5) > 1e-12 {
			t.Errorf("Q = %f, want 0.5", q)
		}
	})

	t.Run("single community", func(t *testing.T) {
		q, err := Modularity(g, []int{0, 0, 0, 0, 0, 0}, 1)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(q) > 1e-12 {
			t.Errorf("Q = %f, want 0", q)
		}
	})

	t.Run("resolution scales null model", func(t *testing.T) {
		q, err := Modularity(g, []int{0, 0, 0, 1, 1, 1}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(q-0.0) > 1e-12 {
			t.Errorf("Q = %f, want 0", q)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		if _, err := Modularity(g, []int{0, 1}, 1); err == nil {
			t.Error("expected error")
		}
	})
}

func TestModularityMatchesCommunityState(t *testing.T) {
	g := bridgedTriangles(t)
	comm := NewCommunity(g)
	fromState := CalculateModularity(g, comm, 1)
	fromVector, err := Modularity(g, []int{0, 1, 2, 3, 4, 5}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(fromState-fromVector) > 1e-12 {
		t.Errorf("state %f != vector %f", fromState, fromVector)
	}
}

func TestModularityGain(t *testing.T) {
	g := bridgedTriangles(t)
	comm := NewCommunity(g)

	// node 0 (degree 2) into node 1's singleton (degree 2), link weight 1, m = 7
	gain := CalculateModularityGain(g, comm, 0, 1, 1.0, 1.0)
	want := 1.0 - 2.0*2.0/14.0
	if math.Abs(gain-want) > 1e-12 {
		t.Errorf("gain = %f, want %f", gain, want)
	}
}

func TestAggregateGraphPreservesWeight(t *testing.T) {
	g := mustEdges(t, 4, [][3]float64{{0, 1, 2}, {1, 2, 1}, {2, 3, 3}, {3, 3, 0.5}})
	comm := NewCommunity(g)
	comm.NodeToCommunity = []int{0, 0, 2, 2}

	super, membership, err := AggregateGraph(g, comm, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if super.NumNodes != 2 {
		t.Fatalf("super nodes = %d, want 2", super.NumNodes)
	}
	if !reflect.DeepEqual(membership, []int{0, 0, 1, 1}) {
		t.Errorf("membership = %v", membership)
	}
	if math.Abs(super.TotalWeight-g.TotalWeight) > 1e-12 {
		t.Errorf("total weight %f, want %f", super.TotalWeight, g.TotalWeight)
	}
	if w := super.Loops[0]; w != 2 {
		t.Errorf("self-loop 0 = %f, want 2", w)
	}
	if w := super.Loops[1]; w != 3.5 {
		t.Errorf("self-loop 1 = %f, want 3.5", w)
	}
	if !reflect.DeepEqual(super.Links[0], []Neighbor{{Node: 1, Weight: 1}}) {
		t.Errorf("bridge = %v, want 1", super.Links[0])
	}
}

func TestRunDeterministic(t *testing.T) {
	w := mat.NewDense(8, 8, nil)
	for i := 0; i < 8; i++ {
		for j := i + 1; j < 8; j++ {
			v := float64((i*7+j*3)%5) / 4
			w.Set(i, j, v)
			w.Set(j, i, v)
		}
	}
	g := FromMatrix(w)

	a, err := Run(context.Background(), g, DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(context.Background(), g, DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Membership, b.Membership) || a.Modularity != b.Modularity {
		t.Errorf("runs differ: %v (%f) vs %v (%f)", a.Membership, a.Modularity, b.Membership, b.Modularity)
	}
}

func TestRunStatistics(t *testing.T) {
	res, err := Run(context.Background(), bridgedTriangles(t), DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	levels := res.Statistics.LevelStats
	if len(levels) == 0 || len(levels) != res.NumLevels {
		t.Fatalf("level stats = %d, levels = %d", len(levels), res.NumLevels)
	}
	if levels[0].Nodes != 6 {
		t.Errorf("first level nodes = %d, want 6", levels[0].Nodes)
	}
	last := levels[len(levels)-1]
	if last.Communities != res.NumCommunities {
		t.Errorf("last level communities = %d, result has %d", last.Communities, res.NumCommunities)
	}
	moves, iterations := 0, 0
	for _, ls := range levels {
		moves += ls.Moves
		iterations += ls.Iterations
		if ls.FinalModularity < ls.InitialModularity {
			t.Errorf("level %d modularity fell from %f to %f", ls.Level, ls.InitialModularity, ls.FinalModularity)
		}
	}
	if moves != res.Statistics.TotalMoves || iterations != res.Statistics.TotalIterations {
		t.Errorf("totals %d/%d do not match level sums %d/%d",
			res.Statistics.TotalMoves, res.Statistics.TotalIterations, moves, iterations)
	}
}

func TestRunErrors(t *testing.T) {
	if _, err := Run(context.Background(), NewGraph(3), DefaultOptions(), zerolog.Nop()); !errors.Is(err, ErrNoEdges) {
		t.Errorf("empty edge set: got %v, want ErrNoEdges", err)
	}
	if _, err := Run(context.Background(), NewGraph(0), DefaultOptions(), zerolog.Nop()); err == nil {
		t.Error("zero nodes: expected error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, bridgedTriangles(t), DefaultOptions(), zerolog.Nop()); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v", err)
	}
}

func TestFromMatrix(t *testing.T) {
	w := mat.NewDense(3, 3, []float64{
		1, 2, 0,
		2, 0, 3,
		0, 3, 0,
	})
	g := FromMatrix(w)
	if g.NumNodes != 3 {
		t.Fatalf("nodes = %d", g.NumNodes)
	}
	if g.TotalWeight != 6 {
		t.Errorf("total weight = %f, want 6", g.TotalWeight)
	}
	if g.Degrees[0] != 4 {
		t.Errorf("degree 0 = %f, want 4 (self-loop counted twice)", g.Degrees[0])
	}
	if g.NumEdges() != 3 {
		t.Errorf("edges = %d, want 3", g.NumEdges())
	}
	if err := g.Validate(); err != nil {
		t.Error(err)
	}
}

func TestAddEdgeErrors(t *testing.T) {
	g := NewGraph(2)
	tests := []struct {
		name   string
		u, v   int
		weight float64
		want   error
	}{
		{"negative index", -1, 0, 1, ErrNodeRange},
		{"index past end", 0, 2, 1, ErrNodeRange},
		{"zero weight", 0, 1, 0, ErrWeight},
		{"NaN weight", 0, 1, math.NaN(), ErrWeight},
		{"infinite weight", 0, 1, math.Inf(1), ErrWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.AddEdge(tt.u, tt.v, tt.weight); !errors.Is(err, tt.want) {
				t.Errorf("AddEdge(%d, %d, %g) = %v, want %v", tt.u, tt.v, tt.weight, err, tt.want)
			}
		})
	}
	if g.TotalWeight != 0 {
		t.Errorf("rejected edges changed total weight to %f", g.TotalWeight)
	}
}

func TestSelfLoopDegree(t *testing.T) {
	g := mustEdges(t, 2, [][3]float64{{0, 0, 1.5}, {0, 1, 1}})
	if got := g.Loops[0]; got != 1.5 {
		t.Errorf("self-loop = %f, want 1.5", got)
	}
	if got := g.Degrees[0]; got != 4 {
		t.Errorf("degree = %f, want 4", got)
	}
	if len(g.Links[0]) != 1 {
		t.Errorf("self-loop leaked into links: %v", g.Links[0])
	}
}
