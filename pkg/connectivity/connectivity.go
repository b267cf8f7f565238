// Package connectivity restricts a connectome to its largest connected
// component.
package connectivity

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
)

// Mode selects how disconnected graphs are handled.
type Mode string

const (
	// All keeps every component.
	All Mode = "all"
	// Giant keeps only the largest connected component.
	Giant Mode = "giant"
)

// ParseMode maps a configuration string to a Mode. Unknown values keep all
// components.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(Giant)) {
		return Giant
	}
	return All
}

// Topology builds the unweighted undirected graph of the positive cells of w.
// Every region is present as a node, isolated or not.
func Topology(w mat.Matrix) *simple.UndirectedGraph {
	n := connectome.Size(w)
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w.At(i, j) > 0 {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}
	return g
}

// Components returns the connected components of w, each sorted ascending,
// ordered by size descending. Equal sizes are ordered by smallest member.
func Components(w mat.Matrix) [][]int {
	cc := topo.ConnectedComponents(Topology(w))

	comps := make([][]int, 0, len(cc))
	for _, nodes := range cc {
		ids := make([]int, len(nodes))
		for i, n := range nodes {
			ids[i] = int(n.ID())
		}
		sort.Ints(ids)
		comps = append(comps, ids)
	}

	sort.Slice(comps, func(a, b int) bool {
		if len(comps[a]) != len(comps[b]) {
			return len(comps[a]) > len(comps[b])
		}
		return comps[a][0] < comps[b][0]
	})
	return comps
}

// LargestComponent returns the submatrix of the largest connected component
// and the original indices it kept. A graph without edges, or one that is
// already connected, is returned unchanged with every index.
func LargestComponent(w mat.Matrix) (*mat.Dense, []int) {
	n := connectome.Size(w)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	if n == 0 {
		return &mat.Dense{}, all
	}
	if connectome.EdgeCount(w) == 0 {
		return mat.DenseCopyOf(w), all
	}

	comps := Components(w)
	if len(comps) <= 1 {
		return mat.DenseCopyOf(w), all
	}

	idx := comps[0]
	return connectome.Submatrix(w, idx), idx
}
