package louvain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNodeRange is returned for an edge endpoint outside the graph.
	ErrNodeRange = errors.New("louvain: node index out of range")
	// ErrWeight is returned for a non-positive or non-finite edge weight.
	ErrWeight = errors.New("louvain: edge weight must be positive")
)

// Neighbor is one entry of a node's link list.
type Neighbor struct {
	Node   int
	Weight float64
}

// Graph is a weighted undirected graph held as per-node link lists. Self-loops
// live in Loops, never in Links.
type Graph struct {
	NumNodes int          `json:"num_nodes"`
	Links    [][]Neighbor `json:"-"`
	Loops    []float64    `json:"-"`
	// Degrees holds weighted degrees with self-loops counted twice.
	Degrees []float64 `json:"degrees"`
	// TotalWeight is m, the sum of edge weights with each edge once.
	TotalWeight float64 `json:"total_weight"`
}

// NewGraph returns an edgeless graph on n nodes.
func NewGraph(n int) *Graph {
	return &Graph{
		NumNodes: n,
		Links:    make([][]Neighbor, n),
		Loops:    make([]float64, n),
		Degrees:  make([]float64, n),
	}
}

// FromMatrix reads the positive cells of the upper triangle of a symmetric
// weight matrix, diagonal included.
func FromMatrix(w mat.Matrix) *Graph {
	n, _ := w.Dims()
	if d, ok := w.(*mat.Dense); ok && d.IsEmpty() {
		n = 0
	}
	g := NewGraph(n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if v := w.At(i, j); v > 0 {
				g.link(i, j, v)
			}
		}
	}
	return g
}

// AddEdge inserts an undirected edge; u == v adds to the self-loop of u.
func (g *Graph) AddEdge(u, v int, weight float64) error {
	if u < 0 || u >= g.NumNodes || v < 0 || v >= g.NumNodes {
		return fmt.Errorf("%w: %d-%d with %d nodes", ErrNodeRange, u, v, g.NumNodes)
	}
	if !(weight > 0) || math.IsInf(weight, 1) {
		return fmt.Errorf("%w: %g", ErrWeight, weight)
	}
	g.link(u, v, weight)
	return nil
}

func (g *Graph) link(u, v int, w float64) {
	g.TotalWeight += w
	if u == v {
		g.Loops[u] += w
		g.Degrees[u] += 2 * w
		return
	}
	g.Links[u] = append(g.Links[u], Neighbor{Node: v, Weight: w})
	g.Links[v] = append(g.Links[v], Neighbor{Node: u, Weight: w})
	g.Degrees[u] += w
	g.Degrees[v] += w
}

// NumEdges counts link entries once per pair and each self-loop once.
func (g *Graph) NumEdges() int {
	count := 0
	for u, links := range g.Links {
		for _, nb := range links {
			if nb.Node > u {
				count++
			}
		}
		if g.Loops[u] > 0 {
			count++
		}
	}
	return count
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		NumNodes:    g.NumNodes,
		Links:       make([][]Neighbor, g.NumNodes),
		Loops:       append([]float64(nil), g.Loops...),
		Degrees:     append([]float64(nil), g.Degrees...),
		TotalWeight: g.TotalWeight,
	}
	for u, links := range g.Links {
		c.Links[u] = append([]Neighbor(nil), links...)
	}
	return c
}

// Validate checks that the link lists are symmetric in count, in range and
// positively weighted.
func (g *Graph) Validate() error {
	if g.NumNodes <= 0 {
		return fmt.Errorf("%w: graph has %d nodes", ErrNodeRange, g.NumNodes)
	}
	if len(g.Links) != g.NumNodes || len(g.Loops) != g.NumNodes || len(g.Degrees) != g.NumNodes {
		return fmt.Errorf("graph arrays do not match %d nodes", g.NumNodes)
	}
	for u, links := range g.Links {
		for _, nb := range links {
			if nb.Node < 0 || nb.Node >= g.NumNodes || nb.Node == u {
				return fmt.Errorf("%w: link %d-%d", ErrNodeRange, u, nb.Node)
			}
			if !(nb.Weight > 0) {
				return fmt.Errorf("%w: link %d-%d has %g", ErrWeight, u, nb.Node, nb.Weight)
			}
		}
		if g.Loops[u] < 0 {
			return fmt.Errorf("%w: self-loop %d has %g", ErrWeight, u, g.Loops[u])
		}
	}
	return nil
}
