// Package sparsify reduces a cleaned connectome to a controlled edge density.
//
// Both strategies only ever remove edges: every weight in the output is the
// weight the input carried at that position, and the output stays symmetric
// with a zero diagonal.
package sparsify

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
)

// ErrBadFraction is returned for a proportional threshold outside (0, 1].
var ErrBadFraction = errors.New("sparsify: fraction must be in (0, 1]")

// DensityInfo reports how a density target was applied.
type DensityInfo struct {
	Target    float64 `json:"target"`
	Used      float64 `json:"used_density"`
	Available float64 `json:"available_density"`
	Kept      int     `json:"kept_edges"`
}

// Capped reports whether the target had to be lowered to what the matrix
// could provide.
func (d DensityInfo) Capped() bool {
	return d.Used < d.Target
}

// positiveEdges returns the positive strict-upper-triangle cells ordered by
// weight descending, ties broken by position.
func positiveEdges(w mat.Matrix) []connectome.Edge {
	var edges []connectome.Edge
	for _, e := range connectome.UpperTriangle(w, false) {
		if e.Weight > 0 {
			edges = append(edges, e)
		}
	}
	sort.SliceStable(edges, func(a, b int) bool {
		return edges[a].Weight > edges[b].Weight
	})
	return edges
}

// Proportional keeps the round(p·N(N−1)/2) strongest edges of a symmetric
// matrix and zeroes the rest. A fraction of 1 returns a copy.
func Proportional(w mat.Matrix, p float64) (*mat.Dense, error) {
	if math.IsNaN(p) || p <= 0 || p > 1 {
		return nil, fmt.Errorf("%w: got %g", ErrBadFraction, p)
	}

	n := connectome.Size(w)
	if n < 2 {
		return connectome.Clean(w), nil
	}

	keep := int(math.RoundToEven(float64(n*n-n) * p / 2))
	edges := positiveEdges(w)
	if keep > len(edges) {
		keep = len(edges)
	}

	out := mat.NewDense(n, n, nil)
	for _, e := range edges[:keep] {
		out.Set(e.Row, e.Col, e.Weight)
		out.Set(e.Col, e.Row, e.Weight)
	}
	return out, nil
}

// ToTargetDensity keeps edges so the undirected density approaches target,
// using only edges that already carry weight. The target is capped at the
// available density. Every edge at or above the k-th largest weight is kept,
// so ties at the cut are retained. With knnK > 0 each node additionally keeps
// its knnK strongest existing neighbours.
func ToTargetDensity(w mat.Matrix, target float64, knnK int) (*mat.Dense, DensityInfo) {
	info := DensityInfo{Target: target}

	n := connectome.Size(w)
	if n < 2 {
		return zeros(n), info
	}

	edges := positiveEdges(w)
	m := len(edges)
	totalPossible := n * (n - 1) / 2
	info.Available = float64(2*m) / float64(n*(n-1))

	if m == 0 {
		return zeros(n), info
	}

	info.Used = math.Min(target, info.Available)
	if info.Used <= 0 {
		return zeros(n), info
	}

	k := int(math.Floor(info.Used * float64(totalPossible)))
	if k < 1 {
		k = 1
	}
	if k > m {
		k = m
	}
	kth := edges[k-1].Weight

	keep := mat.NewDense(n, n, nil)
	for _, e := range edges {
		if e.Weight < kth {
			break
		}
		keep.Set(e.Row, e.Col, 1)
		keep.Set(e.Col, e.Row, 1)
	}

	if knnK > 0 {
		addNearestNeighbors(w, keep, knnK)
	}

	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if keep.At(i, j) == 0 && keep.At(j, i) == 0 {
				continue
			}
			v := math.Max(w.At(i, j), w.At(j, i))
			out.Set(i, j, v)
			out.Set(j, i, v)
			info.Kept++
		}
	}
	return out, info
}

// addNearestNeighbors marks, for each node, its k strongest positive links.
func addNearestNeighbors(w mat.Matrix, keep *mat.Dense, k int) {
	n := connectome.Size(w)
	type neighbor struct {
		node   int
		weight float64
	}

	for i := 0; i < n; i++ {
		var nbrs []neighbor
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if v := w.At(i, j); v > 0 {
				nbrs = append(nbrs, neighbor{node: j, weight: v})
			}
		}
		if len(nbrs) == 0 {
			continue
		}
		sort.SliceStable(nbrs, func(a, b int) bool {
			return nbrs[a].weight > nbrs[b].weight
		})

		limit := k
		if limit > len(nbrs) {
			limit = len(nbrs)
		}
		for _, nb := range nbrs[:limit] {
			keep.Set(i, nb.node, 1)
			keep.Set(nb.node, i, 1)
		}
	}
}

func zeros(n int) *mat.Dense {
	if n == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(n, n, nil)
}
