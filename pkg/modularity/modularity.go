// Package modularity scores and detects community structure in weighted
// undirected connectomes.
package modularity

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
)

var (
	// ErrNoEdges is returned when the matrix carries no weight.
	ErrNoEdges = errors.New("modularity: graph has no edges")
	// ErrMembership is returned when a membership vector does not fit the matrix.
	ErrMembership = errors.New("modularity: membership does not match matrix")
	// ErrEigen is returned when the eigendecomposition does not converge.
	ErrEigen = errors.New("modularity: eigendecomposition failed")
)

// Q returns Newman's weighted modularity of membership at resolution gamma:
// Q = (1/2m) Σij [Wij − γ·ki·kj/2m] δ(ci, cj).
func Q(w mat.Matrix, membership []int, gamma float64) (float64, error) {
	n := connectome.Size(w)
	if len(membership) != n {
		return math.NaN(), fmt.Errorf("%w: %d labels for %d nodes", ErrMembership, len(membership), n)
	}

	k := make([]float64, n)
	m2 := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k[i] += w.At(i, j)
		}
		m2 += k[i]
	}
	if m2 == 0 {
		return math.NaN(), ErrNoEdges
	}

	q := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if membership[i] != membership[j] {
				continue
			}
			q += w.At(i, j) - gamma*k[i]*k[j]/m2
		}
	}
	return q / m2, nil
}

// Count returns the number of distinct labels in membership.
func Count(membership []int) int {
	seen := make(map[int]struct{}, len(membership))
	for _, c := range membership {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// relabel maps labels to 0..k-1 in order of first appearance.
func relabel(labels []int) []int {
	ids := make(map[int]int)
	out := make([]int, len(labels))
	for i, c := range labels {
		id, ok := ids[c]
		if !ok {
			id = len(ids)
			ids[c] = id
		}
		out[i] = id
	}
	return out
}
