package modularity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
)

// spectralTolerance is the smallest split contribution accepted as positive.
const spectralTolerance = 1e-10

// Spectral partitions w by recursive leading-eigenvector bisection of the
// modularity matrix B = W − γ·k·kᵀ/2m, refining every split by single-node
// flips. Modules are bisected until no split increases modularity.
func Spectral(w mat.Matrix, gamma float64) ([]int, float64, error) {
	n := connectome.Size(w)
	if n == 0 {
		return nil, math.NaN(), ErrNoEdges
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
		return nil, math.NaN(), ErrNoEdges
	}

	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (w.At(i, j)+w.At(j, i))/2 - gamma*k[i]*k[j]/m2
			b.SetSym(i, j, v)
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = 1
	}
	next := 1
	// stack of module labels still to be split; the top is the last element
	pending := []int{1}

	ind := make([]int, n)
	for i := range ind {
		ind[i] = i
	}
	bg := mat.NewSymDense(n, nil)
	bg.CopySym(b)

	for len(pending) > 0 {
		s, q, err := leadingSplit(bg)
		if err != nil {
			return nil, math.NaN(), err
		}

		ng := len(ind)
		sum := 0.0
		for _, v := range s {
			sum += v
		}
		if q > spectralTolerance && math.Abs(sum) != float64(ng) {
			next++
			for a, node := range ind {
				if s[a] < 0 {
					labels[node] = next
				}
			}
			pending = append(pending, next)
		} else {
			pending = pending[:len(pending)-1]
		}

		if len(pending) == 0 {
			break
		}
		ind = ind[:0]
		for node, c := range labels {
			if c == pending[len(pending)-1] {
				ind = append(ind, node)
			}
		}
		bg = subModularity(b, ind)
	}

	membership := relabel(labels)
	qv, err := Q(w, membership, gamma)
	if err != nil {
		return nil, math.NaN(), err
	}
	return membership, qv, nil
}

// subModularity restricts b to idx and subtracts the row sums from the
// diagonal, giving the generalized modularity matrix of a module.
func subModularity(b *mat.SymDense, idx []int) *mat.SymDense {
	ng := len(idx)
	out := mat.NewSymDense(ng, nil)
	for a := 0; a < ng; a++ {
		for c := a; c < ng; c++ {
			out.SetSym(a, c, b.At(idx[a], idx[c]))
		}
	}
	for a := 0; a < ng; a++ {
		rowSum := 0.0
		for c := 0; c < ng; c++ {
			rowSum += out.At(a, c)
		}
		out.SetSym(a, a, out.At(a, a)-rowSum)
	}
	return out
}

// leadingSplit returns the ±1 split of bg given by the sign of its leading
// eigenvector, improved by flipping nodes one at a time, and its
// contribution q = sᵀ·Bg·s.
func leadingSplit(bg *mat.SymDense) ([]float64, float64, error) {
	ng := bg.SymmetricDim()
	if ng == 1 {
		return []float64{1}, 0, nil
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(bg, true); !ok {
		return nil, 0, fmt.Errorf("%w: module of %d nodes", ErrEigen, ng)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	lead := 0
	for i, v := range values {
		if v > values[lead] {
			lead = i
		}
	}

	s := make([]float64, ng)
	for i := range s {
		if vectors.At(i, lead) < 0 {
			s[i] = -1
		} else {
			s[i] = 1
		}
	}
	q := quadForm(bg, s)
	if math.IsNaN(q) {
		return nil, 0, fmt.Errorf("%w: non-finite split", ErrEigen)
	}
	if q <= spectralTolerance {
		return s, q, nil
	}

	// fine-tune on a zero-diagonal copy: each node is flipped once, in order
	// of largest gain, keeping the best split seen
	offDiag := mat.NewSymDense(ng, nil)
	offDiag.CopySym(bg)
	for i := 0; i < ng; i++ {
		offDiag.SetSym(i, i, 0)
	}

	qmax := q
	iter := make([]float64, ng)
	copy(iter, s)
	moved := make([]bool, ng)
	bs := mat.NewVecDense(ng, nil)
	for remaining := ng; remaining > 0; remaining-- {
		bs.MulVec(offDiag, mat.NewVecDense(ng, iter))
		best := -1
		bestQ := math.Inf(-1)
		for i := 0; i < ng; i++ {
			if moved[i] {
				continue
			}
			qi := qmax - 4*iter[i]*bs.AtVec(i)
			if qi > bestQ {
				best, bestQ = i, qi
			}
		}
		qmax = bestQ
		iter[best] = -iter[best]
		moved[best] = true
		if qmax > q {
			q = qmax
			copy(s, iter)
		}
	}
	return s, q, nil
}

func quadForm(a mat.Symmetric, s []float64) float64 {
	v := mat.NewVecDense(len(s), s)
	var av mat.VecDense
	av.MulVec(a, v)
	return mat.Dot(v, &av)
}
