package connectome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Edge is one cell of the upper triangle of a connectome.
type Edge struct {
	Row    int
	Col    int
	Weight float64
}

// Size returns the number of regions of a square matrix. The zero-value
// mat.Dense reports 0.
func Size(w mat.Matrix) int {
	if d, ok := w.(*mat.Dense); ok && d.IsEmpty() {
		return 0
	}
	n, _ := w.Dims()
	return n
}

// Density is the fraction of possible undirected edges carrying a positive
// weight in the strict upper triangle.
func Density(w mat.Matrix) float64 {
	n := Size(w)
	if n < 2 {
		return 0
	}
	edges := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w.At(i, j) > 0 {
				edges++
			}
		}
	}
	return 2 * float64(edges) / float64(n*(n-1))
}

// EdgeCount returns the number of positive cells in the strict upper triangle.
func EdgeCount(w mat.Matrix) int {
	n := Size(w)
	count := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w.At(i, j) > 0 {
				count++
			}
		}
	}
	return count
}

// UpperTriangle flattens the upper triangle row by row. keepDiag includes the
// diagonal cells.
func UpperTriangle(w mat.Matrix, keepDiag bool) []Edge {
	n := Size(w)
	offset := 1
	if keepDiag {
		offset = 0
	}
	edges := make([]Edge, 0, n*(n+1)/2)
	for i := 0; i < n; i++ {
		for j := i + offset; j < n; j++ {
			edges = append(edges, Edge{Row: i, Col: j, Weight: w.At(i, j)})
		}
	}
	return edges
}

// Flatten returns every cell in row-major order.
func Flatten(w mat.Matrix) []Edge {
	r, c := w.Dims()
	if Size(w) == 0 {
		return nil
	}
	edges := make([]Edge, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			edges = append(edges, Edge{Row: i, Col: j, Weight: w.At(i, j)})
		}
	}
	return edges
}

// Submatrix returns the rows and columns of w listed in idx, in that order.
func Submatrix(w mat.Matrix, idx []int) *mat.Dense {
	k := len(idx)
	if k == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(k, k, nil)
	for a, i := range idx {
		for b, j := range idx {
			out.Set(a, b, w.At(i, j))
		}
	}
	return out
}

// Write encodes w as a headerless CSV using the shortest exact float form.
func Write(wr io.Writer, w mat.Matrix) error {
	bw := bufio.NewWriter(wr)
	r, c := w.Dims()
	if Size(w) == 0 {
		r, c = 0, 0
	}
	buf := make([]byte, 0, 32)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if j > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			buf = strconv.AppendFloat(buf[:0], w.At(i, j), 'g', -1, 64)
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCSV writes w to path, creating or truncating the file.
func WriteCSV(path string, w mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, w); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
