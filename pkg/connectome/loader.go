package connectome

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// maxLineBytes bounds a single matrix row. Rows of a few thousand regions
// written with full float precision stay well below it.
const maxLineBytes = 16 * 1024 * 1024

var tokenReplacer = strings.NewReplacer(
	"\t", ",",
	";", ",",
	"[", "",
	"]", "",
	`"`, "",
	"'", "",
)

// Tokenize splits one matrix row into its cells. Commas, semicolons and tabs
// all act as separators, bracket and quote characters are dropped, and a row
// that yields a single cell is re-split on whitespace. Cells keep their
// surrounding spaces, so a whitespace-only cell still counts as a cell.
func Tokenize(line string) []string {
	s := strings.Trim(strings.TrimSpace(line), ",;")
	if s == "" {
		return nil
	}
	s = tokenReplacer.Replace(s)

	parts := splitNonEmpty(strings.Split(s, ","))
	if len(parts) == 1 {
		parts = strings.Fields(s)
	}
	return parts
}

func splitNonEmpty(raw []string) []string {
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Parse reads a headerless numeric matrix. Blank lines are ignored and a
// blank cell reads as NaN.
func Parse(r io.Reader) (*mat.Dense, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var rows [][]float64
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		tokens := Tokenize(scanner.Text())
		if len(tokens) == 0 {
			continue
		}

		row := make([]float64, len(tokens))
		for i, tok := range tokens {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				row[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %q", ErrParse, lineNo, i+1, tok)
			}
			row[i] = v
		}

		if len(rows) > 0 && len(row) != len(rows[0]) {
			return nil, fmt.Errorf("%w: line %d has %d values, expected %d",
				ErrNotSquare, lineNo, len(row), len(rows[0]))
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matrix: %w", err)
	}

	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	n := len(rows)
	if len(rows[0]) != n {
		return nil, fmt.Errorf("%w: %d rows x %d columns", ErrNotSquare, n, len(rows[0]))
	}

	data := make([]float64, 0, n*n)
	for _, row := range rows {
		data = append(data, row...)
	}
	return mat.NewDense(n, n, data), nil
}

// Load reads the matrix stored at path without modifying its values.
func Load(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open connectome: %w", err)
	}
	defer f.Close()

	w, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// LoadClean loads a connectome and applies Clean.
func LoadClean(path string) (*mat.Dense, error) {
	w, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Clean(w), nil
}

// Clean returns the symmetric, zero-diagonal, non-negative, finite version of
// w: W = (W + Wᵀ)/2, diagonal set to 0, negatives clamped to 0 and any NaN or
// ±Inf replaced by 0. The input is not modified.
func Clean(w mat.Matrix) *mat.Dense {
	n, _ := w.Dims()
	if n == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.5 * (w.At(i, j) + w.At(j, i))
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				v = 0
			}
			out.Set(i, j, v)
			out.Set(j, i, v)
		}
	}
	return out
}

// Normalize divides every weight by the maximum weight. A matrix whose
// maximum is not positive is returned as an unchanged copy.
func Normalize(w mat.Matrix) *mat.Dense {
	if r, _ := w.Dims(); r == 0 {
		return &mat.Dense{}
	}
	out := mat.DenseCopyOf(w)
	if m := mat.Max(out); m > 0 {
		out.Scale(1/m, out)
	}
	return out
}
