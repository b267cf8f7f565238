package connectivity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// twoIslands has a triangle {0,2,4}, an edge {1,3} and an isolated node 5.
func twoIslands() *mat.Dense {
	w := mat.NewDense(6, 6, nil)
	link := func(i, j int, v float64) {
		w.Set(i, j, v)
		w.Set(j, i, v)
	}
	link(0, 2, 1)
	link(2, 4, 2)
	link(0, 4, 3)
	link(1, 3, 5)
	return w
}

func TestComponents(t *testing.T) {
	comps := Components(twoIslands())
	assert.Equal(t, [][]int{{0, 2, 4}, {1, 3}, {5}}, comps)
}

func TestLargestComponent(t *testing.T) {
	gcc, kept := LargestComponent(twoIslands())
	assert.Equal(t, []int{0, 2, 4}, kept)

	want := mat.NewDense(3, 3, []float64{
		0, 1, 3,
		1, 0, 2,
		3, 2, 0,
	})
	assert.True(t, mat.Equal(want, gcc))
}

func TestLargestComponentUnchanged(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		w := mat.NewDense(3, 3, []float64{0, 1, 0, 1, 0, 1, 0, 1, 0})
		gcc, kept := LargestComponent(w)
		assert.Equal(t, []int{0, 1, 2}, kept)
		assert.True(t, mat.Equal(w, gcc))
	})

	t.Run("no edges", func(t *testing.T) {
		w := mat.NewDense(3, 3, nil)
		gcc, kept := LargestComponent(w)
		assert.Equal(t, []int{0, 1, 2}, kept)
		r, _ := gcc.Dims()
		assert.Equal(t, 3, r)
	})

	t.Run("equal sizes prefer smallest index", func(t *testing.T) {
		w := mat.NewDense(4, 4, nil)
		w.Set(2, 3, 1)
		w.Set(3, 2, 1)
		w.Set(0, 1, 1)
		w.Set(1, 0, 1)
		_, kept := LargestComponent(w)
		assert.Equal(t, []int{0, 1}, kept)
	})
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, Giant, ParseMode("giant"))
	assert.Equal(t, Giant, ParseMode(" GIANT "))
	assert.Equal(t, All, ParseMode("all"))
	assert.Equal(t, All, ParseMode(""))
}
