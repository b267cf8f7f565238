// Package pipeline drives one metric over every discovered connectome:
// load, prepare, compute, and write one row per file.
package pipeline

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectivity"
	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
	"github.com/gilchrisn/connectome-metrics/pkg/sparsify"
)

// Options selects the preprocessing steps applied before a metric.
type Options struct {
	ProportionalThreshold float64           `json:"proportional_threshold" yaml:"proportional_threshold"` // 0 disables
	Normalize             bool              `json:"normalize" yaml:"normalize"`
	TargetDensity         float64           `json:"target_density" yaml:"target_density"` // 0 disables
	KNNK                  int               `json:"knn_k" yaml:"knn_k"`
	Connectivity          connectivity.Mode `json:"connectivity" yaml:"connectivity"`
}

// Prepared is a connectome ready for a metric.
type Prepared struct {
	W                *mat.Dense
	Kept             []int
	OriginalNodes    int
	UsedDensity      float64
	AvailableDensity float64
	Density          float64
}

// Nodes returns the number of nodes the metric sees.
func (p Prepared) Nodes() int {
	return connectome.Size(p.W)
}

// Capped reports whether the density target was lowered to what was available.
func (p Prepared) Capped(opts Options) bool {
	return opts.TargetDensity > 0 && p.UsedDensity < opts.TargetDensity
}

// Reduced reports whether the giant component dropped nodes.
func (p Prepared) Reduced() bool {
	return p.Nodes() < p.OriginalNodes
}

// Preprocess applies, in order: cleaning, proportional thresholding,
// normalization, density targeting with the optional k-NN backbone, and the
// giant-component restriction. Disabled steps are skipped. Used and available
// densities are NaN when no density target is set.
func Preprocess(raw mat.Matrix, opts Options) (Prepared, error) {
	w := connectome.Clean(raw)
	n := connectome.Size(w)
	p := Prepared{
		OriginalNodes:    n,
		UsedDensity:      math.NaN(),
		AvailableDensity: math.NaN(),
	}

	if opts.ProportionalThreshold > 0 {
		t, err := sparsify.Proportional(w, opts.ProportionalThreshold)
		if err != nil {
			return p, err
		}
		w = t
	}

	if opts.Normalize {
		w = connectome.Normalize(w)
	}

	if opts.TargetDensity > 0 {
		t, info := sparsify.ToTargetDensity(w, opts.TargetDensity, opts.KNNK)
		w = t
		p.UsedDensity = info.Used
		p.AvailableDensity = info.Available
	}

	kept := make([]int, n)
	for i := range kept {
		kept[i] = i
	}
	if opts.Connectivity == connectivity.Giant {
		w, kept = connectivity.LargestComponent(w)
	}

	p.W = w
	p.Kept = kept
	p.Density = connectome.Density(w)
	return p, nil
}
