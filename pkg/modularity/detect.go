package modularity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-metrics/pkg/connectome"
	"github.com/gilchrisn/connectome-metrics/pkg/louvain"
)

// Algorithm names the community detection method that produced a result.
type Algorithm string

const (
	AlgorithmLouvain  Algorithm = "LOUVAIN"
	AlgorithmSpectral Algorithm = "SPECTRAL"
)

// ParseAlgorithm maps a configuration value to an Algorithm. Anything other
// than "spectral" selects Louvain.
func ParseAlgorithm(s string) Algorithm {
	if strings.EqualFold(strings.TrimSpace(s), string(AlgorithmSpectral)) {
		return AlgorithmSpectral
	}
	return AlgorithmLouvain
}

// Options configures Detect.
type Options struct {
	Gamma     float64
	Algorithm Algorithm
	Louvain   louvain.Options
}

// DefaultOptions runs Louvain at resolution 1.
func DefaultOptions() Options {
	return Options{
		Gamma:     1.0,
		Algorithm: AlgorithmLouvain,
		Louvain:   louvain.DefaultOptions(),
	}
}

// Result is a detected partition and its modularity. Levels is the number of
// Louvain aggregation levels, 0 for the spectral method.
type Result struct {
	Q           float64   `json:"modularity_Q"`
	Communities int       `json:"n_communities"`
	Membership  []int     `json:"membership,omitempty"`
	Algorithm   Algorithm `json:"algorithm"`
	Levels      int       `json:"levels"`
}

// Detect partitions w with the configured algorithm. A matrix without edges
// yields Q = NaN and no communities. A spectral failure is logged and the
// partition is recomputed with Louvain.
//
// Spectral Q is scored at Gamma. Louvain partitions at Gamma but its Q is
// scored at resolution 1.
func Detect(ctx context.Context, w mat.Matrix, opts Options, logger zerolog.Logger) (Result, error) {
	if connectome.Size(w) == 0 || connectome.EdgeCount(w) == 0 {
		return Result{Q: math.NaN(), Algorithm: AlgorithmLouvain}, nil
	}

	if opts.Algorithm == AlgorithmSpectral {
		membership, q, err := Spectral(w, opts.Gamma)
		if err == nil {
			return Result{Q: q, Communities: Count(membership), Membership: membership, Algorithm: AlgorithmSpectral}, nil
		}
		if errors.Is(err, ErrNoEdges) {
			return Result{Q: math.NaN(), Algorithm: AlgorithmLouvain}, nil
		}
		logger.Info().Err(err).Msg("Spectral modularity failed, falling back to Louvain")
	}

	return detectLouvain(ctx, w, opts, logger)
}

func detectLouvain(ctx context.Context, w mat.Matrix, opts Options, logger zerolog.Logger) (Result, error) {
	lo := opts.Louvain
	lo.Resolution = opts.Gamma

	res, err := louvain.Run(ctx, louvain.FromMatrix(w), lo, logger)
	if errors.Is(err, louvain.ErrNoEdges) {
		return Result{Q: math.NaN(), Algorithm: AlgorithmLouvain}, nil
	}
	if err != nil {
		return Result{Q: math.NaN(), Algorithm: AlgorithmLouvain}, fmt.Errorf("louvain: %w", err)
	}

	for _, ls := range res.Statistics.LevelStats {
		logger.Debug().
			Int("level", ls.Level).
			Int("nodes", ls.Nodes).
			Int("communities", ls.Communities).
			Int("iterations", ls.Iterations).
			Int("moves", ls.Moves).
			Float64("initial_modularity", ls.InitialModularity).
			Float64("final_modularity", ls.FinalModularity).
			Int64("runtime_ms", ls.RuntimeMS).
			Msg("Louvain level")
	}

	q, err := Q(w, res.Membership, 1)
	if err != nil {
		return Result{Q: math.NaN(), Algorithm: AlgorithmLouvain}, err
	}
	return Result{
		Q:           q,
		Communities: res.NumCommunities,
		Membership:  res.Membership,
		Algorithm:   AlgorithmLouvain,
		Levels:      res.NumLevels,
	}, nil
}
