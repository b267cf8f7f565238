// Package louvain implements Louvain community detection on weighted
// undirected graphs held in flat adjacency arrays.
package louvain

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoEdges is returned when the graph carries no weight.
var ErrNoEdges = errors.New("louvain: graph has no edges")

// Options controls a Louvain run.
type Options struct {
	Resolution        float64 `json:"resolution"`
	MaxLevels         int     `json:"max_levels"`
	MaxIterations     int     `json:"max_iterations"` // local passes per level, <= 0 means until stable
	MinModularityGain float64 `json:"min_modularity_gain"`
	RandomSeed        int64   `json:"random_seed"`
}

// DefaultOptions returns the standard resolution-1 settings.
func DefaultOptions() Options {
	return Options{
		Resolution:        1.0,
		MaxLevels:         10,
		MaxIterations:     100,
		MinModularityGain: 1e-7,
		RandomSeed:        42,
	}
}

// Result is the partition of the last level reached.
type Result struct {
	Membership     []int      `json:"membership"` // community of each original node
	Modularity     float64    `json:"modularity"` // at the run's resolution
	NumCommunities int        `json:"num_communities"`
	NumLevels      int        `json:"num_levels"`
	Statistics     Statistics `json:"statistics"`
}

// Statistics summarizes the work done by a run.
type Statistics struct {
	TotalIterations int          `json:"total_iterations"`
	TotalMoves      int          `json:"total_moves"`
	RuntimeMS       int64        `json:"runtime_ms"`
	LevelStats      []LevelStats `json:"level_stats"`
}

// LevelStats describes one aggregation level.
type LevelStats struct {
	Level             int     `json:"level"`
	Nodes             int     `json:"nodes"`
	Communities       int     `json:"communities"`
	Iterations        int     `json:"iterations"`
	Moves             int     `json:"moves"`
	InitialModularity float64 `json:"initial_modularity"`
	FinalModularity   float64 `json:"final_modularity"`
	RuntimeMS         int64   `json:"runtime_ms"`
}

// Community is the partition state of one level.
type Community struct {
	NodeToCommunity          []int     // nodeToComm[i] = community ID of node i
	CommunityWeights         []float64 // tot: sum of member degrees
	CommunityInternalWeights []float64 // in: internal edge weight, each edge and self-loop once
}

// NewCommunity initializes each node in its own community
func NewCommunity(graph *Graph) *Community {
	n := graph.NumNodes
	comm := &Community{
		NodeToCommunity:          make([]int, n),
		CommunityWeights:         make([]float64, n),
		CommunityInternalWeights: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		comm.NodeToCommunity[i] = i
		comm.CommunityWeights[i] = graph.Degrees[i]
		comm.CommunityInternalWeights[i] = graph.Loops[i]
	}
	return comm
}

// CalculateModularity computes Newman's modularity of the current partition
// with the given resolution: Q = Σc in_c/m − γ·(tot_c/2m)².
func CalculateModularity(graph *Graph, comm *Community, resolution float64) float64 {
	if graph.TotalWeight == 0 {
		return 0.0
	}
	m := graph.TotalWeight
	m2 := 2.0 * m

	modularity := 0.0
	for c := range comm.CommunityWeights {
		total := comm.CommunityWeights[c]
		if total == 0 && comm.CommunityInternalWeights[c] == 0 {
			continue
		}
		modularity += comm.CommunityInternalWeights[c]/m - resolution*(total/m2)*(total/m2)
	}
	return modularity
}

// Modularity scores a membership vector against graph.
func Modularity(graph *Graph, membership []int, resolution float64) (float64, error) {
	if len(membership) != graph.NumNodes {
		return 0, fmt.Errorf("membership has %d entries for %d nodes", len(membership), graph.NumNodes)
	}
	k := 0
	for _, c := range membership {
		if c < 0 {
			return 0, fmt.Errorf("negative community id %d", c)
		}
		if c+1 > k {
			k = c + 1
		}
	}
	comm := &Community{
		NodeToCommunity:          membership,
		CommunityWeights:         make([]float64, k),
		CommunityInternalWeights: make([]float64, k),
	}
	for u := 0; u < graph.NumNodes; u++ {
		cu := membership[u]
		comm.CommunityWeights[cu] += graph.Degrees[u]
		comm.CommunityInternalWeights[cu] += graph.Loops[u]
		for _, nb := range graph.Links[u] {
			if nb.Node > u && membership[nb.Node] == cu {
				comm.CommunityInternalWeights[cu] += nb.Weight
			}
		}
	}
	return CalculateModularity(graph, comm, resolution), nil
}

// CalculateModularityGain is the gain of inserting an isolated node into
// targetComm, given its link weight to that community.
func CalculateModularityGain(graph *Graph, comm *Community, node, targetComm int, edgeWeight, resolution float64) float64 {
	nodeDegree := graph.Degrees[node]
	commTotal := comm.CommunityWeights[targetComm]
	m2 := 2.0 * graph.TotalWeight

	return edgeWeight - resolution*commTotal*nodeDegree/m2
}

// neighborCommunities returns the link weight from node to each adjacent
// community in first-seen order.
func neighborCommunities(graph *Graph, comm *Community, node int) ([]int, map[int]float64) {
	order := make([]int, 0)
	weightTo := make(map[int]float64)
	for _, nb := range graph.Links[node] {
		c := comm.NodeToCommunity[nb.Node]
		if _, seen := weightTo[c]; !seen {
			order = append(order, c)
		}
		weightTo[c] += nb.Weight
	}
	return order, weightTo
}

func removeNode(graph *Graph, comm *Community, node, c int, weightToComm float64) {
	comm.CommunityWeights[c] -= graph.Degrees[node]
	comm.CommunityInternalWeights[c] -= weightToComm + graph.Loops[node]
	comm.NodeToCommunity[node] = -1
}

func insertNode(graph *Graph, comm *Community, node, c int, weightToComm float64) {
	comm.NodeToCommunity[node] = c
	comm.CommunityWeights[c] += graph.Degrees[node]
	comm.CommunityInternalWeights[c] += weightToComm + graph.Loops[node]
}

// OneLevel performs one level of local optimization. Each pass visits the
// nodes in a fresh random order; a node only leaves its community for a
// strictly better one. Passes stop when nothing moves or modularity improves
// by less than MinModularityGain.
func OneLevel(graph *Graph, comm *Community, opts Options, rng *rand.Rand, logger zerolog.Logger) (int, int, error) {
	totalMoves := 0
	passes := 0

	nodes := make([]int, graph.NumNodes)
	for i := range nodes {
		nodes[i] = i
	}

	currentMod := CalculateModularity(graph, comm, opts.Resolution)
	for opts.MaxIterations <= 0 || passes < opts.MaxIterations {
		passes++
		passMoves := 0

		rng.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

		for _, node := range nodes {
			oldComm := comm.NodeToCommunity[node]
			order, weightTo := neighborCommunities(graph, comm, node)

			removeNode(graph, comm, node, oldComm, weightTo[oldComm])

			bestComm := oldComm
			bestGain := CalculateModularityGain(graph, comm, node, oldComm, weightTo[oldComm], opts.Resolution)
			for _, target := range order {
				gain := CalculateModularityGain(graph, comm, node, target, weightTo[target], opts.Resolution)
				if gain > bestGain {
					bestComm = target
					bestGain = gain
				}
			}

			insertNode(graph, comm, node, bestComm, weightTo[bestComm])
			if bestComm != oldComm {
				passMoves++
			}
		}

		totalMoves += passMoves
		newMod := CalculateModularity(graph, comm, opts.Resolution)

		logger.Debug().
			Int("pass", passes).
			Int("moves", passMoves).
			Float64("modularity", newMod).
			Msg("Local optimization pass")

		if passMoves == 0 || newMod-currentMod < opts.MinModularityGain {
			break
		}
		currentMod = newMod
	}

	return passes, totalMoves, nil
}

// renumber maps community ids to 0..k-1 in order of first appearance.
func renumber(membership []int) ([]int, int) {
	ids := make(map[int]int)
	out := make([]int, len(membership))
	for i, c := range membership {
		id, ok := ids[c]
		if !ok {
			id = len(ids)
			ids[c] = id
		}
		out[i] = id
	}
	return out, len(ids)
}

// AggregateGraph creates a super-graph whose nodes are the communities of
// comm. Each original edge contributes exactly once; internal edges and
// self-loops become super-node self-loops.
func AggregateGraph(graph *Graph, comm *Community, logger zerolog.Logger) (*Graph, []int, error) {
	membership, numSuperNodes := renumber(comm.NodeToCommunity)
	if numSuperNodes == 0 {
		return nil, nil, fmt.Errorf("no valid communities found")
	}

	superEdges := make(map[[2]int]float64)
	for u := 0; u < graph.NumNodes; u++ {
		cu := membership[u]
		if graph.Loops[u] > 0 {
			superEdges[[2]int{cu, cu}] += graph.Loops[u]
		}
		for _, nb := range graph.Links[u] {
			if nb.Node < u {
				continue
			}
			a, b := cu, membership[nb.Node]
			if a > b {
				a, b = b, a
			}
			superEdges[[2]int{a, b}] += nb.Weight
		}
	}

	keys := make([][2]int, 0, len(superEdges))
	for k := range superEdges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	superGraph := NewGraph(numSuperNodes)
	for _, k := range keys {
		if w := superEdges[k]; w > 0 {
			if err := superGraph.AddEdge(k[0], k[1], w); err != nil {
				return nil, nil, err
			}
		}
	}

	logger.Debug().
		Int("original_nodes", graph.NumNodes).
		Int("super_nodes", numSuperNodes).
		Float64("compression_ratio", float64(numSuperNodes)/float64(graph.NumNodes)).
		Msg("Graph aggregation completed")

	return superGraph, membership, nil
}

// Run executes the complete Louvain algorithm and returns the partition of
// the last level reached. The same seed yields the same partition.
func Run(ctx context.Context, graph *Graph, opts Options, logger zerolog.Logger) (*Result, error) {
	startTime := time.Now()

	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if graph.TotalWeight == 0 {
		return nil, ErrNoEdges
	}

	logger.Debug().
		Int("nodes", graph.NumNodes).
		Int("edges", graph.NumEdges()).
		Float64("total_weight", graph.TotalWeight).
		Float64("resolution", opts.Resolution).
		Int64("seed", opts.RandomSeed).
		Msg("Starting Louvain algorithm")

	rng := rand.New(rand.NewSource(opts.RandomSeed))
	result := &Result{Statistics: Statistics{LevelStats: make([]LevelStats, 0)}}

	// membership of every original node in the current graph's node ids
	membership := make([]int, graph.NumNodes)
	for i := range membership {
		membership[i] = i
	}

	currentGraph := graph.Clone()
	lastMod := 0.0
	maxLevels := opts.MaxLevels
	if maxLevels <= 0 {
		maxLevels = 1
	}

	for level := 0; level < maxLevels; level++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		levelStart := time.Now()
		comm := NewCommunity(currentGraph)
		initialMod := CalculateModularity(currentGraph, comm, opts.Resolution)

		passes, moves, err := OneLevel(currentGraph, comm, opts, rng, logger)
		if err != nil {
			return nil, fmt.Errorf("local optimization failed at level %d: %w", level, err)
		}
		finalMod := CalculateModularity(currentGraph, comm, opts.Resolution)

		if level > 0 && finalMod-lastMod < opts.MinModularityGain {
			logger.Debug().Int("level", level).Msg("No improvement, stopping")
			break
		}

		superGraph, superOf, err := AggregateGraph(currentGraph, comm, logger)
		if err != nil {
			return nil, fmt.Errorf("aggregation failed at level %d: %w", level, err)
		}
		for i := range membership {
			membership[i] = superOf[membership[i]]
		}

		result.Statistics.TotalMoves += moves
		result.Statistics.TotalIterations += passes
		result.Statistics.LevelStats = append(result.Statistics.LevelStats, LevelStats{
			Level:             level,
			Nodes:             currentGraph.NumNodes,
			Communities:       superGraph.NumNodes,
			Iterations:        passes,
			Moves:             moves,
			InitialModularity: initialMod,
			FinalModularity:   finalMod,
			RuntimeMS:         time.Since(levelStart).Milliseconds(),
		})
		lastMod = finalMod

		if moves == 0 || superGraph.NumNodes >= currentGraph.NumNodes {
			break
		}
		if superGraph.NumNodes == 1 {
			logger.Debug().Int("level", level).Msg("Single community remaining, stopping")
			break
		}
		currentGraph = superGraph
	}

	levels := result.Statistics.LevelStats
	result.Membership = membership
	result.NumCommunities = levels[len(levels)-1].Communities
	result.NumLevels = len(levels)

	q, err := Modularity(graph, result.Membership, opts.Resolution)
	if err != nil {
		return nil, err
	}
	result.Modularity = q
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()

	logger.Debug().
		Int("levels", result.NumLevels).
		Int("communities", result.NumCommunities).
		Float64("final_modularity", result.Modularity).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Louvain algorithm completed")

	return result, nil
}
