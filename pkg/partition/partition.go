// Package partition implements multilevel balanced k-way graph
// partitioning minimizing edge cut, in the style of METIS: the graph is
// coarsened by heavy-edge matching, partitioned greedily at the coarsest
// level, and refined with boundary moves while projecting back to the
// original graph. The partitioning is deterministic given (graph, seed).
package partition

import (
	"math"
	"math/rand"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
)

// Graph is the symmetric CSR input to the partitioner. AdjNCY and AdjWgt
// are parallel; every edge appears in both endpoint rows. VWgt carries
// vertex weights (the number of fine vertices a coarse vertex represents);
// nil means unit weights.
type Graph struct {
	XAdj   []int32
	AdjNCY []int32
	AdjWgt []float64
	VWgt   []int32
}

// NumVertices returns the vertex count.
func (g *Graph) NumVertices() int { return len(g.XAdj) - 1 }

func (g *Graph) vertexWeight(v int32) int32 {
	if g.VWgt == nil {
		return 1
	}
	return g.VWgt[v]
}

func (g *Graph) totalVertexWeight() int64 {
	if g.VWgt == nil {
		return int64(g.NumVertices())
	}
	var total int64
	for _, w := range g.VWgt {
		total += int64(w)
	}
	return total
}

// edgeLoad is the summed weight of edges incident to v. Used for the
// secondary edge-balance constraint.
func (g *Graph) edgeLoad(v int32) float64 {
	var load float64
	for i := g.XAdj[v]; i < g.XAdj[v+1]; i++ {
		load += g.AdjWgt[i]
	}
	return load
}

// Config controls the partitioning.
type Config struct {
	// NumParts is the number of balanced parts to produce.
	NumParts int

	// Seed drives every random choice (matching order, region-growing
	// seeds, refinement visit order).
	Seed int64

	// ImbalanceTolerance bounds part weight at tolerance * ideal. METIS
	// uses 1.03 by default.
	ImbalanceTolerance float64

	// NodeEdgeImbalanceRatio, when > 1, additionally bounds each part's
	// incident edge weight at ratio * ideal, trading node-count balance
	// against edge-count balance. Zero disables the edge constraint.
	NodeEdgeImbalanceRatio float64

	// CoarsenTo stops coarsening once the graph has at most
	// CoarsenTo * NumParts vertices.
	CoarsenTo int

	// RefinementPasses caps boundary refinement sweeps per level.
	RefinementPasses int
}

// DefaultConfig returns the standard settings for a k-way partitioning.
func DefaultConfig(numParts int, seed int64) Config {
	return Config{
		NumParts:           numParts,
		Seed:               seed,
		ImbalanceTolerance: 1.03,
		CoarsenTo:          30,
		RefinementPasses:   8,
	}
}

// Result is a completed partitioning.
type Result struct {
	Parts     []int32
	EdgeCut   float64
	NumLevels int
}

// Partition splits g into cfg.NumParts balanced parts. Every vertex is
// assigned exactly one part id in [0, NumParts).
func Partition(g *Graph, cfg Config) (*Result, error) {
	n := g.NumVertices()
	if cfg.NumParts < 1 {
		return nil, apperrors.NewConfiguration("number of parts must be >= 1, got %d", cfg.NumParts)
	}
	if cfg.NumParts > n {
		return nil, apperrors.NewConfiguration(
			"cannot split %d vertices into %d parts", n, cfg.NumParts)
	}
	if cfg.ImbalanceTolerance < 1.0 {
		cfg.ImbalanceTolerance = 1.03
	}
	if cfg.CoarsenTo <= 0 {
		cfg.CoarsenTo = 30
	}
	if cfg.RefinementPasses <= 0 {
		cfg.RefinementPasses = 8
	}

	if cfg.NumParts == 1 {
		return &Result{Parts: make([]int32, n)}, nil
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	// Coarsening phase. levels[0] is the input graph.
	levels := []*level{{graph: g}}
	coarsenLimit := cfg.CoarsenTo * cfg.NumParts
	for levels[len(levels)-1].graph.NumVertices() > coarsenLimit {
		cur := levels[len(levels)-1]
		coarse, cmap := coarsen(cur.graph, rng)
		// Matching found too little structure to merge; stop.
		if coarse.NumVertices() >= int(float64(cur.graph.NumVertices())*0.95) {
			break
		}
		cur.cmap = cmap
		levels = append(levels, &level{graph: coarse})
	}

	// Initial partition at the coarsest level.
	coarsest := levels[len(levels)-1].graph
	parts := growInitialPartition(coarsest, cfg, rng)
	refine(coarsest, parts, cfg, rng)

	// Uncoarsening phase: project and refine at every level.
	for i := len(levels) - 2; i >= 0; i-- {
		fine := levels[i]
		finer := make([]int32, fine.graph.NumVertices())
		for v := range finer {
			finer[v] = parts[fine.cmap[v]]
		}
		parts = finer
		refine(fine.graph, parts, cfg, rng)
	}

	return &Result{
		Parts:     parts,
		EdgeCut:   edgeCut(g, parts),
		NumLevels: len(levels),
	}, nil
}

type level struct {
	graph *Graph
	cmap  []int32 // fine vertex -> coarse vertex
}

// edgeCut sums the weight of edges whose endpoints land in different parts.
// Each undirected edge is stored twice in the CSR, hence the halving.
func edgeCut(g *Graph, parts []int32) float64 {
	var cut float64
	for v := int32(0); int(v) < g.NumVertices(); v++ {
		for i := g.XAdj[v]; i < g.XAdj[v+1]; i++ {
			if parts[v] != parts[g.AdjNCY[i]] {
				cut += g.AdjWgt[i]
			}
		}
	}
	return cut / 2
}

// balance tracks per-part node weight and edge load against their caps.
type balance struct {
	partWeight []int64
	partLoad   []float64
	maxWeight  int64
	maxLoad    float64 // 0 means unconstrained
}

func newBalance(g *Graph, parts []int32, cfg Config) *balance {
	b := &balance{
		partWeight: make([]int64, cfg.NumParts),
		partLoad:   make([]float64, cfg.NumParts),
	}
	var totalLoad float64
	for v := int32(0); int(v) < g.NumVertices(); v++ {
		load := g.edgeLoad(v)
		b.partWeight[parts[v]] += int64(g.vertexWeight(v))
		b.partLoad[parts[v]] += load
		totalLoad += load
	}
	ideal := float64(g.totalVertexWeight()) / float64(cfg.NumParts)
	b.maxWeight = int64(math.Ceil(cfg.ImbalanceTolerance * ideal))
	if cfg.NodeEdgeImbalanceRatio > 1 {
		b.maxLoad = cfg.NodeEdgeImbalanceRatio * totalLoad / float64(cfg.NumParts)
	}
	return b
}

// admits reports whether moving a vertex of the given weight and edge load
// into part dest keeps dest within its caps.
func (b *balance) admits(dest int32, weight int32, load float64) bool {
	if b.partWeight[dest]+int64(weight) > b.maxWeight {
		return false
	}
	if b.maxLoad > 0 && b.partLoad[dest]+load > b.maxLoad {
		return false
	}
	return true
}

func (b *balance) move(from, to int32, weight int32, load float64) {
	b.partWeight[from] -= int64(weight)
	b.partWeight[to] += int64(weight)
	b.partLoad[from] -= load
	b.partLoad[to] += load
}
