package partition

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
)

// buildCSR converts an undirected edge list into the symmetric CSR layout
// the partitioner expects.
func buildCSR(n int, edges [][2]int32) *Graph {
	neighbors := make([][]int32, n)
	for _, e := range edges {
		neighbors[e[0]] = append(neighbors[e[0]], e[1])
		neighbors[e[1]] = append(neighbors[e[1]], e[0])
	}
	xadj := make([]int32, n+1)
	for i, nbrs := range neighbors {
		xadj[i+1] = xadj[i] + int32(len(nbrs))
	}
	adjncy := make([]int32, xadj[n])
	adjwgt := make([]float64, xadj[n])
	pos := 0
	for _, nbrs := range neighbors {
		for _, u := range nbrs {
			adjncy[pos] = u
			adjwgt[pos] = 1.0
			pos++
		}
	}
	return &Graph{XAdj: xadj, AdjNCY: adjncy, AdjWgt: adjwgt}
}

// barbell builds two k-cliques joined by a single bridge edge.
func barbell(cliqueSize int) *Graph {
	var edges [][2]int32
	for c := 0; c < 2; c++ {
		base := int32(c * cliqueSize)
		for i := int32(0); i < int32(cliqueSize); i++ {
			for j := i + 1; j < int32(cliqueSize); j++ {
				edges = append(edges, [2]int32{base + i, base + j})
			}
		}
	}
	edges = append(edges, [2]int32{int32(cliqueSize - 1), int32(cliqueSize)})
	return buildCSR(2*cliqueSize, edges)
}

// randomGraph builds a connected random graph with extra edges.
func randomGraph(n, extraEdges int, seed int64) *Graph {
	rng := rand.New(rand.NewSource(seed))
	var edges [][2]int32
	for i := int32(1); i < int32(n); i++ {
		edges = append(edges, [2]int32{int32(rng.Intn(int(i))), i})
	}
	for e := 0; e < extraEdges; e++ {
		u := int32(rng.Intn(n))
		v := int32(rng.Intn(n))
		if u != v {
			edges = append(edges, [2]int32{u, v})
		}
	}
	return buildCSR(n, edges)
}

func TestPartitionAssignsEveryVertex(t *testing.T) {
	g := randomGraph(200, 400, 7)
	result, err := Partition(g, DefaultConfig(8, 42))
	require.NoError(t, err)
	require.Len(t, result.Parts, 200)

	seen := make([]int, 8)
	for v, p := range result.Parts {
		require.GreaterOrEqual(t, p, int32(0), "vertex %d unassigned", v)
		require.Less(t, p, int32(8), "vertex %d out of range", v)
		seen[p]++
	}
	for p, count := range seen {
		assert.Positive(t, count, "part %d is empty", p)
	}
}

func TestPartitionDeterminism(t *testing.T) {
	g1 := randomGraph(150, 300, 3)
	g2 := randomGraph(150, 300, 3)
	cfg := DefaultConfig(6, 99)

	r1, err := Partition(g1, cfg)
	require.NoError(t, err)
	r2, err := Partition(g2, cfg)
	require.NoError(t, err)

	assert.Equal(t, r1.Parts, r2.Parts, "same graph and seed must give identical parts")
	assert.Equal(t, r1.EdgeCut, r2.EdgeCut)
}

func TestPartitionSinglePart(t *testing.T) {
	g := randomGraph(50, 100, 1)
	result, err := Partition(g, DefaultConfig(1, 42))
	require.NoError(t, err)
	for _, p := range result.Parts {
		assert.Equal(t, int32(0), p)
	}
	assert.Zero(t, result.EdgeCut)
}

func TestPartitionTooManyParts(t *testing.T) {
	g := randomGraph(10, 5, 1)
	_, err := Partition(g, DefaultConfig(11, 42))
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestPartitionBarbellFindsBridge(t *testing.T) {
	g := barbell(8)
	result, err := Partition(g, DefaultConfig(2, 42))
	require.NoError(t, err)

	sizes := make(map[int32]int)
	for _, p := range result.Parts {
		sizes[p]++
	}
	assert.Equal(t, 8, sizes[0])
	assert.Equal(t, 8, sizes[1])
	// The only optimal cut is the bridge edge.
	assert.Equal(t, 1.0, result.EdgeCut)
}

func TestPartitionBalanceWithinTolerance(t *testing.T) {
	g := randomGraph(400, 1200, 11)
	cfg := DefaultConfig(4, 42)
	result, err := Partition(g, cfg)
	require.NoError(t, err)

	sizes := make([]int, 4)
	for _, p := range result.Parts {
		sizes[p]++
	}
	ideal := 400.0 / 4.0
	for p, size := range sizes {
		assert.Positive(t, size, "part %d empty", p)
		assert.LessOrEqual(t, float64(size), 2*ideal, "part %d grossly unbalanced", p)
	}
}

func TestPartitionEdgeBalanceConstraint(t *testing.T) {
	g := randomGraph(300, 900, 5)
	cfg := DefaultConfig(4, 42)
	cfg.NodeEdgeImbalanceRatio = 1.5
	result, err := Partition(g, cfg)
	require.NoError(t, err)
	require.Len(t, result.Parts, 300)

	var totalLoad float64
	partLoad := make([]float64, 4)
	for v := int32(0); int(v) < g.NumVertices(); v++ {
		load := g.edgeLoad(v)
		totalLoad += load
		partLoad[result.Parts[v]] += load
	}
	// Refinement respects the edge-load cap for every move it makes, so the
	// final loads should not drift far beyond it.
	loadCap := 1.5 * totalLoad / 4
	for p, load := range partLoad {
		assert.LessOrEqual(t, load, loadCap*1.5, "part %d edge load far over cap", p)
	}
}
