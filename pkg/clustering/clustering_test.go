package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/graph"
)

// twoCommunityGraph builds 10 nodes in two 5-cliques joined by one edge,
// stored as a directed citation-style graph.
func twoCommunityGraph(t *testing.T) *graph.Graph {
	t.Helper()
	var edges []graph.Edge
	for c := 0; c < 2; c++ {
		base := int32(c * 5)
		for i := int32(0); i < 5; i++ {
			for j := i + 1; j < 5; j++ {
				edges = append(edges, graph.Edge{Source: base + i, Target: base + j})
			}
		}
	}
	edges = append(edges, graph.Edge{Source: 4, Target: 5})
	g, err := graph.New(10, graph.Directed, edges, nil)
	require.NoError(t, err)
	return g
}

func allNodes(n int) []int32 {
	nodes := make([]int32, n)
	for i := range nodes {
		nodes[i] = int32(i)
	}
	return nodes
}

func baseConfig() Config {
	return Config{
		NumClusters:      2,
		ClustersPerBatch: 1,
		DatasetName:      "toy",
		MethodMaxNodes:   PaddingUpperBound,
		MethodMaxEdges:   PaddingUpperBound,
		Seed:             42,
	}
}

func TestNewClustererSizingValidation(t *testing.T) {
	g := twoCommunityGraph(t)

	t.Run("BothSizingMethods", func(t *testing.T) {
		cfg := baseConfig()
		cfg.MaxNodesPerBatch = 5
		_, err := NewClusterer(g, allNodes(10), cfg, zap.NewNop())
		require.Error(t, err)
		assert.True(t, apperrors.IsConfiguration(err))
	})

	t.Run("NeitherSizingMethod", func(t *testing.T) {
		cfg := baseConfig()
		cfg.NumClusters = 0
		_, err := NewClusterer(g, allNodes(10), cfg, zap.NewNop())
		require.Error(t, err)
		assert.True(t, apperrors.IsConfiguration(err))
	})

	t.Run("InvalidVisibleNode", func(t *testing.T) {
		_, err := NewClusterer(g, []int32{0, 1, 12}, baseConfig(), zap.NewNop())
		require.Error(t, err)
		assert.True(t, apperrors.IsDataIntegrity(err))
	})

	t.Run("UnknownPaddingMethod", func(t *testing.T) {
		cfg := baseConfig()
		cfg.MethodMaxNodes = "median"
		_, err := NewClusterer(g, allNodes(10), cfg, zap.NewNop())
		require.Error(t, err)
		assert.True(t, apperrors.IsConfiguration(err))
	})
}

func TestClusterGraphAssignsEveryVisibleNode(t *testing.T) {
	g := twoCommunityGraph(t)
	visible := []int32{0, 1, 2, 3, 4, 5, 6, 7}
	clusterer, err := NewClusterer(g, visible, baseConfig(), zap.NewNop())
	require.NoError(t, err)
	cl, err := clusterer.ClusterGraph()
	require.NoError(t, err)

	for _, v := range visible {
		assert.GreaterOrEqual(t, cl.Assignment[v], int32(0))
		assert.Less(t, cl.Assignment[v], int32(2))
	}
	// Non-visible nodes stay unassigned.
	assert.Equal(t, int32(-1), cl.Assignment[8])
	assert.Equal(t, int32(-1), cl.Assignment[9])
}

func TestClusterGraphDeterminism(t *testing.T) {
	run := func() *Clustering {
		clusterer, err := NewClusterer(twoCommunityGraph(t), allNodes(10), baseConfig(), zap.NewNop())
		require.NoError(t, err)
		cl, err := clusterer.ClusterGraph()
		require.NoError(t, err)
		return cl
	}
	assert.Equal(t, run().Assignment, run().Assignment)
}

func TestClusterGraphSingleCluster(t *testing.T) {
	g := twoCommunityGraph(t)
	cfg := baseConfig()
	cfg.NumClusters = 1
	clusterer, err := NewClusterer(g, allNodes(10), cfg, zap.NewNop())
	require.NoError(t, err)
	cl, err := clusterer.ClusterGraph()
	require.NoError(t, err)

	assert.Equal(t, 1, cl.NumClusters)
	for v := int32(0); v < 10; v++ {
		assert.Equal(t, int32(0), cl.Assignment[v])
	}
	assert.Zero(t, cl.EdgeCut)

	stats := ComputeStatistics(g, cl, 1)
	assert.Equal(t, 1.0, stats.EdgeRetention, "single cluster cuts no edges")
}

// The 10-node example: two clusters under upper_bound must account for all
// nodes, and the padded maximum equals the larger cluster.
func TestClusterGraphTwoClusterExample(t *testing.T) {
	g := twoCommunityGraph(t)
	clusterer, err := NewClusterer(g, allNodes(10), baseConfig(), zap.NewNop())
	require.NoError(t, err)
	cl, err := clusterer.ClusterGraph()
	require.NoError(t, err)

	total := 0
	largest := 0
	for _, n := range cl.NodeCounts {
		total += n
		if n > largest {
			largest = n
		}
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, largest, cl.MaxNodesPerBatch)

	stats := ComputeStatistics(g, cl, 1)
	assert.Equal(t, 10.0, stats.ClusterNodes.Mean*float64(cl.NumClusters))
	// Only the bridge edge can be cut.
	assert.GreaterOrEqual(t, stats.EdgeRetention, 40.0/41.0)
}

func TestClusterGraphDerivedClusterCount(t *testing.T) {
	g := twoCommunityGraph(t)
	cfg := baseConfig()
	cfg.NumClusters = 0
	cfg.MaxNodesPerBatch = 5
	clusterer, err := NewClusterer(g, allNodes(10), cfg, zap.NewNop())
	require.NoError(t, err)
	cl, err := clusterer.ClusterGraph()
	require.NoError(t, err)

	assert.Equal(t, 2, cl.NumClusters)
	// The configured value is frozen, not recomputed from cluster sizes.
	assert.Equal(t, 5, cl.MaxNodesPerBatch)
}

func TestClusteringCacheRoundTrip(t *testing.T) {
	g := twoCommunityGraph(t)
	cacheDir := t.TempDir()

	cfg := baseConfig()
	cfg.CacheDir = cacheDir
	cfg.SaveCache = true

	first, err := NewClusterer(g, allNodes(10), cfg, zap.NewNop())
	require.NoError(t, err)
	cl1, err := first.ClusterGraph()
	require.NoError(t, err)

	// Same parameters: the cached assignment is reloaded verbatim.
	second, err := NewClusterer(g, allNodes(10), cfg, zap.NewNop())
	require.NoError(t, err)
	cl2, err := second.ClusterGraph()
	require.NoError(t, err)
	assert.Equal(t, cl1.Assignment, cl2.Assignment)
	assert.Equal(t, cl1.MaxNodesPerBatch, cl2.MaxNodesPerBatch)

	// Different seed: parameters no longer match, recomputation succeeds.
	cfg.Seed = 7
	third, err := NewClusterer(g, allNodes(10), cfg, zap.NewNop())
	require.NoError(t, err)
	cl3, err := third.ClusterGraph()
	require.NoError(t, err)
	require.Len(t, cl3.Assignment, 10)

	// Regenerate flag bypasses the cache entirely.
	cfg.RegenerateCache = true
	fourth, err := NewClusterer(g, allNodes(10), cfg, zap.NewNop())
	require.NoError(t, err)
	_, err = fourth.ClusterGraph()
	require.NoError(t, err)
}

func TestPaddingMethodBatchMax(t *testing.T) {
	counts := []int{3, 5, 4, 8}

	t.Run("UpperBoundSingle", func(t *testing.T) {
		assert.Equal(t, 8, PaddingUpperBound.BatchMax(counts, 1))
	})
	t.Run("UpperBoundGroup", func(t *testing.T) {
		// Sum of the two largest clusters.
		assert.Equal(t, 13, PaddingUpperBound.BatchMax(counts, 2))
	})
	t.Run("Average", func(t *testing.T) {
		assert.Equal(t, 5, PaddingAverage.BatchMax(counts, 1))
		assert.Equal(t, 10, PaddingAverage.BatchMax(counts, 2))
	})
	t.Run("AveragePlusStd", func(t *testing.T) {
		got := PaddingAveragePlusStd.BatchMax(counts, 1)
		assert.GreaterOrEqual(t, got, PaddingAverage.BatchMax(counts, 1))
		assert.LessOrEqual(t, got, PaddingUpperBound.BatchMax(counts, 1))
	})
	t.Run("GroupLargerThanClusterCount", func(t *testing.T) {
		assert.Equal(t, 20, PaddingUpperBound.BatchMax(counts, 10))
	})
	t.Run("ParseDefaultsToAverage", func(t *testing.T) {
		m, err := ParsePaddingMethod("")
		require.NoError(t, err)
		assert.Equal(t, PaddingAverage, m)
	})
}
