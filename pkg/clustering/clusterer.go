// Package clustering partitions a graph restricted to a visible node set
// into balanced clusters and derives the static per-batch node and edge
// maxima that downstream batch generation pads to. Clustering runs once per
// dataset split; results can be cached on disk and reloaded verbatim.
package clustering

import (
	"math"

	"go.uber.org/zap"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/graph"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/partition"
)

// Config contains all parameters of a clustering run. NumClusters and
// MaxNodesPerBatch are mutually exclusive sizing methods: exactly one must
// be set.
type Config struct {
	// NumClusters is the target cluster count.
	NumClusters int `json:"num_clusters"`

	// MaxNodesPerBatch, when set instead of NumClusters, fixes the padded
	// batch size directly and derives the cluster count from it.
	MaxNodesPerBatch int `json:"max_nodes_per_batch"`

	// ClustersPerBatch is how many clusters are merged into one batch. The
	// padded maxima are sized for this many clusters, not one.
	ClustersPerBatch int `json:"clusters_per_batch"`

	// DatasetName keys the clustering cache (append a split suffix when
	// clustering the same dataset for training and test).
	DatasetName string `json:"dataset_name"`

	// CacheDir enables the on-disk cache when non-empty.
	CacheDir        string `json:"cache_dir"`
	RegenerateCache bool   `json:"regenerate_cache"`
	SaveCache       bool   `json:"save_cache"`

	// InterClusterRatio reserves extra edge budget for cross-cluster edges
	// sampled when multiple clusters share a batch.
	InterClusterRatio float64 `json:"inter_cluster_ratio"`

	MethodMaxNodes PaddingMethod `json:"method_max_nodes"`
	MethodMaxEdges PaddingMethod `json:"method_max_edges"`

	// NodeEdgeImbalanceRatio trades node-count balance against edge-count
	// balance across clusters. Zero keeps the plain node balance.
	NodeEdgeImbalanceRatio float64 `json:"node_edge_imbalance_ratio"`

	Seed int64 `json:"seed"`
}

// Clustering is the immutable result of a clustering run.
type Clustering struct {
	NumClusters      int       `json:"num_clusters"`
	ClustersPerBatch int       `json:"clusters_per_batch"`
	Assignment       []int32   `json:"assignment"` // node -> cluster id, -1 for non-visible
	Clusters         [][]int32 `json:"clusters"`   // cluster id -> node ids, ascending
	NodeCounts       []int     `json:"node_counts"`
	EdgeCounts       []int     `json:"edge_counts"` // intra-visible, intra-cluster
	MaxNodesPerBatch int       `json:"max_nodes_per_batch"`
	MaxEdgesPerBatch int       `json:"max_edges_per_batch"`
	EdgeCut          float64   `json:"edge_cut"`
}

// Clusterer runs the clustering for one dataset split.
type Clusterer struct {
	graph   *graph.Graph
	visible []int32
	cfg     Config
	log     *zap.Logger
}

// NewClusterer validates the configuration and visible node set. All
// configuration errors surface here, before any partitioning work starts.
func NewClusterer(g *graph.Graph, visible []int32, cfg Config, log *zap.Logger) (*Clusterer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.NumClusters > 0 && cfg.MaxNodesPerBatch > 0 {
		return nil, apperrors.NewConfiguration(
			"num_clusters and max_nodes_per_batch are mutually exclusive sizing methods; supply exactly one")
	}
	if cfg.NumClusters <= 0 && cfg.MaxNodesPerBatch <= 0 {
		return nil, apperrors.NewConfiguration(
			"one of num_clusters or max_nodes_per_batch is required")
	}
	if cfg.ClustersPerBatch <= 0 {
		cfg.ClustersPerBatch = 1
	}
	if cfg.InterClusterRatio < 0 || cfg.InterClusterRatio > 1 {
		return nil, apperrors.NewConfiguration(
			"inter_cluster_ratio must be in [0, 1], got %g", cfg.InterClusterRatio)
	}
	var err error
	if cfg.MethodMaxNodes, err = ParsePaddingMethod(string(cfg.MethodMaxNodes)); err != nil {
		return nil, err
	}
	if cfg.MethodMaxEdges, err = ParsePaddingMethod(string(cfg.MethodMaxEdges)); err != nil {
		return nil, err
	}
	if len(visible) == 0 {
		return nil, apperrors.NewDataIntegrity("visible node set is empty")
	}
	seen := make(map[int32]bool, len(visible))
	for _, v := range visible {
		if v < 0 || int(v) >= g.NumNodes {
			return nil, apperrors.NewDataIntegrity(
				"visible node %d outside [0, %d)", v, g.NumNodes).
				WithDetails(map[string]interface{}{"node_index": v})
		}
		if seen[v] {
			return nil, apperrors.NewDataIntegrity("visible node %d listed twice", v)
		}
		seen[v] = true
	}
	return &Clusterer{graph: g, visible: visible, cfg: cfg, log: log}, nil
}

// numClusters resolves the cluster count from whichever sizing method was
// configured.
func (c *Clusterer) numClusters() (int, error) {
	if c.cfg.NumClusters > 0 {
		return c.cfg.NumClusters, nil
	}
	perCluster := c.cfg.MaxNodesPerBatch / c.cfg.ClustersPerBatch
	if perCluster < 1 {
		return 0, apperrors.NewConfiguration(
			"max_nodes_per_batch %d too small for %d clusters per batch",
			c.cfg.MaxNodesPerBatch, c.cfg.ClustersPerBatch)
	}
	n := (len(c.visible) + perCluster - 1) / perCluster
	if n < 1 {
		n = 1
	}
	return n, nil
}

// ClusterGraph partitions the visible subgraph and computes per-cluster
// statistics and padded maxima. A valid cache entry short-circuits the
// whole computation; a stale one degrades to recomputation with a warning.
func (c *Clusterer) ClusterGraph() (*Clustering, error) {
	numClusters, err := c.numClusters()
	if err != nil {
		return nil, err
	}
	if numClusters > len(c.visible) {
		return nil, apperrors.NewConfiguration(
			"requested %d clusters for %d visible nodes", numClusters, len(c.visible))
	}

	if c.cfg.CacheDir != "" && !c.cfg.RegenerateCache {
		cached, err := c.loadCache(numClusters)
		switch {
		case err == nil:
			c.log.Info("loaded clustering from cache",
				zap.String("dataset", c.cfg.DatasetName),
				zap.Int("num_clusters", cached.NumClusters))
			return cached, nil
		case apperrors.IsCacheMismatch(err):
			c.log.Warn("clustering cache parameters differ, recomputing", zap.Error(err))
		}
	}

	clustering, err := c.compute(numClusters)
	if err != nil {
		return nil, err
	}

	if c.cfg.CacheDir != "" && c.cfg.SaveCache {
		if err := c.saveCache(clustering); err != nil {
			c.log.Warn("failed to save clustering cache", zap.Error(err))
		}
	}

	c.log.Info("clustering complete",
		zap.String("dataset", c.cfg.DatasetName),
		zap.Int("num_clusters", clustering.NumClusters),
		zap.Int("max_nodes_per_batch", clustering.MaxNodesPerBatch),
		zap.Int("max_edges_per_batch", clustering.MaxEdgesPerBatch),
		zap.Float64("edge_cut", clustering.EdgeCut))
	return clustering, nil
}

func (c *Clusterer) compute(numClusters int) (*Clustering, error) {
	assignment := make([]int32, c.graph.NumNodes)
	for i := range assignment {
		assignment[i] = -1
	}

	var edgeCut float64
	if numClusters == 1 {
		// Whole-graph evaluation path: no partitioning, zero edge cut.
		for _, v := range c.visible {
			assignment[v] = 0
		}
	} else {
		xadj, adjncy, adjwgt, nodeOf := c.graph.UndirectedAdjacency(c.visible)
		pcfg := partition.DefaultConfig(numClusters, c.cfg.Seed)
		pcfg.NodeEdgeImbalanceRatio = c.cfg.NodeEdgeImbalanceRatio
		result, err := partition.Partition(
			&partition.Graph{XAdj: xadj, AdjNCY: adjncy, AdjWgt: adjwgt}, pcfg)
		if err != nil {
			return nil, err
		}
		for local, part := range result.Parts {
			assignment[nodeOf[local]] = part
		}
		edgeCut = result.EdgeCut
	}

	clusters := make([][]int32, numClusters)
	for v := int32(0); int(v) < c.graph.NumNodes; v++ {
		if p := assignment[v]; p >= 0 {
			clusters[p] = append(clusters[p], v)
		}
	}
	nodeCounts := make([]int, numClusters)
	for i, nodes := range clusters {
		nodeCounts[i] = len(nodes)
	}

	edgeCounts := make([]int, numClusters)
	for _, e := range c.graph.Edges {
		ps, pt := assignment[e.Source], assignment[e.Target]
		if ps >= 0 && ps == pt {
			edgeCounts[ps]++
		}
	}

	clustering := &Clustering{
		NumClusters:      numClusters,
		ClustersPerBatch: c.cfg.ClustersPerBatch,
		Assignment:       assignment,
		Clusters:         clusters,
		NodeCounts:       nodeCounts,
		EdgeCounts:       edgeCounts,
		EdgeCut:          edgeCut,
	}
	c.applyPaddingPolicy(clustering)
	return clustering, nil
}

// applyPaddingPolicy freezes the static batch maxima: sized for a full
// clusters-per-batch group, with extra edge budget for the cross-cluster
// edges sampled when clusters are combined.
func (c *Clusterer) applyPaddingPolicy(cl *Clustering) {
	if c.cfg.MaxNodesPerBatch > 0 {
		cl.MaxNodesPerBatch = c.cfg.MaxNodesPerBatch
	} else {
		cl.MaxNodesPerBatch = c.cfg.MethodMaxNodes.BatchMax(cl.NodeCounts, cl.ClustersPerBatch)
	}
	maxEdges := c.cfg.MethodMaxEdges.BatchMax(cl.EdgeCounts, cl.ClustersPerBatch)
	if cl.ClustersPerBatch > 1 && c.cfg.InterClusterRatio > 0 {
		maxEdges = int(math.Ceil(float64(maxEdges) * (1 + c.cfg.InterClusterRatio)))
	}
	if maxEdges < 1 {
		maxEdges = 1
	}
	cl.MaxEdgesPerBatch = maxEdges
}
