package clustering

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/clustergraph/cluster-gcn-pipeline/pkg/graph"
)

// Distribution summarizes a set of per-cluster counts.
type Distribution struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func newDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	d := Distribution{Min: values[0], Max: values[0], Mean: stat.Mean(values, nil)}
	for _, v := range values {
		if v < d.Min {
			d.Min = v
		}
		if v > d.Max {
			d.Max = v
		}
	}
	if len(values) > 1 {
		d.Std = stat.StdDev(values, nil)
	}
	return d
}

// Statistics is a read-only analysis of a completed clustering: how many
// edges survive the cut and how evenly sized the clusters are. The edge
// retention ratio is the accuracy-relevant signal; a low value means the
// partitioning discarded much of the graph structure.
type Statistics struct {
	NumClusters   int          `json:"num_clusters"`
	EdgeRetention float64      `json:"edge_retention"`
	ClusterNodes  Distribution `json:"cluster_nodes"`
	ClusterEdges  Distribution `json:"cluster_edges"`
	BatchNodes    Distribution `json:"batch_nodes"`
	BatchEdges    Distribution `json:"batch_edges"`
}

// ComputeStatistics analyzes a clustering against the graph it was derived
// from. Inputs are not mutated. Batch distributions are estimated over
// contiguous groups of clustersPerBatch clusters.
func ComputeStatistics(g *graph.Graph, cl *Clustering, clustersPerBatch int) *Statistics {
	if clustersPerBatch <= 0 {
		clustersPerBatch = 1
	}

	totalVisible, retained := 0, 0
	for _, e := range g.Edges {
		ps, pt := cl.Assignment[e.Source], cl.Assignment[e.Target]
		if ps < 0 || pt < 0 {
			continue
		}
		totalVisible++
		if ps == pt {
			retained++
		}
	}
	retention := 1.0
	if totalVisible > 0 {
		retention = float64(retained) / float64(totalVisible)
	}

	nodeValues := make([]float64, cl.NumClusters)
	edgeValues := make([]float64, cl.NumClusters)
	for i := 0; i < cl.NumClusters; i++ {
		nodeValues[i] = float64(cl.NodeCounts[i])
		edgeValues[i] = float64(cl.EdgeCounts[i])
	}

	var groupNodes, groupEdges []float64
	for start := 0; start < cl.NumClusters; start += clustersPerBatch {
		end := start + clustersPerBatch
		if end > cl.NumClusters {
			end = cl.NumClusters
		}
		var n, e float64
		for i := start; i < end; i++ {
			n += nodeValues[i]
			e += edgeValues[i]
		}
		groupNodes = append(groupNodes, n)
		groupEdges = append(groupEdges, e)
	}

	return &Statistics{
		NumClusters:   cl.NumClusters,
		EdgeRetention: retention,
		ClusterNodes:  newDistribution(nodeValues),
		ClusterEdges:  newDistribution(edgeValues),
		BatchNodes:    newDistribution(groupNodes),
		BatchEdges:    newDistribution(groupEdges),
	}
}

// Report emits the statistics through the logger so operators can detect
// excessive information loss from partitioning or padding.
func (s *Statistics) Report(log *zap.Logger) {
	if log == nil {
		return
	}
	log.Info("clustering statistics",
		zap.Int("num_clusters", s.NumClusters),
		zap.Float64("edge_retention", s.EdgeRetention),
		zap.Float64("cluster_nodes_min", s.ClusterNodes.Min),
		zap.Float64("cluster_nodes_max", s.ClusterNodes.Max),
		zap.Float64("cluster_nodes_mean", s.ClusterNodes.Mean),
		zap.Float64("cluster_nodes_std", s.ClusterNodes.Std),
		zap.Float64("cluster_edges_min", s.ClusterEdges.Min),
		zap.Float64("cluster_edges_max", s.ClusterEdges.Max),
		zap.Float64("cluster_edges_mean", s.ClusterEdges.Mean),
		zap.Float64("cluster_edges_std", s.ClusterEdges.Std),
		zap.Float64("batch_nodes_mean", s.BatchNodes.Mean),
		zap.Float64("batch_edges_mean", s.BatchEdges.Mean))
}
