package clustering

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
)

// cacheParams is the cache key: dataset name plus every parameter that
// influences the partitioning. A cached clustering is only reused when all
// of them match bit for bit.
type cacheParams struct {
	DatasetName            string  `json:"dataset_name"`
	NumClusters            int     `json:"num_clusters"`
	MaxNodesPerBatch       int     `json:"max_nodes_per_batch"`
	ClustersPerBatch       int     `json:"clusters_per_batch"`
	InterClusterRatio      float64 `json:"inter_cluster_ratio"`
	MethodMaxNodes         string  `json:"method_max_nodes"`
	MethodMaxEdges         string  `json:"method_max_edges"`
	NodeEdgeImbalanceRatio float64 `json:"node_edge_imbalance_ratio"`
	Seed                   int64   `json:"seed"`
	NumVisibleNodes        int     `json:"num_visible_nodes"`
}

type cacheFile struct {
	Params     cacheParams `json:"params"`
	Clustering *Clustering `json:"clustering"`
}

func (c *Clusterer) cacheParams(numClusters int) cacheParams {
	return cacheParams{
		DatasetName:            c.cfg.DatasetName,
		NumClusters:            numClusters,
		MaxNodesPerBatch:       c.cfg.MaxNodesPerBatch,
		ClustersPerBatch:       c.cfg.ClustersPerBatch,
		InterClusterRatio:      c.cfg.InterClusterRatio,
		MethodMaxNodes:         string(c.cfg.MethodMaxNodes),
		MethodMaxEdges:         string(c.cfg.MethodMaxEdges),
		NodeEdgeImbalanceRatio: c.cfg.NodeEdgeImbalanceRatio,
		Seed:                   c.cfg.Seed,
		NumVisibleNodes:        len(c.visible),
	}
}

func (c *Clusterer) cachePath() string {
	return filepath.Join(c.cfg.CacheDir, fmt.Sprintf("%s.clustering.json", c.cfg.DatasetName))
}

// loadCache returns the cached clustering, a cache mismatch error when the
// file exists but was produced with different parameters, or the
// underlying I/O error (typically fs.ErrNotExist).
func (c *Clusterer) loadCache(numClusters int) (*Clustering, error) {
	data, err := os.ReadFile(c.cachePath())
	if err != nil {
		return nil, err
	}
	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, apperrors.NewCacheMismatch("clustering cache unreadable").WithCause(err)
	}
	want := c.cacheParams(numClusters)
	if file.Params != want {
		return nil, apperrors.NewCacheMismatch(
			"clustering cache for %q was produced with different parameters", c.cfg.DatasetName).
			WithDetails(map[string]interface{}{
				"cached": file.Params,
				"wanted": want,
			})
	}
	if file.Clustering == nil || len(file.Clustering.Assignment) != c.graph.NumNodes {
		return nil, apperrors.NewCacheMismatch(
			"clustering cache for %q does not match the graph", c.cfg.DatasetName)
	}
	return file.Clustering, nil
}

func (c *Clusterer) saveCache(cl *Clustering) error {
	if err := os.MkdirAll(c.cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.Marshal(cacheFile{Params: c.cacheParams(cl.NumClusters), Clustering: cl})
	if err != nil {
		return fmt.Errorf("failed to encode clustering cache: %w", err)
	}
	if err := os.WriteFile(c.cachePath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write clustering cache: %w", err)
	}
	return nil
}
