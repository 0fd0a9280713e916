package dataset

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/graph"
)

// CachingLoader wraps a Loader with a binary on-disk cache so expensive
// parsing runs once per dataset. A cache that names a different dataset is
// treated as a mismatch and recomputed with a warning.
type CachingLoader struct {
	Loader Loader
	Dir    string
	Name   string

	Regenerate bool
	Save       bool

	Log *zap.Logger
}

// cachedDataset is the gob-friendly flattening of a Dataset. The feature
// matrix travels as its binary encoding since mat.Dense exposes no fields
// gob could walk.
type cachedDataset struct {
	Name       string
	NumNodes   int
	Type       graph.Type
	Edges      []graph.Edge
	Weights    []float64
	Features   []byte
	Labels     []int32
	NumClasses int
	Splits     map[Split][]int32
}

func (c *CachingLoader) path() string {
	return filepath.Join(c.Dir, c.Name+".dataset.gob")
}

func (c *CachingLoader) Load() (*Dataset, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	if !c.Regenerate {
		ds, err := c.loadCache()
		switch {
		case err == nil:
			log.Info("dataset cache hit", zap.String("dataset", c.Name), zap.String("path", c.path()))
			return ds, nil
		case apperrors.IsCacheMismatch(err):
			log.Warn("dataset cache unusable, reloading", zap.String("dataset", c.Name), zap.Error(err))
		case !os.IsNotExist(err):
			log.Warn("dataset cache unreadable, reloading", zap.String("dataset", c.Name), zap.Error(err))
		}
	}

	ds, err := c.Loader.Load()
	if err != nil {
		return nil, err
	}
	if c.Save {
		if err := c.saveCache(ds); err != nil {
			return nil, err
		}
		log.Info("dataset cache written", zap.String("path", c.path()))
	}
	return ds, nil
}

func (c *CachingLoader) loadCache() (*Dataset, error) {
	f, err := os.Open(c.path())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cached cachedDataset
	if err := gob.NewDecoder(f).Decode(&cached); err != nil {
		return nil, apperrors.NewCacheMismatch("decoding dataset cache %s: %v", c.path(), err)
	}
	if cached.Name != c.Name {
		return nil, apperrors.NewCacheMismatch(
			"dataset cache %s holds dataset %q, want %q", c.path(), cached.Name, c.Name)
	}

	g, err := graph.New(cached.NumNodes, cached.Type, cached.Edges, cached.Weights)
	if err != nil {
		return nil, apperrors.NewCacheMismatch("dataset cache %s holds a broken graph: %v", c.path(), err)
	}
	features := &mat.Dense{}
	if err := features.UnmarshalBinary(cached.Features); err != nil {
		return nil, apperrors.NewCacheMismatch("dataset cache %s holds broken features: %v", c.path(), err)
	}

	ds := &Dataset{
		Name:       c.Name,
		Graph:      g,
		Features:   features,
		Labels:     cached.Labels,
		NumClasses: cached.NumClasses,
		Splits:     cached.Splits,
	}
	if err := ds.Validate(); err != nil {
		return nil, apperrors.NewCacheMismatch("dataset cache %s fails validation: %v", c.path(), err)
	}
	return ds, nil
}

func (c *CachingLoader) saveCache(ds *Dataset) error {
	featureBin, err := ds.Features.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}
	cached := cachedDataset{
		Name:       c.Name,
		NumNodes:   ds.Graph.NumNodes,
		Type:       ds.Graph.Type,
		Edges:      ds.Graph.Edges,
		Weights:    ds.Graph.Weights,
		Features:   featureBin,
		Labels:     ds.Labels,
		NumClasses: ds.NumClasses,
		Splits:     ds.Splits,
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory %s: %w", c.Dir, err)
	}
	f, err := os.Create(c.path())
	if err != nil {
		return fmt.Errorf("creating dataset cache %s: %w", c.path(), err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(&cached); err != nil {
		return fmt.Errorf("writing dataset cache %s: %w", c.path(), err)
	}
	return nil
}
