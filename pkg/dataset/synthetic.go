package dataset

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/graph"
)

// SyntheticConfig describes a planted-partition graph: dense communities
// with a few crossing edges, community id as the node label, and features
// that are a noisy one-hot encoding of the label.
type SyntheticConfig struct {
	NumCommunities    int
	NodesPerCommunity int
	NumFeatures       int

	// IntraDegree is how many in-community neighbors each node links to,
	// InterEdges how many crossing edges the whole graph gets.
	IntraDegree int
	InterEdges  int

	Seed int64
}

// Synthetic is a Loader producing a deterministic random dataset.
type Synthetic struct {
	Config SyntheticConfig
}

func (s *Synthetic) Load() (*Dataset, error) {
	cfg := s.Config
	if cfg.NumCommunities <= 0 || cfg.NodesPerCommunity <= 0 {
		return nil, apperrors.NewConfiguration(
			"synthetic dataset needs positive community count and size, got %d x %d",
			cfg.NumCommunities, cfg.NodesPerCommunity)
	}
	if cfg.NumFeatures <= 0 {
		cfg.NumFeatures = cfg.NumCommunities
	}
	if cfg.IntraDegree <= 0 {
		cfg.IntraDegree = 2
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	n := cfg.NumCommunities * cfg.NodesPerCommunity

	var edges []graph.Edge
	for c := 0; c < cfg.NumCommunities; c++ {
		base := c * cfg.NodesPerCommunity
		for i := 0; i < cfg.NodesPerCommunity; i++ {
			for d := 1; d <= cfg.IntraDegree; d++ {
				j := (i + d) % cfg.NodesPerCommunity
				if i == j {
					continue
				}
				edges = append(edges, graph.Edge{
					Source: int32(base + i),
					Target: int32(base + j),
				})
			}
		}
	}
	for k := 0; k < cfg.InterEdges; k++ {
		a := rng.Intn(cfg.NumCommunities)
		b := rng.Intn(cfg.NumCommunities)
		if a == b {
			b = (a + 1) % cfg.NumCommunities
		}
		edges = append(edges, graph.Edge{
			Source: int32(a*cfg.NodesPerCommunity + rng.Intn(cfg.NodesPerCommunity)),
			Target: int32(b*cfg.NodesPerCommunity + rng.Intn(cfg.NodesPerCommunity)),
		})
	}

	g, err := graph.New(n, graph.Directed, edges, nil)
	if err != nil {
		return nil, err
	}

	features := mat.NewDense(n, cfg.NumFeatures, nil)
	labels := make([]int32, n)
	for i := 0; i < n; i++ {
		community := i / cfg.NodesPerCommunity
		labels[i] = int32(community)
		for j := 0; j < cfg.NumFeatures; j++ {
			v := rng.NormFloat64() * 0.1
			if j == community%cfg.NumFeatures {
				v += 1.0
			}
			features.Set(i, j, v)
		}
	}

	// Deterministic 80/10/10 split by node index.
	splits := map[Split][]int32{}
	for i := 0; i < n; i++ {
		switch i % 10 {
		case 8:
			splits[SplitValidation] = append(splits[SplitValidation], int32(i))
		case 9:
			splits[SplitTest] = append(splits[SplitTest], int32(i))
		default:
			splits[SplitTrain] = append(splits[SplitTrain], int32(i))
		}
	}

	ds := &Dataset{
		Name:       fmt.Sprintf("synthetic-%dx%d", cfg.NumCommunities, cfg.NodesPerCommunity),
		Graph:      g,
		Features:   features,
		Labels:     labels,
		NumClasses: cfg.NumCommunities,
		Splits:     splits,
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}
