// Package dataset models a node-classification dataset: one graph, dense
// node features, integer labels and the train/validation/test split. It
// ships a plain-text file loader, a binary dataset cache and a synthetic
// generator used by tests and demos.
package dataset

import (
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
	"github.com/clustergraph/cluster-gcn-pipeline/pkg/graph"
)

type Split string

const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// ParseSplit validates a split name.
func ParseSplit(s string) (Split, error) {
	switch Split(s) {
	case SplitTrain, SplitValidation, SplitTest:
		return Split(s), nil
	default:
		return "", apperrors.NewConfiguration("unknown split %q (want train, validation or test)", s)
	}
}

// Dataset is an immutable in-memory dataset. Labels holds one class id per
// node; nodes outside every split keep label -1.
type Dataset struct {
	Name       string
	Graph      *graph.Graph
	Features   *mat.Dense
	Labels     []int32
	NumClasses int
	Splits     map[Split][]int32
}

// NumFeatures is the feature dimensionality.
func (d *Dataset) NumFeatures() int {
	_, c := d.Features.Dims()
	return c
}

// Validate cross-checks the dataset pieces against the graph.
func (d *Dataset) Validate() error {
	n := d.Graph.NumNodes
	rows, _ := d.Features.Dims()
	if rows != n {
		return apperrors.NewDataIntegrity("feature matrix has %d rows, graph has %d nodes", rows, n)
	}
	if len(d.Labels) != n {
		return apperrors.NewDataIntegrity("label array has %d entries, graph has %d nodes", len(d.Labels), n)
	}
	for i, l := range d.Labels {
		if l < -1 || int(l) >= d.NumClasses {
			return apperrors.NewDataIntegrity("label %d out of range for %d classes", l, d.NumClasses).
				WithDetails(map[string]interface{}{"node": i})
		}
	}
	seen := make(map[int32]Split, n)
	for split, nodes := range d.Splits {
		for _, node := range nodes {
			if node < 0 || int(node) >= n {
				return apperrors.NewDataIntegrity("split %s references node %d outside graph of %d nodes",
					split, node, n)
			}
			if prev, dup := seen[node]; dup {
				return apperrors.NewDataIntegrity("node %d assigned to both %s and %s splits",
					node, prev, split)
			}
			seen[node] = split
		}
	}
	return nil
}

// Mask returns a boolean membership mask over all nodes for the split.
func (d *Dataset) Mask(s Split) []bool {
	mask := make([]bool, d.Graph.NumNodes)
	for _, n := range d.Splits[s] {
		mask[n] = true
	}
	return mask
}

// VisibleNodes returns the node set batches may draw from for the split.
// Training sees only its own nodes so no information leaks in through the
// adjacency; evaluation splits see the whole graph.
func (d *Dataset) VisibleNodes(s Split) []int32 {
	if s == SplitTrain {
		nodes := make([]int32, len(d.Splits[SplitTrain]))
		copy(nodes, d.Splits[SplitTrain])
		return nodes
	}
	nodes := make([]int32, d.Graph.NumNodes)
	for i := range nodes {
		nodes[i] = int32(i)
	}
	return nodes
}

// TrainGraph is the graph restricted to edges between training nodes.
// Node ids are unchanged; held-out nodes become isolated.
func (d *Dataset) TrainGraph() *graph.Graph {
	return d.Graph.RestrictTo(d.Splits[SplitTrain])
}
