package batch

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// assemble builds one fixed-shape batch from the union of the given
// clusters. Node slots are assigned by ascending original node id so the
// layout is stable regardless of the order the clusters were drawn in.
// When the union exceeds the node budget, the highest-id nodes are dropped;
// when edges exceed the edge budget, the highest-index edges are dropped.
func (g *Generator) assemble(clusterIDs []int32) *Batch {
	nodes := make([]int32, 0, g.cfg.MaxNodesPerBatch)
	for _, c := range clusterIDs {
		nodes = append(nodes, g.clusters[c]...)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	if len(nodes) > g.cfg.MaxNodesPerBatch {
		nodes = nodes[:g.cfg.MaxNodesPerBatch]
	}

	local := make(map[int32]int32, len(nodes))
	for i, n := range nodes {
		local[n] = int32(i)
	}

	// Partition the induced edges into intra-cluster and inter-cluster
	// sets, each in stable original edge order. Inter-cluster edges are
	// admitted only up to their share of the edge budget.
	var intra, inter []int32
	for _, u := range nodes {
		for _, ei := range g.graph.OutEdges(u) {
			e := g.graph.Edges[ei]
			if _, ok := local[e.Target]; !ok {
				continue
			}
			if g.assignment[e.Source] == g.assignment[e.Target] {
				intra = append(intra, ei)
			} else {
				inter = append(inter, ei)
			}
		}
	}
	sort.Slice(intra, func(i, j int) bool { return intra[i] < intra[j] })
	sort.Slice(inter, func(i, j int) bool { return inter[i] < inter[j] })

	maxEdges := g.cfg.MaxEdgesPerBatch
	if len(intra) > maxEdges {
		intra = intra[:maxEdges]
	}
	interBudget := int(g.cfg.InterClusterRatio * float64(maxEdges))
	if len(inter) > interBudget {
		inter = inter[:interBudget]
	}
	edges := append(intra, inter...)
	if len(edges) > maxEdges {
		edges = edges[:maxEdges]
	}

	b := &Batch{
		NumRealNodes: len(nodes),
		NumRealEdges: len(edges),
	}
	b.Adjacency = g.buildAdjacency(local, edges)

	maxNodes := g.cfg.MaxNodesPerBatch
	numFeatures := g.features.RawMatrix().Cols
	b.Features = mat.NewDense(maxNodes, numFeatures, nil)
	b.Labels = make([]int32, maxNodes)
	b.NodeMask = make([]bool, maxNodes)
	b.Nodes = make([]int32, maxNodes)
	for i := range b.Labels {
		b.Labels[i] = -1
		b.Nodes[i] = -1
	}
	for i, n := range nodes {
		row := g.features.RawRowView(int(n))
		for j, v := range row {
			b.Features.Set(i, j, g.cfg.DType.cast(v))
		}
		b.Labels[i] = g.labels[n]
		b.NodeMask[i] = g.mask[n]
		b.Nodes[i] = n
	}
	return b
}

// buildAdjacency renders the selected edges in the configured form. The
// coordinate forms keep the edge order of the edges slice; padded entries
// use node slot 0 with a false mask, so consumers must always combine the
// coordinates with the mask.
func (g *Generator) buildAdjacency(local map[int32]int32, edges []int32) *Adjacency {
	adj := &Adjacency{Form: g.cfg.Form, DType: g.cfg.DType}
	maxNodes := g.cfg.MaxNodesPerBatch

	switch g.cfg.Form {
	case FormDense:
		adj.Dense = mat.NewDense(maxNodes, maxNodes, nil)
		for _, ei := range edges {
			e := g.graph.Edges[ei]
			adj.Dense.Set(int(local[e.Source]), int(local[e.Target]), g.cfg.DType.cast(g.graph.Weight(int(ei))))
		}

	case FormCOO:
		adj.Rows = make([]int32, len(edges))
		adj.Cols = make([]int32, len(edges))
		adj.Values = make([]float64, len(edges))
		for i, ei := range edges {
			e := g.graph.Edges[ei]
			adj.Rows[i] = local[e.Source]
			adj.Cols[i] = local[e.Target]
			adj.Values[i] = g.cfg.DType.cast(g.graph.Weight(int(ei)))
		}

	case FormPaddedCOO:
		maxEdges := g.cfg.MaxEdgesPerBatch
		adj.Rows = make([]int32, maxEdges)
		adj.Cols = make([]int32, maxEdges)
		adj.Values = make([]float64, maxEdges)
		adj.EdgeMask = make([]bool, maxEdges)
		for i, ei := range edges {
			e := g.graph.Edges[ei]
			adj.Rows[i] = local[e.Source]
			adj.Cols[i] = local[e.Target]
			adj.Values[i] = g.cfg.DType.cast(g.graph.Weight(int(ei)))
			adj.EdgeMask[i] = true
		}
	}
	return adj
}
