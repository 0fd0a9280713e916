// Package graph holds the adjacency model consumed by the clustering and
// batching pipeline: a sparse edge set over integer node indices, with
// optional edge weights and a directedness flag. Citation graphs such as
// arXiv are directed; partitioning and batch assembly symmetrize on demand.
package graph

import (
	"sort"
	"sync"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
)

// Type distinguishes directed from undirected graphs.
type Type int

const (
	Undirected Type = iota
	Directed
)

// String returns the human-readable graph type.
func (t Type) String() string {
	if t == Directed {
		return "directed"
	}
	return "undirected"
}

// Edge is a (source, target) pair in coordinate form. The position of an
// edge in Graph.Edges is its stable original ordering, which truncation
// policies rely on.
type Edge struct {
	Source int32 `json:"source"`
	Target int32 `json:"target"`
}

// Graph is a sparse adjacency structure. Weights is either nil (all edges
// weight 1) or parallel to Edges.
type Graph struct {
	NumNodes int
	Type     Type
	Edges    []Edge
	Weights  []float64

	indexOnce sync.Once
	rowStart  []int32 // CSR row starts by source, len NumNodes+1
	edgeIdx   []int32 // original edge indices ordered by (source, insertion)
}

// New builds a graph and validates that every edge endpoint is a valid node
// index. Invalid input yields a data integrity error naming the offending
// edge, never a silently corrected graph.
func New(numNodes int, typ Type, edges []Edge, weights []float64) (*Graph, error) {
	if numNodes < 0 {
		return nil, apperrors.NewDataIntegrity("negative node count %d", numNodes)
	}
	if weights != nil && len(weights) != len(edges) {
		return nil, apperrors.NewDataIntegrity(
			"weights length %d does not match edge count %d", len(weights), len(edges))
	}
	for i, e := range edges {
		if e.Source < 0 || int(e.Source) >= numNodes || e.Target < 0 || int(e.Target) >= numNodes {
			return nil, apperrors.NewDataIntegrity(
				"edge %d (%d -> %d) references a node outside [0, %d)",
				i, e.Source, e.Target, numNodes).
				WithDetails(map[string]interface{}{"edge_index": i})
		}
	}
	return &Graph{NumNodes: numNodes, Type: typ, Edges: edges, Weights: weights}, nil
}

// NumEdges returns the number of stored edges.
func (g *Graph) NumEdges() int { return len(g.Edges) }

// Weight returns the weight of edge i, defaulting to 1 for unweighted graphs.
func (g *Graph) Weight(i int) float64 {
	if g.Weights == nil {
		return 1.0
	}
	return g.Weights[i]
}

// buildIndex constructs the CSR index by source node using a counting sort,
// which preserves the original edge ordering within each row.
func (g *Graph) buildIndex() {
	g.indexOnce.Do(func() {
		counts := make([]int32, g.NumNodes+1)
		for _, e := range g.Edges {
			counts[e.Source+1]++
		}
		for i := 1; i <= g.NumNodes; i++ {
			counts[i] += counts[i-1]
		}
		g.rowStart = counts
		g.edgeIdx = make([]int32, len(g.Edges))
		cursor := make([]int32, g.NumNodes)
		for i, e := range g.Edges {
			g.edgeIdx[g.rowStart[e.Source]+cursor[e.Source]] = int32(i)
			cursor[e.Source]++
		}
	})
}

// OutEdges returns the original indices of edges whose source is u, in
// stable original order. The returned slice is shared; callers must not
// modify it.
func (g *Graph) OutEdges(u int32) []int32 {
	g.buildIndex()
	return g.edgeIdx[g.rowStart[u]:g.rowStart[u+1]]
}

// RestrictTo returns a graph with the same node count containing only edges
// whose endpoints both belong to nodes. This is how the training adjacency
// is derived from the full graph: test and validation nodes become isolated.
func (g *Graph) RestrictTo(nodes []int32) *Graph {
	in := make([]bool, g.NumNodes)
	for _, v := range nodes {
		in[v] = true
	}
	edges := make([]Edge, 0, len(g.Edges))
	var weights []float64
	if g.Weights != nil {
		weights = make([]float64, 0, len(g.Edges))
	}
	for i, e := range g.Edges {
		if in[e.Source] && in[e.Target] {
			edges = append(edges, e)
			if weights != nil {
				weights = append(weights, g.Weights[i])
			}
		}
	}
	return &Graph{NumNodes: g.NumNodes, Type: g.Type, Edges: edges, Weights: weights}
}

// UndirectedAdjacency builds a symmetric simple graph over the visible
// nodes in CSR form with local indices. Directions are collapsed, parallel
// edge weights merged, and self loops dropped; this is the structure the
// partitioner operates on. The second return value maps local index back to
// original node id (sorted ascending).
func (g *Graph) UndirectedAdjacency(visible []int32) (xadj []int32, adjncy []int32, adjwgt []float64, nodeOf []int32) {
	nodeOf = make([]int32, len(visible))
	copy(nodeOf, visible)
	sort.Slice(nodeOf, func(i, j int) bool { return nodeOf[i] < nodeOf[j] })

	localOf := make([]int32, g.NumNodes)
	for i := range localOf {
		localOf[i] = -1
	}
	for local, orig := range nodeOf {
		localOf[orig] = int32(local)
	}

	neighbors := make([]map[int32]float64, len(nodeOf))
	for i, e := range g.Edges {
		u, v := localOf[e.Source], localOf[e.Target]
		if u < 0 || v < 0 || u == v {
			continue
		}
		w := g.Weight(i)
		if neighbors[u] == nil {
			neighbors[u] = make(map[int32]float64)
		}
		if neighbors[v] == nil {
			neighbors[v] = make(map[int32]float64)
		}
		neighbors[u][v] += w
		neighbors[v][u] += w
	}

	xadj = make([]int32, len(nodeOf)+1)
	for i, nbrs := range neighbors {
		xadj[i+1] = xadj[i] + int32(len(nbrs))
	}
	adjncy = make([]int32, xadj[len(nodeOf)])
	adjwgt = make([]float64, xadj[len(nodeOf)])
	for i, nbrs := range neighbors {
		keys := make([]int32, 0, len(nbrs))
		for k := range nbrs {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
		base := xadj[i]
		for j, k := range keys {
			adjncy[base+int32(j)] = k
			adjwgt[base+int32(j)] = nbrs[k]
		}
	}
	return xadj, adjncy, adjwgt, nodeOf
}
