package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
)

func TestNewRejectsBadEndpoints(t *testing.T) {
	_, err := New(3, Directed, []Edge{{Source: 0, Target: 3}}, nil)
	require.Error(t, err)
	require.True(t, apperrors.IsDataIntegrity(err))

	_, err = New(3, Directed, []Edge{{Source: -1, Target: 0}}, nil)
	require.Error(t, err)
	require.True(t, apperrors.IsDataIntegrity(err))
}

func TestNewRejectsWeightMismatch(t *testing.T) {
	_, err := New(2, Directed, []Edge{{Source: 0, Target: 1}}, []float64{1, 2})
	require.Error(t, err)
	require.True(t, apperrors.IsDataIntegrity(err))
}

func TestWeightDefaultsToOne(t *testing.T) {
	g, err := New(2, Directed, []Edge{{Source: 0, Target: 1}}, nil)
	require.NoError(t, err)
	require.Equal(t, 1.0, g.Weight(0))

	g, err = New(2, Directed, []Edge{{Source: 0, Target: 1}}, []float64{2.5})
	require.NoError(t, err)
	require.Equal(t, 2.5, g.Weight(0))
}

func TestOutEdgesPreserveOriginalOrder(t *testing.T) {
	edges := []Edge{
		{Source: 1, Target: 0}, // index 0
		{Source: 0, Target: 2}, // index 1
		{Source: 1, Target: 2}, // index 2
		{Source: 0, Target: 1}, // index 3
		{Source: 1, Target: 1}, // index 4
	}
	g, err := New(3, Directed, edges, nil)
	require.NoError(t, err)

	require.Equal(t, []int32{1, 3}, g.OutEdges(0))
	require.Equal(t, []int32{0, 2, 4}, g.OutEdges(1))
	require.Empty(t, g.OutEdges(2))
}

func TestRestrictToDropsCrossingEdges(t *testing.T) {
	edges := []Edge{
		{Source: 0, Target: 1},
		{Source: 1, Target: 2},
		{Source: 2, Target: 3},
		{Source: 3, Target: 0},
	}
	g, err := New(4, Directed, edges, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	r := g.RestrictTo([]int32{0, 1, 2})
	require.Equal(t, 4, r.NumNodes)
	require.Equal(t, []Edge{{Source: 0, Target: 1}, {Source: 1, Target: 2}}, r.Edges)
	require.Equal(t, []float64{1, 2}, r.Weights)
}

func TestUndirectedAdjacencySymmetrizes(t *testing.T) {
	// Both directions of (0,1) plus a self loop and an edge to an
	// invisible node.
	edges := []Edge{
		{Source: 0, Target: 1},
		{Source: 1, Target: 0},
		{Source: 1, Target: 1},
		{Source: 1, Target: 2},
		{Source: 0, Target: 3},
	}
	g, err := New(4, Directed, edges, nil)
	require.NoError(t, err)

	xadj, adjncy, adjwgt, nodeOf := g.UndirectedAdjacency([]int32{2, 0, 1})

	require.Equal(t, []int32{0, 1, 2}, nodeOf)
	require.Equal(t, []int32{0, 1, 3, 4}, xadj)

	// Local 0 (node 0) sees local 1; the merged weight counts both
	// directions of (0,1).
	require.Equal(t, []int32{1}, adjncy[xadj[0]:xadj[1]])
	require.Equal(t, 2.0, adjwgt[0])

	// Local 1 (node 1) sees locals 0 and 2; the self loop is gone.
	require.Equal(t, []int32{0, 2}, adjncy[xadj[1]:xadj[2]])

	// Local 2 (node 2) sees node 1 through the reversed direction.
	require.Equal(t, []int32{1}, adjncy[xadj[2]:xadj[3]])
	require.Equal(t, 1.0, adjwgt[xadj[2]])
}

func TestTypeString(t *testing.T) {
	require.Equal(t, "directed", Directed.String())
	require.Equal(t, "undirected", Undirected.String())
}
