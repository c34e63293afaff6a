package molgraph

import (
	"testing"

	"github.com/gomlx/gomlx/types/tensors"
	"github.com/graphmol/molnet/internal/features"
	"github.com/stretchr/testify/require"
)

func testGraphs(t *testing.T) []*Graph {
	t.Helper()
	return []*Graph{
		graphFromSMILES(t, "CCO"),      // 3 nodes, 7 edges
		graphFromSMILES(t, "C"),        // 1 node, 1 edge
		graphFromSMILES(t, "c1ccccc1"), // 6 nodes, 18 edges
	}
}

func TestMerge(t *testing.T) {
	graphs := testGraphs(t)
	b := Merge(graphs)

	require.Equal(t, 3, b.NumGraphs)
	require.Equal(t, 10, b.NumNodes)
	require.Equal(t, 26, b.NumEdges)
	require.Equal(t, 6, b.MaxNodes)

	// Membership is non-decreasing and covers exactly [0, NumGraphs).
	require.Len(t, b.Membership, b.NumNodes)
	require.Equal(t, []int32{0, 0, 0, 1, 2, 2, 2, 2, 2, 2}, b.Membership)

	// Edge indices are valid rows of the merged node matrix and never cross
	// between member graphs.
	for _, pair := range b.EdgeIndices {
		require.GreaterOrEqual(t, pair[0], int32(0))
		require.Less(t, pair[0], int32(b.NumNodes))
		require.Less(t, pair[1], int32(b.NumNodes))
		require.Equal(t, b.Membership[pair[0]], b.Membership[pair[1]])
	}

	// Graph 1's single node was re-based past graph 0's three nodes.
	require.Equal(t, [2]int32{3, 3}, b.EdgeIndices[7])
}

func TestMergeSingleGraph(t *testing.T) {
	g := graphFromSMILES(t, "CCO")
	b := Merge([]*Graph{g})
	require.Equal(t, g.EdgeIndices, b.EdgeIndices)
	require.Equal(t, g.NodeFeatures, b.NodeFeatures)
	require.Equal(t, []int32{0, 0, 0}, b.Membership)
}

// Merging is associative w.r.t. concatenation order: Merge([A, B, C]) is
// Merge([A, B]) with C's rows appended and its indices offset by the node
// count of A and B.
func TestMergeAssociativity(t *testing.T) {
	graphs := testGraphs(t)
	ab := Merge(graphs[:2])
	abc := Merge(graphs)

	require.Equal(t, ab.EdgeIndices, abc.EdgeIndices[:ab.NumEdges])
	require.Equal(t, ab.Membership, abc.Membership[:ab.NumNodes])
	require.Equal(t, ab.NodeFeatures, abc.NodeFeatures[:len(ab.NodeFeatures)])

	c := graphs[2]
	offset := int32(ab.NumNodes)
	for ii, pair := range c.EdgeIndices {
		require.Equal(t, [2]int32{pair[0] + offset, pair[1] + offset}, abc.EdgeIndices[ab.NumEdges+ii])
	}
}

func TestMergeReadoutPlan(t *testing.T) {
	graphs := testGraphs(t)
	b := Merge(graphs)
	require.Len(t, b.PoolIndices, b.NumGraphs*b.MaxNodes)
	require.Len(t, b.PoolMask, b.NumGraphs*b.MaxNodes)

	for graphIdx, g := range graphs {
		row := b.PoolIndices[graphIdx*b.MaxNodes : (graphIdx+1)*b.MaxNodes]
		mask := b.PoolMask[graphIdx*b.MaxNodes : (graphIdx+1)*b.MaxNodes]
		for j := range b.MaxNodes {
			if j < g.NumNodes {
				require.True(t, mask[j])
				require.Equal(t, int32(graphIdx), b.Membership[row[j]])
			} else {
				// Padding entries target the dedicated zero row.
				require.False(t, mask[j])
				require.Equal(t, int32(b.NumNodes), row[j])
			}
		}
	}
}

func TestBatchTensors(t *testing.T) {
	b := Merge(testGraphs(t))
	stateDim := features.AtomFeaturesDim + 16
	parts := b.Tensors(stateDim)
	require.Len(t, parts, 5)

	nodeFeatures, edgeFeatures, edgeIndices, poolIndices, poolMask := parts[0], parts[1], parts[2], parts[3], parts[4]
	require.Equal(t, []int{b.NumNodes + 1, stateDim}, nodeFeatures.Shape().Dimensions)
	require.Equal(t, []int{b.NumEdges, features.BondFeaturesDim}, edgeFeatures.Shape().Dimensions)
	require.Equal(t, []int{b.NumEdges, 2}, edgeIndices.Shape().Dimensions)
	require.Equal(t, []int{b.NumGraphs, b.MaxNodes, 1}, poolIndices.Shape().Dimensions)
	require.Equal(t, []int{b.NumGraphs, b.MaxNodes}, poolMask.Shape().Dimensions)

	// The trailing padding columns and the final padding row stay zero.
	flat := tensors.CopyFlatData[float32](nodeFeatures)
	for node := range b.NumNodes {
		row := flat[node*stateDim : (node+1)*stateDim]
		require.Equal(t,
			b.NodeFeatures[node*features.AtomFeaturesDim:(node+1)*features.AtomFeaturesDim],
			row[:features.AtomFeaturesDim])
		for _, v := range row[features.AtomFeaturesDim:] {
			require.Zero(t, v)
		}
	}
	for _, v := range flat[b.NumNodes*stateDim:] {
		require.Zero(t, v)
	}

	require.Panics(t, func() { b.Tensors(features.AtomFeaturesDim - 1) })
}
