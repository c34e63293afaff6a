package molgraph

import (
	"github.com/graphmol/molnet/internal/features"
)

// Batch is a block-diagonal global graph: the row-wise concatenation of the
// member graphs' node and edge matrices, with edge indices re-based into the
// shared global index space so no edge crosses between member graphs.
type Batch struct {
	NumGraphs int

	NumNodes     int
	NodeFeatures []float32

	NumEdges     int
	EdgeFeatures []float32
	EdgeIndices  [][2]int32

	// Membership maps each global node index to its 0-based member graph.
	// It is non-decreasing and covers exactly [0, NumGraphs).
	Membership []int32

	// Readout plan, the inverse of the merge: PoolIndices[b*MaxNodes+j] is the
	// global index of graph b's j-th node, or NumNodes (a dedicated zero row
	// appended by Tensors) for j past the graph's size. PoolMask marks the
	// real entries. Batch membership is tracked here explicitly, never
	// inferred from feature contents.
	MaxNodes    int
	PoolIndices []int32
	PoolMask    []bool
}

// Merge combines graphs into one Batch. Member node indices are offset by the
// total node count of all preceding graphs; features are concatenated in
// order.
func Merge(graphs []*Graph) *Batch {
	b := &Batch{NumGraphs: len(graphs)}
	for _, g := range graphs {
		b.NumNodes += g.NumNodes
		b.NumEdges += g.NumEdges
		if g.NumNodes > b.MaxNodes {
			b.MaxNodes = g.NumNodes
		}
	}
	b.NodeFeatures = make([]float32, 0, b.NumNodes*features.AtomFeaturesDim)
	b.EdgeFeatures = make([]float32, 0, b.NumEdges*features.BondFeaturesDim)
	b.EdgeIndices = make([][2]int32, 0, b.NumEdges)
	b.Membership = make([]int32, 0, b.NumNodes)
	b.PoolIndices = make([]int32, 0, b.NumGraphs*b.MaxNodes)
	b.PoolMask = make([]bool, 0, b.NumGraphs*b.MaxNodes)

	var offset int32
	for graphIdx, g := range graphs {
		b.NodeFeatures = append(b.NodeFeatures, g.NodeFeatures...)
		b.EdgeFeatures = append(b.EdgeFeatures, g.EdgeFeatures...)
		for _, edge := range g.EdgeIndices {
			b.EdgeIndices = append(b.EdgeIndices, [2]int32{edge[0] + offset, edge[1] + offset})
		}
		for node := range g.NumNodes {
			b.Membership = append(b.Membership, int32(graphIdx))
			b.PoolIndices = append(b.PoolIndices, offset+int32(node))
			b.PoolMask = append(b.PoolMask, true)
		}
		for range b.MaxNodes - g.NumNodes {
			b.PoolIndices = append(b.PoolIndices, int32(b.NumNodes))
			b.PoolMask = append(b.PoolMask, false)
		}
		offset += int32(g.NumNodes)
	}
	return b
}
