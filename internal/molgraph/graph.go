// Package molgraph turns molecules into the tensor-ready graph representation
// consumed by the message-passing model: per-molecule graphs, and batches of
// graphs merged into one block-diagonal global graph.
package molgraph

import (
	"github.com/graphmol/molnet/internal/chem"
	"github.com/graphmol/molnet/internal/features"
)

// Graph is one molecule as a graph: flat row-major feature matrices plus the
// directed edge list. Every atom contributes a self-loop edge carrying the
// "no bond" feature vector, so every node has at least one incoming edge, and
// every bond contributes two directed edges (one per direction).
type Graph struct {
	// NumNodes rows of NodeFeatures, each features.AtomFeaturesDim wide.
	NumNodes     int
	NodeFeatures []float32

	// NumEdges rows of EdgeFeatures, each features.BondFeaturesDim wide, and
	// of EdgeIndices as (source, target) pairs. Self-loops are (i, i).
	NumEdges     int
	EdgeFeatures []float32
	EdgeIndices  [][2]int32
}

// FromMolecule builds the graph of a molecule.
//
// Atoms are visited in the molecule's native index order. For each atom it
// emits the atom's feature row, a self-loop edge, and one directed edge per
// neighbor with the connecting bond's features. Emission order is preserved:
// no sorting, no deduplication.
func FromMolecule(mol *chem.Molecule) *Graph {
	numNodes := mol.NumAtoms()
	numEdges := numNodes + 2*mol.NumBonds()
	g := &Graph{
		NumNodes:     numNodes,
		NodeFeatures: make([]float32, numNodes*features.AtomFeaturesDim),
		NumEdges:     numEdges,
		EdgeFeatures: make([]float32, numEdges*features.BondFeaturesDim),
		EdgeIndices:  make([][2]int32, 0, numEdges),
	}
	for _, atom := range mol.Atoms() {
		idx := int32(atom.Index())
		features.SetAtom(atom, g.nodeRow(atom.Index()))

		features.SetBond(nil, g.edgeRow(len(g.EdgeIndices)))
		g.EdgeIndices = append(g.EdgeIndices, [2]int32{idx, idx})

		for _, neighbor := range atom.Neighbors() {
			bond := mol.BondBetween(atom.Index(), neighbor.Index())
			features.SetBond(bond, g.edgeRow(len(g.EdgeIndices)))
			g.EdgeIndices = append(g.EdgeIndices, [2]int32{idx, int32(neighbor.Index())})
		}
	}
	return g
}

// nodeRow returns the mutable feature row of the given node.
func (g *Graph) nodeRow(node int) []float32 {
	start := node * features.AtomFeaturesDim
	return g.NodeFeatures[start : start+features.AtomFeaturesDim]
}

// edgeRow returns the mutable feature row of the given edge.
func (g *Graph) edgeRow(edge int) []float32 {
	start := edge * features.BondFeaturesDim
	return g.EdgeFeatures[start : start+features.BondFeaturesDim]
}
