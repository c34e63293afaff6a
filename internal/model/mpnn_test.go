package model

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/require"

	"github.com/graphmol/molnet/internal/chem"
	"github.com/graphmol/molnet/internal/features"
	"github.com/graphmol/molnet/internal/molgraph"

	_ "github.com/gomlx/gomlx/backends/simplego"
)

func graphsFromSMILES(t *testing.T, smiles ...string) []*molgraph.Graph {
	graphs := make([]*molgraph.Graph, len(smiles))
	for ii, s := range smiles {
		mol, err := chem.Parse(s)
		require.NoError(t, err)
		graphs[ii] = molgraph.FromMolecule(mol)
	}
	return graphs
}

func TestNewMPNNDefaults(t *testing.T) {
	m := NewMPNN()
	require.Equal(t, 64, m.StateDim())

	// A state dimension below the raw atom features is bumped up to fit them.
	m.Context().SetParam(ParamMessageUnits, 8)
	require.Equal(t, features.AtomFeaturesDim, m.StateDim())
}

func TestCreateInputs(t *testing.T) {
	m := NewMPNN()
	graphs := graphsFromSMILES(t, "CCO", "C")
	inputs := m.CreateInputs(graphs)
	require.Len(t, inputs, 5)

	// CCO has 3 atoms and 7 directed edges (3 self-loops + 2 per bond), the
	// lone methane just its self-loop. The node tensor carries one extra
	// all-zero row for the readout plan's padding entries.
	nodeFeatures, edgeFeatures, edgeIndices := inputs[0], inputs[1], inputs[2]
	poolIndices, poolMask := inputs[3], inputs[4]
	require.Equal(t, []int{5, 64}, nodeFeatures.Shape().Dimensions)
	require.Equal(t, []int{8, features.BondFeaturesDim}, edgeFeatures.Shape().Dimensions)
	require.Equal(t, []int{8, 2}, edgeIndices.Shape().Dimensions)
	require.Equal(t, []int{2, 3, 1}, poolIndices.Shape().Dimensions)
	require.Equal(t, []int{2, 3}, poolMask.Shape().Dimensions)

	// The zero row at the end, and the zero-padding of the feature columns.
	flat := tensors.CopyFlatData[float32](nodeFeatures)
	for col, value := range flat[4*64:] {
		require.Zerof(t, value, "zero row, column %d", col)
	}
	for row := range 4 {
		for col := features.AtomFeaturesDim; col < 64; col++ {
			require.Zerof(t, flat[row*64+col], "padding of row %d, column %d", row, col)
		}
	}

	// Padding entries of the plan point at the zero row.
	plan := tensors.CopyFlatData[int32](poolIndices)
	require.Equal(t, []int32{0, 1, 2, 3, 4, 4}, plan)
	mask := tensors.CopyFlatData[bool](poolMask)
	require.Equal(t, []bool{true, true, true, true, false, false}, mask)
}

func TestCreateLabels(t *testing.T) {
	m := NewMPNN()
	labelsT := m.CreateLabels([]float32{1, 0, 1})
	require.Equal(t, []int{3, 1}, labelsT.Shape().Dimensions)
	require.Equal(t, []float32{1, 0, 1}, tensors.CopyFlatData[float32](labelsT))
}

func asAny(ts []*tensors.Tensor) []any {
	out := make([]any, len(ts))
	for ii, t := range ts {
		out[ii] = t
	}
	return out
}

// relabelNodes returns the graph with node i renamed to perm[i]: node feature
// rows moved to their new positions, edge endpoints remapped, edge order
// unchanged.
func relabelNodes(g *molgraph.Graph, perm []int32) *molgraph.Graph {
	p := &molgraph.Graph{
		NumNodes:     g.NumNodes,
		NodeFeatures: make([]float32, len(g.NodeFeatures)),
		NumEdges:     g.NumEdges,
		EdgeFeatures: append([]float32(nil), g.EdgeFeatures...),
		EdgeIndices:  make([][2]int32, g.NumEdges),
	}
	dim := features.AtomFeaturesDim
	for node := range g.NumNodes {
		copy(p.NodeFeatures[int(perm[node])*dim:(int(perm[node])+1)*dim],
			g.NodeFeatures[node*dim:(node+1)*dim])
	}
	for ii, pair := range g.EdgeIndices {
		p.EdgeIndices[ii] = [2]int32{perm[pair[0]], perm[pair[1]]}
	}
	return p
}

// Relabeling the atoms of a molecule must not change its prediction: message
// aggregation is a per-node sum and the readout pools over the node axis.
func TestForwardGraphPermutationInvariance(t *testing.T) {
	m := NewMPNN()
	g := graphsFromSMILES(t, "CC(=O)Oc1ccccc1C(=O)O")[0] // Aspirin, 13 atoms.
	perm := make([]int32, g.NumNodes)
	for ii := range perm {
		perm[ii] = int32(g.NumNodes - 1 - ii)
	}

	backend := graphtest.BuildTestBackend()
	forward := func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
		return m.ForwardGraph(ctx, inputs)
	}
	// Both executions share m's context, hence the same weights.
	logitT := context.ExecOnce(backend, m.Context(), forward,
		asAny(m.CreateInputs([]*molgraph.Graph{g}))...)
	relabeledT := context.ExecOnce(backend, m.Context(), forward,
		asAny(m.CreateInputs([]*molgraph.Graph{relabelNodes(g, perm)}))...)

	logitT.Shape().AssertDims(1, 1)
	logit := tensors.CopyFlatData[float32](logitT)[0]
	relabeled := tensors.CopyFlatData[float32](relabeledT)[0]
	require.False(t, math32.IsNaN(logit))
	require.InDelta(t, logit, relabeled, 1e-3)
}

func TestLossGraph(t *testing.T) {
	m := NewMPNN()
	graphs := graphsFromSMILES(t, "CCO", "c1ccccc1", "CC(=O)O")
	inputs := m.CreateInputs(graphs)
	numInputs := len(inputs)
	inputs = append(inputs, m.CreateLabels([]float32{1, 0, 1}))

	backend := graphtest.BuildTestBackend()
	lossT := context.ExecOnce(backend, m.Context(),
		func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
			return m.LossGraph(ctx, inputs[:numInputs], inputs[numInputs])
		}, asAny(inputs)...)

	lossT.Shape().AssertScalar()
	loss := tensors.ToScalar[float32](lossT)
	require.False(t, math32.IsNaN(loss))
	require.Greater(t, loss, float32(0))
}
