package molgraph

import (
	"testing"

	"github.com/graphmol/molnet/internal/chem"
	"github.com/graphmol/molnet/internal/features"
	"github.com/stretchr/testify/require"
)

func graphFromSMILES(t *testing.T, smiles string) *Graph {
	t.Helper()
	mol, err := chem.Parse(smiles)
	require.NoError(t, err)
	return FromMolecule(mol)
}

func TestFromMoleculeEthanol(t *testing.T) {
	g := graphFromSMILES(t, "CCO")
	require.Equal(t, 3, g.NumNodes)
	require.Len(t, g.NodeFeatures, 3*features.AtomFeaturesDim)

	// 3 self-loops plus 2 directed edges per bond.
	require.Equal(t, 7, g.NumEdges)
	require.Len(t, g.EdgeIndices, 7)
	require.Len(t, g.EdgeFeatures, 7*features.BondFeaturesDim)
	require.ElementsMatch(t, [][2]int32{
		{0, 0}, {1, 1}, {2, 2}, {0, 1}, {1, 0}, {1, 2}, {2, 1},
	}, g.EdgeIndices)

	// Self-loop edges carry only the "no bond" slot.
	for edge, pair := range g.EdgeIndices {
		row := g.EdgeFeatures[edge*features.BondFeaturesDim : (edge+1)*features.BondFeaturesDim]
		if pair[0] == pair[1] {
			require.Equal(t, float32(1), row[features.BondFeaturesDim-1])
		} else {
			require.Equal(t, float32(0), row[features.BondFeaturesDim-1])
		}
	}
}

func TestFromMoleculeEdgeCount(t *testing.T) {
	for _, tc := range []struct {
		smiles       string
		atoms, bonds int
	}{
		{"C", 1, 0},
		{"CCO", 3, 2},
		{"c1ccccc1", 6, 6},
		{"C1CC1", 3, 3},
		{"[Na+].[Cl-]", 2, 0},
		{"Cn1cnc2c1c(=O)n(C)c(=O)n2C", 14, 15},
	} {
		g := graphFromSMILES(t, tc.smiles)
		require.Equal(t, tc.atoms, g.NumNodes, "SMILES %q", tc.smiles)
		require.Equal(t, tc.atoms+2*tc.bonds, g.NumEdges, "SMILES %q", tc.smiles)
	}
}

func TestFromMoleculeEmissionOrder(t *testing.T) {
	// Per atom: self-loop first, then its neighbor edges; atoms in index order.
	g := graphFromSMILES(t, "CCO")
	require.Equal(t, [2]int32{0, 0}, g.EdgeIndices[0])
	require.Equal(t, [2]int32{0, 1}, g.EdgeIndices[1])
	require.Equal(t, [2]int32{1, 1}, g.EdgeIndices[2])
	require.Equal(t, [2]int32{2, 2}, g.EdgeIndices[5])
}
