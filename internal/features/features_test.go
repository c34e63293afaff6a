package features

import (
	"testing"

	"github.com/graphmol/molnet/internal/chem"
	"github.com/stretchr/testify/require"
)

func TestDims(t *testing.T) {
	require.Equal(t, 13+7+5+4, AtomFeaturesDim)
	require.Equal(t, 4+2+1, BondFeaturesDim)
}

// onesAt collects the indices of slots set to 1, requiring everything else 0.
func onesAt(t *testing.T, vec []float32) []int {
	t.Helper()
	var ones []int
	for ii, v := range vec {
		switch v {
		case 0:
		case 1:
			ones = append(ones, ii)
		default:
			t.Fatalf("slot %d has non-binary value %g", ii, v)
		}
	}
	return ones
}

func TestForAtom(t *testing.T) {
	mol, err := chem.Parse("CCO")
	require.NoError(t, err)

	// Methyl carbon: sp3, valence 4, 3 hydrogens. Exactly one slot per category.
	vec := ForAtom(mol.Atom(0))
	require.Len(t, vec, AtomFeaturesDim)
	require.Equal(t, []int{
		AtomSpecs[0].VecIndex + 2, // symbol "C"
		AtomSpecs[1].VecIndex + 4, // valence 4
		AtomSpecs[2].VecIndex + 3, // 3 hydrogens
		AtomSpecs[3].VecIndex + 3, // sp3
	}, onesAt(t, vec))

	// Hydroxyl oxygen.
	vec = ForAtom(mol.Atom(2))
	require.Equal(t, []int{
		AtomSpecs[0].VecIndex + 10, // symbol "O"
		AtomSpecs[1].VecIndex + 2,  // valence 2
		AtomSpecs[2].VecIndex + 1,  // 1 hydrogen
		AtomSpecs[3].VecIndex + 3,  // sp3
	}, onesAt(t, vec))
}

func TestForAtomOutOfVocabulary(t *testing.T) {
	// Selenium is not in the symbol vocabulary: its category stays all-zero,
	// silently, while the remaining categories still encode.
	mol, err := chem.Parse("[SeH2]")
	require.NoError(t, err)
	vec := ForAtom(mol.Atom(0))
	ones := onesAt(t, vec)
	require.Len(t, ones, 3)
	for _, slot := range ones {
		require.GreaterOrEqual(t, slot, AtomSpecs[1].VecIndex)
	}
}

func TestForBond(t *testing.T) {
	mol, err := chem.Parse("C=CC=C")
	require.NoError(t, err)

	// Conjugated double bond.
	vec := ForBond(mol.Bonds()[0])
	require.Len(t, vec, BondFeaturesDim)
	require.Equal(t, []int{
		BondSpecs[0].VecIndex + 1, // double
		BondSpecs[1].VecIndex + 1, // conjugated
	}, onesAt(t, vec))

	// Conjugated single bond.
	vec = ForBond(mol.Bonds()[1])
	require.Equal(t, []int{
		BondSpecs[0].VecIndex + 0,
		BondSpecs[1].VecIndex + 1,
	}, onesAt(t, vec))
}

func TestForBondSelfLoop(t *testing.T) {
	vec := ForBond(nil)
	require.Equal(t, []int{BondFeaturesDim - 1}, onesAt(t, vec))
}
