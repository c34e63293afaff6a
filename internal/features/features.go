// Package features encodes atoms and bonds as fixed-length one-hot vectors.
//
// Each featurizer is an explicitly ordered table of category specs. A category
// contributes one slot per allowed value; an atom or bond whose value falls
// outside the allowed set leaves its category all-zero. This is deliberate:
// out-of-vocabulary values are not an error, they encode as "none of the
// known values".
package features

import (
	"k8s.io/klog/v2"

	"github.com/graphmol/molnet/internal/chem"
)

// AtomSpec describes one atom feature category: its name, sorted vocabulary
// and the extractor mapping an atom to its value.
type AtomSpec struct {
	Name    string
	Values  []string
	Extract func(atom *chem.Atom) string

	// VecIndex is the slot of Values[0] in the concatenated feature vector,
	// computed during package initialization.
	VecIndex int
}

// BondSpec is the bond equivalent of AtomSpec.
type BondSpec struct {
	Name    string
	Values  []string
	Extract func(bond *chem.Bond) string

	VecIndex int
}

var (
	// AtomSpecs enumerates, in fixed order, the categories of ForAtom.
	AtomSpecs = []AtomSpec{
		{
			Name:   "symbol",
			Values: []string{"B", "Br", "C", "Ca", "Cl", "F", "H", "I", "N", "Na", "O", "P", "S"},
			Extract: func(atom *chem.Atom) string {
				return atom.Symbol()
			},
		},
		{
			Name:   "n_valence",
			Values: []string{"0", "1", "2", "3", "4", "5", "6"},
			Extract: func(atom *chem.Atom) string {
				return itoa(atom.TotalValence())
			},
		},
		{
			Name:   "n_hydrogens",
			Values: []string{"0", "1", "2", "3", "4"},
			Extract: func(atom *chem.Atom) string {
				return itoa(atom.TotalNumHs())
			},
		},
		{
			Name:   "hybridization",
			Values: []string{"s", "sp", "sp2", "sp3"},
			Extract: func(atom *chem.Atom) string {
				return atom.Hybridization().String()
			},
		},
	}

	// BondSpecs enumerates, in fixed order, the categories of ForBond.
	BondSpecs = []BondSpec{
		{
			Name:   "bond_type",
			Values: []string{"single", "double", "triple", "aromatic"},
			Extract: func(bond *chem.Bond) string {
				return bond.Order().String()
			},
		},
		{
			Name:   "conjugated",
			Values: []string{"false", "true"},
			Extract: func(bond *chem.Bond) string {
				if bond.IsConjugated() {
					return "true"
				}
				return "false"
			},
		},
	}

	// AtomFeaturesDim is the length of atom feature vectors: the total
	// vocabulary size across AtomSpecs.
	AtomFeaturesDim int

	// BondFeaturesDim is the length of bond feature vectors: the total
	// vocabulary size across BondSpecs plus the trailing "no bond" slot used
	// for self-loop edges.
	BondFeaturesDim int
)

func init() {
	AtomFeaturesDim = 0
	for ii := range AtomSpecs {
		if len(AtomSpecs[ii].Values) == 0 {
			klog.Fatalf("features.AtomSpecs[%d] (%s) has an empty vocabulary", ii, AtomSpecs[ii].Name)
		}
		AtomSpecs[ii].VecIndex = AtomFeaturesDim
		AtomFeaturesDim += len(AtomSpecs[ii].Values)
	}
	BondFeaturesDim = 0
	for ii := range BondSpecs {
		if len(BondSpecs[ii].Values) == 0 {
			klog.Fatalf("features.BondSpecs[%d] (%s) has an empty vocabulary", ii, BondSpecs[ii].Name)
		}
		BondSpecs[ii].VecIndex = BondFeaturesDim
		BondFeaturesDim += len(BondSpecs[ii].Values)
	}
	BondFeaturesDim++ // The "no bond" slot.
}

// ForAtom encodes the atom into a freshly allocated vector of length
// AtomFeaturesDim.
func ForAtom(atom *chem.Atom) []float32 {
	vec := make([]float32, AtomFeaturesDim)
	SetAtom(atom, vec)
	return vec
}

// SetAtom encodes the atom into vec, which must have length >= AtomFeaturesDim.
// Slots of vec beyond the encoded categories are left untouched.
func SetAtom(atom *chem.Atom, vec []float32) {
	for _, spec := range AtomSpecs {
		value := spec.Extract(atom)
		if slot := indexOf(spec.Values, value); slot >= 0 {
			vec[spec.VecIndex+slot] = 1
		}
	}
}

// ForBond encodes the bond into a freshly allocated vector of length
// BondFeaturesDim. A nil bond represents "no bond" (a self-loop edge): only
// the trailing slot is set and no category is extracted.
func ForBond(bond *chem.Bond) []float32 {
	vec := make([]float32, BondFeaturesDim)
	SetBond(bond, vec)
	return vec
}

// SetBond encodes the bond into vec, which must have length >= BondFeaturesDim.
func SetBond(bond *chem.Bond, vec []float32) {
	if bond == nil {
		vec[BondFeaturesDim-1] = 1
		return
	}
	for _, spec := range BondSpecs {
		value := spec.Extract(bond)
		if slot := indexOf(spec.Values, value); slot >= 0 {
			vec[spec.VecIndex+slot] = 1
		}
	}
}

// indexOf returns the position of value in values, or -1. The vocabularies
// are small enough that a linear scan beats anything fancier.
func indexOf(values []string, value string) int {
	for ii, v := range values {
		if v == value {
			return ii
		}
	}
	return -1
}

// itoa covers the small non-negative integers of the count vocabularies.
func itoa(v int) string {
	if v < 0 || v > 9 {
		return "?"
	}
	return string(rune('0' + v))
}
