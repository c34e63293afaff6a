// Package chem implements a small cheminformatics model: molecules parsed from
// SMILES strings, with the atom and bond attributes needed for featurization.
//
// It covers the organic subset, bracket atoms, branches, ring closures and
// aromatic (lowercase) notation. Stereo markers are accepted and ignored.
package chem

// BondOrder enumerates the bond types distinguished by the parser.
type BondOrder int

const (
	BondNone BondOrder = iota
	BondSingle
	BondDouble
	BondTriple
	BondAromatic
)

// String returns the name used by the bond featurizer vocabulary.
func (o BondOrder) String() string {
	switch o {
	case BondSingle:
		return "single"
	case BondDouble:
		return "double"
	case BondTriple:
		return "triple"
	case BondAromatic:
		return "aromatic"
	}
	return "none"
}

// numElectrons a bond of this order contributes to an atom's valence.
// Aromatic bonds count 1.5, hence the float.
func (o BondOrder) numElectrons() float64 {
	switch o {
	case BondSingle:
		return 1
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	case BondAromatic:
		return 1.5
	}
	return 0
}

// Hybridization of an atom, derived during sanitization.
type Hybridization int

const (
	HybridizationUnknown Hybridization = iota
	HybridizationS
	HybridizationSP
	HybridizationSP2
	HybridizationSP3
)

// String returns the name used by the atom featurizer vocabulary.
func (h Hybridization) String() string {
	switch h {
	case HybridizationS:
		return "s"
	case HybridizationSP:
		return "sp"
	case HybridizationSP2:
		return "sp2"
	case HybridizationSP3:
		return "sp3"
	}
	return "unknown"
}

// Atom of a parsed molecule. Atoms keep the index order in which they appeared
// in the SMILES string, which is the stable order exposed by Molecule.Atoms.
type Atom struct {
	mol *Molecule
	idx int

	symbol   string
	aromatic bool
	charge   int
	isotope  int

	// explicitHs is the H count given in a bracket atom, or -1 when the atom is
	// from the organic subset and hydrogens are implied.
	explicitHs int
	implicitHs int

	hybridization Hybridization
}

// Index of the atom within its molecule.
func (a *Atom) Index() int { return a.idx }

// Symbol returns the element symbol, e.g. "C", "Cl", "Na".
func (a *Atom) Symbol() string { return a.symbol }

// IsAromatic reports whether the atom was written in aromatic (lowercase) form.
func (a *Atom) IsAromatic() bool { return a.aromatic }

// Charge is the formal charge given in brackets, 0 otherwise.
func (a *Atom) Charge() int { return a.charge }

// Isotope is the isotope number given in brackets, 0 otherwise.
func (a *Atom) Isotope() int { return a.isotope }

// TotalNumHs is the number of attached hydrogens: the bracket count when
// given, otherwise the implicit count assigned by sanitization.
func (a *Atom) TotalNumHs() int {
	if a.explicitHs >= 0 {
		return a.explicitHs
	}
	return a.implicitHs
}

// Degree is the number of explicit neighboring atoms.
func (a *Atom) Degree() int { return len(a.mol.adjacency[a.idx]) }

// TotalValence is the sum of the atom's bond orders plus attached hydrogens,
// with aromatic rings counted kekulé-style.
func (a *Atom) TotalValence() int {
	return a.bondValence() + a.TotalNumHs()
}

// bondValence sums the orders of the explicit bonds. Aromatic atoms are
// counted kekulé-style: each aromatic bond as a single bond, plus one ring
// double bond unless single bonds and hydrogens already meet the element's
// lowest valence. Lone-pair donors (pyrrole N-H, furan O, thiophene S) thus
// keep their lowest valence, while benzene carbons and pyridine nitrogens get
// the ring double bond.
func (a *Atom) bondValence() int {
	if !a.aromatic {
		var sum float64
		for _, bondIdx := range a.mol.adjacency[a.idx] {
			sum += a.mol.bonds[bondIdx].order.numElectrons()
		}
		return int(sum)
	}
	singles := 0
	for _, bondIdx := range a.mol.adjacency[a.idx] {
		order := a.mol.bonds[bondIdx].order
		if order == BondAromatic {
			singles++
		} else {
			singles += int(order.numElectrons())
		}
	}
	if allowed, found := defaultValences[a.symbol]; found && singles+a.TotalNumHs() < allowed[0] {
		return singles + 1
	}
	return singles
}

// Hybridization assigned during sanitization.
func (a *Atom) Hybridization() Hybridization { return a.hybridization }

// Neighbors returns the adjacent atoms, in bond emission order.
func (a *Atom) Neighbors() []*Atom {
	bondIndices := a.mol.adjacency[a.idx]
	neighbors := make([]*Atom, 0, len(bondIndices))
	for _, bondIdx := range bondIndices {
		neighbors = append(neighbors, a.mol.bonds[bondIdx].OtherAtom(a))
	}
	return neighbors
}

// Bonds returns the bonds incident to the atom.
func (a *Atom) Bonds() []*Bond {
	bondIndices := a.mol.adjacency[a.idx]
	bonds := make([]*Bond, 0, len(bondIndices))
	for _, bondIdx := range bondIndices {
		bonds = append(bonds, a.mol.bonds[bondIdx])
	}
	return bonds
}

// Bond between two atoms of a molecule.
type Bond struct {
	mol        *Molecule
	idx        int
	begin, end int
	order      BondOrder
	conjugated bool
}

// Index of the bond within its molecule.
func (b *Bond) Index() int { return b.idx }

// Order of the bond.
func (b *Bond) Order() BondOrder { return b.order }

// IsAromatic reports whether the bond is aromatic.
func (b *Bond) IsAromatic() bool { return b.order == BondAromatic }

// IsConjugated reports whether the bond is part of a conjugated system.
func (b *Bond) IsConjugated() bool { return b.conjugated }

// BeginAtom returns the first endpoint, in SMILES order.
func (b *Bond) BeginAtom() *Atom { return b.mol.atoms[b.begin] }

// EndAtom returns the second endpoint.
func (b *Bond) EndAtom() *Atom { return b.mol.atoms[b.end] }

// OtherAtom returns the endpoint that is not the given atom.
func (b *Bond) OtherAtom(a *Atom) *Atom {
	if b.begin == a.idx {
		return b.mol.atoms[b.end]
	}
	return b.mol.atoms[b.begin]
}

// isMultiple reports double, triple or aromatic order.
func (b *Bond) isMultiple() bool {
	return b.order == BondDouble || b.order == BondTriple || b.order == BondAromatic
}

// Molecule is a parsed and sanitized SMILES molecule. It is read-only after
// Parse returns.
type Molecule struct {
	smiles string
	atoms  []*Atom
	bonds  []*Bond

	// adjacency maps atom index to the indices of its incident bonds, in the
	// order the bonds were emitted by the parser.
	adjacency [][]int
}

// SMILES returns the string the molecule was parsed from.
func (m *Molecule) SMILES() string { return m.smiles }

// NumAtoms returns the number of heavy atoms.
func (m *Molecule) NumAtoms() int { return len(m.atoms) }

// NumBonds returns the number of (undirected) bonds.
func (m *Molecule) NumBonds() int { return len(m.bonds) }

// Atoms returns all atoms in parse order. The slice must not be modified.
func (m *Molecule) Atoms() []*Atom { return m.atoms }

// Atom returns the atom with the given index.
func (m *Molecule) Atom(idx int) *Atom { return m.atoms[idx] }

// Bonds returns all bonds in parse order. The slice must not be modified.
func (m *Molecule) Bonds() []*Bond { return m.bonds }

// BondBetween returns the bond connecting atoms i and j, or nil if they are
// not bonded.
func (m *Molecule) BondBetween(i, j int) *Bond {
	for _, bondIdx := range m.adjacency[i] {
		bond := m.bonds[bondIdx]
		if bond.begin == j || bond.end == j {
			return bond
		}
	}
	return nil
}

// addAtom appends a new atom and returns its index.
func (m *Molecule) addAtom(atom *Atom) int {
	atom.mol = m
	atom.idx = len(m.atoms)
	m.atoms = append(m.atoms, atom)
	m.adjacency = append(m.adjacency, nil)
	return atom.idx
}

// addBond appends a new bond between the two atom indices.
func (m *Molecule) addBond(begin, end int, order BondOrder) *Bond {
	bond := &Bond{mol: m, idx: len(m.bonds), begin: begin, end: end, order: order}
	m.bonds = append(m.bonds, bond)
	m.adjacency[begin] = append(m.adjacency[begin], bond.idx)
	m.adjacency[end] = append(m.adjacency[end], bond.idx)
	return bond
}
