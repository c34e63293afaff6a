package chem

import (
	"github.com/pkg/errors"
)

// defaultValences lists the allowed valences per element for implicit-hydrogen
// assignment, lowest first. Elements not listed never receive implicit
// hydrogens (bracket atoms carry their count explicitly).
var defaultValences = map[string][]int{
	"B":  {3},
	"C":  {4},
	"N":  {3, 5},
	"O":  {2},
	"P":  {3, 5},
	"S":  {2, 4, 6},
	"F":  {1},
	"Cl": {1},
	"Br": {1},
	"I":  {1},
}

// sanitize assigns implicit hydrogens, hybridization and conjugation flags.
// With strict set, atoms whose valence exceeds every allowed value for their
// element are an error; the caller may retry without the check.
func (m *Molecule) sanitize(strict bool) error {
	for _, atom := range m.atoms {
		if err := atom.assignImplicitHs(strict); err != nil {
			return err
		}
	}
	for _, atom := range m.atoms {
		atom.assignHybridization()
	}
	for _, bond := range m.bonds {
		bond.assignConjugation()
	}
	return nil
}

// assignImplicitHs fills in the implicit hydrogen count for organic-subset
// atoms: the lowest allowed valence that accommodates the existing bonds.
func (a *Atom) assignImplicitHs(strict bool) error {
	bondValence := a.bondValence()
	if a.explicitHs >= 0 {
		// Bracket atom: hydrogens are explicit, only validate.
		if strict {
			return a.checkValence(bondValence + a.explicitHs)
		}
		return nil
	}

	allowed, found := defaultValences[a.symbol]
	if !found {
		a.implicitHs = 0
		return nil
	}
	if a.aromatic {
		// Aromatic atoms never promote to a higher valence state: thiophene
		// sulfur stays divalent, pyridine nitrogen trivalent.
		allowed = allowed[:1]
	}
	target := -1
	for _, v := range allowed {
		if v >= bondValence {
			target = v
			break
		}
	}
	if target < 0 {
		a.implicitHs = 0
		if strict && !a.aromatic {
			return errors.Errorf("atom %d (%s) has bond valence %d, above the maximum %d for the element",
				a.idx, a.symbol, bondValence, allowed[len(allowed)-1])
		}
		return nil
	}
	a.implicitHs = target - bondValence
	return nil
}

// checkValence validates the total valence (bonds + hydrogens) of a bracket atom.
func (a *Atom) checkValence(total int) error {
	allowed, found := defaultValences[a.symbol]
	if !found {
		return nil
	}
	maxAllowed := allowed[len(allowed)-1]
	if a.charge > 0 {
		maxAllowed += a.charge
	} else {
		maxAllowed -= a.charge // Anions keep electrons, lower bonding capacity is fine.
	}
	if total > maxAllowed {
		return errors.Errorf("atom %d (%s, charge %+d) has valence %d, above the allowed maximum %d",
			a.idx, a.symbol, a.charge, total, maxAllowed)
	}
	return nil
}

// assignHybridization derives the hybridization from the atom's bonds:
// aromatic atoms are sp2, a triple bond or two doubles make sp, one double
// makes sp2, anything else sp3. Hydrogen has no p orbitals to mix.
func (a *Atom) assignHybridization() {
	if a.symbol == "H" {
		a.hybridization = HybridizationS
		return
	}
	if a.aromatic {
		a.hybridization = HybridizationSP2
		return
	}
	var doubles, triples int
	for _, bond := range a.Bonds() {
		switch bond.order {
		case BondDouble:
			doubles++
		case BondTriple:
			triples++
		}
	}
	switch {
	case triples > 0 || doubles >= 2:
		a.hybridization = HybridizationSP
	case doubles == 1:
		a.hybridization = HybridizationSP2
	default:
		a.hybridization = HybridizationSP3
	}
}

// assignConjugation marks the bond conjugated when it is aromatic, when it is
// a single bond bridging two multiple bonds (the central bond of butadiene),
// or when it is a multiple bond one single bond away from another multiple
// bond (the terminal bonds of butadiene).
func (b *Bond) assignConjugation() {
	if b.order == BondAromatic {
		b.conjugated = true
		return
	}
	if !b.isMultiple() {
		b.conjugated = hasOtherMultiple(b.BeginAtom(), b) && hasOtherMultiple(b.EndAtom(), b)
		return
	}
	for _, atom := range []*Atom{b.BeginAtom(), b.EndAtom()} {
		for _, single := range atom.Bonds() {
			if single == b || single.isMultiple() {
				// An adjacent multiple bond (cumulene) is not conjugation.
				continue
			}
			if hasOtherMultiple(single.OtherAtom(atom), single) {
				b.conjugated = true
				return
			}
		}
	}
}

// hasOtherMultiple reports whether the atom has a multiple bond other than skip.
func hasOtherMultiple(atom *Atom, skip *Bond) bool {
	for _, bond := range atom.Bonds() {
		if bond != skip && bond.isMultiple() {
			return true
		}
	}
	return false
}
