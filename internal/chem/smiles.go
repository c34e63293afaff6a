package chem

import (
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// organicSubset are the elements that may appear outside brackets, with
// hydrogens implied. Two-letter symbols must be matched before one-letter ones.
var organicSubset = []string{"Cl", "Br", "B", "C", "N", "O", "P", "S", "F", "I"}

// aromaticSymbols are the lowercase aromatic forms allowed outside brackets.
var aromaticSymbols = map[byte]string{
	'b': "B", 'c': "C", 'n': "N", 'o': "O", 'p': "P", 's': "S",
}

// Parse converts a SMILES string into a sanitized Molecule.
//
// Sanitization assigns implicit hydrogens, hybridization and conjugation, and
// validates valences. If valence validation fails, it is retried with the
// valence checks disabled: a best-effort recovery, the molecule is still
// returned. Lexical errors are fatal.
func Parse(smiles string) (*Molecule, error) {
	mol, err := parseSMILES(smiles)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to parse SMILES %q", smiles)
	}
	if err = mol.sanitize(true); err != nil {
		klog.V(1).Infof("Sanitization of %q failed (%v), retrying with valence checks disabled", smiles, err)
		if err = mol.sanitize(false); err != nil {
			return nil, errors.WithMessagef(err, "failed to sanitize SMILES %q", smiles)
		}
	}
	return mol, nil
}

// ringClosure is a pending ring-bond: the atom that opened it and the bond
// symbol (if any) given at the opening side.
type ringClosure struct {
	atomIdx int
	order   BondOrder
}

// parseSMILES runs the single-pass SMILES reader, without sanitization.
func parseSMILES(smiles string) (*Molecule, error) {
	if strings.TrimSpace(smiles) == "" {
		return nil, errors.New("empty SMILES string")
	}
	mol := &Molecule{smiles: smiles}

	var branchStack []int
	prev := -1          // Index of the previous atom, -1 at a fragment start.
	pending := BondNone // Bond symbol seen since the previous atom.
	rings := map[int]ringClosure{}

	// bondTo connects a freshly added atom (or ring closure) to its partner.
	bondTo := func(begin, end int, symbol BondOrder) {
		order := symbol
		if order == BondNone {
			if mol.atoms[begin].aromatic && mol.atoms[end].aromatic {
				order = BondAromatic
			} else {
				order = BondSingle
			}
		}
		mol.addBond(begin, end, order)
	}

	pos := 0
	for pos < len(smiles) {
		c := smiles[pos]
		switch {
		case c == '(':
			if prev < 0 {
				return nil, errors.Errorf("branch opened before any atom at position %d", pos)
			}
			branchStack = append(branchStack, prev)
			pos++

		case c == ')':
			if len(branchStack) == 0 {
				return nil, errors.Errorf("unmatched ')' at position %d", pos)
			}
			prev = branchStack[len(branchStack)-1]
			branchStack = branchStack[:len(branchStack)-1]
			pos++

		case c == '-':
			pending = BondSingle
			pos++
		case c == '=':
			pending = BondDouble
			pos++
		case c == '#':
			pending = BondTriple
			pos++
		case c == ':':
			pending = BondAromatic
			pos++
		case c == '/' || c == '\\':
			// Directional bonds: cis/trans information is dropped.
			pending = BondSingle
			pos++

		case c == '.':
			// Fragment separator: next atom starts unbonded.
			if pending != BondNone {
				return nil, errors.Errorf("bond symbol before '.' at position %d", pos)
			}
			prev = -1
			pos++

		case c >= '0' && c <= '9', c == '%':
			if prev < 0 {
				return nil, errors.Errorf("ring closure digit before any atom at position %d", pos)
			}
			var ringNum int
			if c == '%' {
				if pos+2 >= len(smiles) || !isDigit(smiles[pos+1]) || !isDigit(smiles[pos+2]) {
					return nil, errors.Errorf("'%%' must be followed by two digits at position %d", pos)
				}
				ringNum = int(smiles[pos+1]-'0')*10 + int(smiles[pos+2]-'0')
				pos += 3
			} else {
				ringNum = int(c - '0')
				pos++
			}
			if open, found := rings[ringNum]; found {
				delete(rings, ringNum)
				if open.atomIdx == prev {
					return nil, errors.Errorf("ring bond %d closes on its own atom", ringNum)
				}
				order := pending
				if order == BondNone {
					order = open.order
				} else if open.order != BondNone && open.order != order {
					return nil, errors.Errorf("ring bond %d has conflicting bond symbols", ringNum)
				}
				bondTo(open.atomIdx, prev, order)
			} else {
				rings[ringNum] = ringClosure{atomIdx: prev, order: pending}
			}
			pending = BondNone

		case c == '[':
			atom, width, err := parseBracketAtom(smiles[pos:])
			if err != nil {
				return nil, errors.WithMessagef(err, "at position %d", pos)
			}
			pos += width
			idx := mol.addAtom(atom)
			if prev >= 0 {
				bondTo(prev, idx, pending)
			}
			pending = BondNone
			prev = idx

		default:
			atom, width := parseOrganicAtom(smiles[pos:])
			if atom == nil {
				return nil, errors.Errorf("unexpected character %q at position %d", c, pos)
			}
			pos += width
			idx := mol.addAtom(atom)
			if prev >= 0 {
				bondTo(prev, idx, pending)
			}
			pending = BondNone
			prev = idx
		}
	}

	if len(branchStack) > 0 {
		return nil, errors.Errorf("%d unclosed '(' branches", len(branchStack))
	}
	if len(rings) > 0 {
		return nil, errors.Errorf("%d unclosed ring bonds", len(rings))
	}
	if pending != BondNone {
		return nil, errors.New("dangling bond symbol at end of string")
	}
	return mol, nil
}

// parseOrganicAtom matches an organic-subset atom (aliphatic or aromatic) at
// the start of s. It returns nil if nothing matches.
func parseOrganicAtom(s string) (atom *Atom, width int) {
	for _, symbol := range organicSubset {
		if strings.HasPrefix(s, symbol) {
			return &Atom{symbol: symbol, explicitHs: -1}, len(symbol)
		}
	}
	if symbol, found := aromaticSymbols[s[0]]; found {
		return &Atom{symbol: symbol, aromatic: true, explicitHs: -1}, 1
	}
	return nil, 0
}

// parseBracketAtom parses a "[...]" atom expression, s starting at '['.
func parseBracketAtom(s string) (atom *Atom, width int, err error) {
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return nil, 0, errors.New("unclosed bracket atom")
	}
	body := s[1:end]
	width = end + 1
	if body == "" {
		return nil, 0, errors.New("empty bracket atom")
	}

	atom = &Atom{explicitHs: 0}
	pos := 0

	// Isotope.
	for pos < len(body) && isDigit(body[pos]) {
		atom.isotope = atom.isotope*10 + int(body[pos]-'0')
		pos++
	}

	// Element symbol: an upper-case letter optionally followed by a lower-case
	// one, or a lower-case aromatic symbol.
	if pos >= len(body) {
		return nil, 0, errors.New("bracket atom missing element symbol")
	}
	switch {
	case body[pos] >= 'A' && body[pos] <= 'Z':
		// A following lowercase letter belongs to the symbol (Na, Cl, Se...);
		// an uppercase 'H' afterwards is the hydrogen count.
		symbolEnd := pos + 1
		if symbolEnd < len(body) && body[symbolEnd] >= 'a' && body[symbolEnd] <= 'z' {
			symbolEnd++
		}
		atom.symbol = body[pos:symbolEnd]
		pos = symbolEnd
	case body[pos] >= 'a' && body[pos] <= 'z':
		aromaticSym, found := aromaticSymbols[body[pos]]
		if !found && strings.HasPrefix(body[pos:], "se") {
			aromaticSym, found = "Se", true
			pos++
		}
		if !found {
			return nil, 0, errors.Errorf("unknown aromatic symbol %q in bracket atom", body[pos])
		}
		atom.symbol = aromaticSym
		atom.aromatic = true
		pos++
	default:
		return nil, 0, errors.Errorf("invalid element symbol in bracket atom %q", body)
	}

	// Chirality markers "@" / "@@": ignored.
	for pos < len(body) && body[pos] == '@' {
		pos++
	}

	// Hydrogen count.
	if pos < len(body) && body[pos] == 'H' {
		pos++
		atom.explicitHs = 1
		if pos < len(body) && isDigit(body[pos]) {
			atom.explicitHs = int(body[pos] - '0')
			pos++
		}
	}

	// Charge: "+", "-", "++", "+2", etc.
	if pos < len(body) && (body[pos] == '+' || body[pos] == '-') {
		sign := 1
		if body[pos] == '-' {
			sign = -1
		}
		symbol := body[pos]
		count := 1
		pos++
		for pos < len(body) && body[pos] == symbol {
			count++
			pos++
		}
		if pos < len(body) && isDigit(body[pos]) {
			count = int(body[pos] - '0')
			pos++
		}
		atom.charge = sign * count
	}

	// Atom class, ":<digits>", ignored.
	if pos < len(body) && body[pos] == ':' {
		pos++
		for pos < len(body) && isDigit(body[pos]) {
			pos++
		}
	}

	if pos != len(body) {
		return nil, 0, errors.Errorf("trailing characters %q in bracket atom", body[pos:])
	}
	return atom, width, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
