package analysis

import (
	"fmt"
)

// Implies reports whether every object of typ with adjective a also has b
func (an *Analyzer) Implies(typ, a, b string) (*Implication, error) {
	if _, ok := an.book.Adjective(typ, a); !ok {
		return nil, fmt.Errorf("unknown adjective '%s' of type '%s'", a, typ)
	}
	if _, ok := an.book.Adjective(typ, b); !ok {
		return nil, fmt.Errorf("unknown adjective '%s' of type '%s'", b, typ)
	}

	ctx, subject, err := an.assume(typ, map[string]map[string]bool{"": {a: true}})
	if err != nil {
		return nil, err
	}
	contradiction, err := an.deduce(ctx, noOptions)
	if err != nil {
		return nil, err
	}
	if contradiction {
		return &Implication{Holds: true, Vacuous: true}, nil
	}

	if v, known := subject.Known(b); !known || !v {
		return &Implication{}, nil
	}
	proof, err := an.traceAll(ctx, []fact{{obj: subject, adjective: b}})
	if err != nil {
		return nil, fmt.Errorf("trace '%s': %w", b, err)
	}
	return &Implication{Holds: true, Proof: proof}, nil
}

// Comparison holds both directions of an implication check
type Comparison struct {
	Type      string       `json:"type"`
	A         string       `json:"a"`
	B         string       `json:"b"`
	AImpliesB *Implication `json:"a_implies_b"`
	BImpliesA *Implication `json:"b_implies_a"`
}

// Equivalent reports whether a and b imply each other
func (c *Comparison) Equivalent() bool {
	return c.AImpliesB.Holds && c.BImpliesA.Holds
}

// Compare checks a => b and b => a
func (an *Analyzer) Compare(typ, a, b string) (*Comparison, error) {
	ab, err := an.Implies(typ, a, b)
	if err != nil {
		return nil, err
	}
	ba, err := an.Implies(typ, b, a)
	if err != nil {
		return nil, err
	}
	return &Comparison{Type: typ, A: a, B: b, AImpliesB: ab, BImpliesA: ba}, nil
}
