package book

import (
	"fmt"

	"github.com/ppiankov/lemma/internal/model"
)

// TraceProof reconstructs the theorem applications that justify a known
// adjective, dependencies first. Each application appears once.
func (b *Book) TraceProof(ctx model.Context, obj *model.Example, adjective string) ([]model.ProofStep, error) {
	if obj == nil {
		return nil, &ProofError{Adjective: adjective, Reason: "no object"}
	}
	value, known := obj.Known(adjective)
	if !known {
		return nil, &ProofError{Type: obj.Type, Object: obj.ID, Adjective: adjective, Reason: "adjective is not known"}
	}
	return b.TraceProofWithHint(ctx, obj, adjective, obj.Proofs[adjective], value)
}

// TraceProofWithHint traces a fact from an explicit proof instead of the
// stored one. It is used for the side of a contradiction that was never
// asserted.
func (b *Book) TraceProofWithHint(ctx model.Context, obj *model.Example, adjective string, hint model.Proof, value bool) ([]model.ProofStep, error) {
	if obj == nil {
		return nil, &ProofError{Adjective: adjective, Reason: "no object"}
	}
	t := &tracer{
		book:     b,
		ctx:      ctx,
		visiting: make(map[string]bool),
		emitted:  make(map[string]bool),
	}
	if err := t.trace(obj, adjective, value, hint); err != nil {
		return nil, err
	}
	return t.steps, nil
}

type tracer struct {
	book     *Book
	ctx      model.Context
	visiting map[string]bool // facts on the current dependency chain
	emitted  map[string]bool // applications already in steps
	steps    []model.ProofStep
}

type fact struct {
	obj       *model.Example
	adjective string
}

func factKey(obj *model.Example, adjective string, value bool) string {
	return fmt.Sprintf("%s|%s|%s|%t", obj.Type, obj.ID, adjective, value)
}

func stepKey(p model.Proof) string {
	key := fmt.Sprintf("%s|%s|%s|%t", p.Type, p.Theorem, p.Subject, p.Converse)
	if p.Negated != nil {
		key += "|" + p.Negated.Path + "|" + p.Negated.Adjective
	}
	return key
}

func (t *tracer) trace(obj *model.Example, adjective string, value bool, proof model.Proof) error {
	if !proof.Structured() {
		return nil
	}

	key := factKey(obj, adjective, value)
	if t.visiting[key] {
		return &ProofError{Type: obj.Type, Object: obj.ID, Adjective: adjective, Reason: "proof depends on itself"}
	}
	t.visiting[key] = true
	defer delete(t.visiting, key)

	deps, err := t.dependencies(obj, adjective, proof)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		depValue, known := dep.obj.Known(dep.adjective)
		if !known {
			return &ProofError{
				Type: obj.Type, Object: obj.ID, Adjective: adjective,
				Reason: fmt.Sprintf("depends on unknown adjective '%s' of '%s'", dep.adjective, dep.obj.ID),
			}
		}
		if err := t.trace(dep.obj, dep.adjective, depValue, dep.obj.Proofs[dep.adjective]); err != nil {
			return err
		}
	}

	if sk := stepKey(proof); !t.emitted[sk] {
		t.emitted[sk] = true
		t.steps = append(t.steps, model.ProofStep{
			Proof:      proof,
			ObjectType: obj.Type,
			Object:     obj.ID,
			Adjective:  adjective,
			Value:      value,
		})
	}
	return nil
}

// dependencies lists the facts a theorem application relied on: its
// conditions, or for a backward application the impossible conclusion plus
// every other condition.
func (t *tracer) dependencies(obj *model.Example, adjective string, proof model.Proof) ([]fact, error) {
	fail := func(format string, args ...any) error {
		return &ProofError{Type: obj.Type, Object: obj.ID, Adjective: adjective, Reason: fmt.Sprintf(format, args...)}
	}

	thm, ok := t.book.Theorem(proof.Type, proof.Theorem)
	if !ok {
		return nil, fail("unknown theorem '%s' of type '%s'", proof.Theorem, proof.Type)
	}
	subject, ok := t.ctx.Get(proof.Type, proof.Subject)
	if !ok {
		return nil, fail("missing subject '%s' of type '%s'", proof.Subject, proof.Type)
	}
	conditions := thm.Conditions
	if proof.Converse {
		conditions = thm.Conclusions
	}

	var deps []fact
	if proof.Negated != nil {
		negObj, err := t.book.ResolvePath(t.ctx, subject, proof.Negated.Path)
		if err != nil {
			return nil, fail("%v", err)
		}
		deps = append(deps, fact{obj: negObj, adjective: proof.Negated.Adjective})
	}
	for _, path := range sortedKeys(conditions) {
		condObj, err := t.book.ResolvePath(t.ctx, subject, path)
		if err != nil {
			return nil, fail("%v", err)
		}
		for _, adj := range sortedKeys(conditions[path]) {
			if proof.Negated != nil && sameObject(condObj, obj) && adj == adjective {
				continue
			}
			deps = append(deps, fact{obj: condObj, adjective: adj})
		}
	}
	return deps, nil
}

func sameObject(a, b *model.Example) bool {
	return a.Type == b.Type && a.ID == b.ID
}
