package assistant

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/book"
	"github.com/ppiankov/lemma/internal/model"
)

// statement is one resolved (object, adjective, value) of a theorem side
type statement struct {
	path      string
	obj       *model.Example
	adjective string
	value     bool
}

// ApplyTheorem applies thm to the subject subjectID of ctx once, forward
// (conditions imply conclusions) and backward (an impossible conclusion with
// a single open condition negates that condition). With converse the two
// sides are swapped first. It returns the newly asserted facts; on a
// contradiction ctx is left untouched.
func (a *Assistant) ApplyTheorem(thm *model.Theorem, ctx model.Context, subjectID string, converse bool) ([]model.Conclusion, error) {
	if converse && !thm.Converse {
		return nil, fmt.Errorf("theorem '%s': %w", thm.ID, ErrNotConverse)
	}
	subject, ok := ctx.Get(thm.Type, subjectID)
	if !ok {
		return nil, &book.UnresolvablePathError{Type: thm.Type, Object: subjectID, Reason: "subject is missing from the context"}
	}

	conditionSide, conclusionSide := thm.Conditions, thm.Conclusions
	if converse {
		conditionSide, conclusionSide = thm.Conclusions, thm.Conditions
	}
	conditions, err := a.resolveSide(ctx, subject, conditionSide)
	if err != nil {
		return nil, fmt.Errorf("theorem '%s': %w", thm.ID, err)
	}
	conclusions, err := a.resolveSide(ctx, subject, conclusionSide)
	if err != nil {
		return nil, fmt.Errorf("theorem '%s': %w", thm.ID, err)
	}

	// 1. Count satisfied conditions, remembering the last open one
	satisfied := 0
	var open *statement
	for i := range conditions {
		c := &conditions[i]
		if v, known := c.obj.Known(c.adjective); known && v == c.value {
			satisfied++
		} else {
			open = c
		}
	}

	// 2. Conclusions are impossible once one is known opposite
	var impossible *statement
	for i := range conclusions {
		c := &conclusions[i]
		if v, known := c.obj.Known(c.adjective); known && v != c.value {
			impossible = c
			break
		}
	}

	proof := model.Proof{Type: thm.Type, Theorem: thm.ID, Subject: subjectID, Converse: converse}

	// 3. Forward rule
	if satisfied == len(conditions) {
		return a.assertAll(thm, ctx, proof, conclusions)
	}

	// 4. Backward rule
	if impossible != nil && satisfied == len(conditions)-1 {
		if _, known := open.obj.Known(open.adjective); known {
			return nil, nil
		}
		proof.Negated = &model.Negation{Path: impossible.path, Adjective: impossible.adjective}
		open.obj.Set(open.adjective, !open.value, proof)
		a.logAssertion(thm, open.obj, open.adjective, !open.value, proof)
		return []model.Conclusion{{Object: open.obj, Adjective: open.adjective, Value: !open.value}}, nil
	}
	return nil, nil
}

// assertAll plans every unset conclusion, raising on conflicts before any
// mutation, then asserts them.
func (a *Assistant) assertAll(thm *model.Theorem, ctx model.Context, proof model.Proof, conclusions []statement) ([]model.Conclusion, error) {
	planned := make(map[string]bool)
	var plan []statement
	for _, c := range conclusions {
		if v, known := c.obj.Known(c.adjective); known {
			if v != c.value {
				return nil, &ContradictionError{
					Object: c.obj, Adjective: c.adjective, Value: c.value,
					Theorem: thm.ID, Proof: proof, Prior: c.obj.Proofs[c.adjective],
				}
			}
			continue
		}
		key := objectKey(c.obj.Type, c.obj.ID) + "\x00" + c.adjective
		if prev, ok := planned[key]; ok {
			if prev != c.value {
				return nil, &ContradictionError{
					Object: c.obj, Adjective: c.adjective, Value: c.value,
					Theorem: thm.ID, Proof: proof, Prior: proof,
				}
			}
			continue
		}
		planned[key] = c.value
		plan = append(plan, c)
	}

	out := make([]model.Conclusion, 0, len(plan))
	for _, c := range plan {
		c.obj.Set(c.adjective, c.value, proof)
		a.logAssertion(thm, c.obj, c.adjective, c.value, proof)
		out = append(out, model.Conclusion{Object: c.obj, Adjective: c.adjective, Value: c.value})
	}
	return out, nil
}

// resolveSide resolves every path of a theorem side, sorted by path then adjective
func (a *Assistant) resolveSide(ctx model.Context, subject *model.Example, side model.Conditions) ([]statement, error) {
	paths := make([]string, 0, len(side))
	for p := range side {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []statement
	for _, path := range paths {
		obj, err := a.book.ResolvePath(ctx, subject, path)
		if err != nil {
			return nil, err
		}
		adjs := make([]string, 0, len(side[path]))
		for adj := range side[path] {
			adjs = append(adjs, adj)
		}
		sort.Strings(adjs)
		for _, adj := range adjs {
			out = append(out, statement{path: path, obj: obj, adjective: adj, value: side[path][adj]})
		}
	}
	return out, nil
}

func (a *Assistant) logAssertion(thm *model.Theorem, obj *model.Example, adjective string, value bool, proof model.Proof) {
	if ce := a.logger.Check(zap.DebugLevel, "asserted"); ce != nil {
		ce.Write(
			zap.String("theorem", thm.ID),
			zap.String("type", obj.Type),
			zap.String("object", obj.ID),
			zap.String("adjective", adjective),
			zap.Bool("value", value),
			zap.Bool("converse", proof.Converse),
			zap.Bool("negated", proof.Negated != nil),
		)
	}
}
