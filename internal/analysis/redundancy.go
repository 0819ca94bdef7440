package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/assistant"
	"github.com/ppiankov/lemma/internal/model"
	"github.com/ppiankov/lemma/internal/worker"
)

// TheoremRedundancy is the outcome of re-deriving a theorem from the others
type TheoremRedundancy struct {
	Type      string            `json:"type"`
	Theorem   string            `json:"theorem"`
	Redundant bool              `json:"redundant"`
	Vacuous   bool              `json:"vacuous"`         // The conditions alone are contradictory
	Proof     []model.ProofStep `json:"proof,omitempty"` // Alternative derivation of the conclusions
}

// Redundancy assumes the conditions of a theorem on a generic subject and
// deduces without it. The theorem is redundant if all its conclusions still
// follow.
func (an *Analyzer) Redundancy(typ, id string) (*TheoremRedundancy, error) {
	thm, ok := an.book.Theorem(typ, id)
	if !ok {
		return nil, fmt.Errorf("unknown theorem '%s' of type '%s'", id, typ)
	}
	result := &TheoremRedundancy{Type: typ, Theorem: id}

	ctx, subject, err := an.assume(typ, thm.Conditions)
	if err != nil {
		return nil, fmt.Errorf("theorem '%s': %w", id, err)
	}
	contradiction, err := an.deduce(ctx, assistant.DeduceOptions{ExcludeTheorems: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("theorem '%s': %w", id, err)
	}
	if contradiction {
		result.Redundant = true
		result.Vacuous = true
		return result, nil
	}

	var facts []fact
	for _, path := range sortedKeys(thm.Conclusions) {
		obj, err := an.book.ResolvePath(ctx, subject, path)
		if err != nil {
			return nil, fmt.Errorf("theorem '%s': %w", id, err)
		}
		for _, adj := range sortedKeys(thm.Conclusions[path]) {
			if v, known := obj.Known(adj); !known || v != thm.Conclusions[path][adj] {
				return result, nil
			}
			facts = append(facts, fact{obj: obj, adjective: adj})
		}
	}

	proof, err := an.traceAll(ctx, facts)
	if err != nil {
		return nil, fmt.Errorf("theorem '%s': %w", id, err)
	}
	result.Redundant = true
	result.Proof = proof
	return result, nil
}

// RedundancyAll checks every theorem in parallel, ordered by type then id
func (an *Analyzer) RedundancyAll(ctx context.Context) ([]*TheoremRedundancy, error) {
	var tasks []worker.Task[*TheoremRedundancy]
	for _, typ := range an.book.TheoremTypes() {
		for _, thm := range an.book.Theorems(typ) {
			tasks = append(tasks, func(_ context.Context) (*TheoremRedundancy, error) {
				return an.Redundancy(thm.Type, thm.ID)
			})
		}
	}

	results := worker.NewBatchProcessor[*TheoremRedundancy](an.workers).Process(ctx, tasks)
	out := make([]*TheoremRedundancy, 0, len(results))
	for _, r := range results {
		if r.Error != nil {
			return nil, r.Error
		}
		out = append(out, r.Value)
	}
	return out, nil
}

// AdjectiveRedundancy is a stored example fact that the theorems re-derive
type AdjectiveRedundancy struct {
	Type      string      `json:"type"`
	Example   string      `json:"example"`
	Adjective string      `json:"adjective"`
	Value     bool        `json:"value"`
	Proof     model.Proof `json:"proof"` // The application that re-derives it
}

// RedundantAdjectives finds example facts stated by hand that follow from
// the other hand-stated facts. Each example is checked in its connected
// component of the store, with theorem-derived facts removed first.
func (an *Analyzer) RedundantAdjectives(ctx context.Context) ([]AdjectiveRedundancy, error) {
	store := an.book.Examples()
	var tasks []worker.Task[[]AdjectiveRedundancy]
	for _, ex := range store.Objects() {
		tasks = append(tasks, func(_ context.Context) ([]AdjectiveRedundancy, error) {
			return an.redundantAdjectivesOf(ex.Type, ex.ID)
		})
	}

	results := worker.NewBatchProcessor[[]AdjectiveRedundancy](an.workers).Process(ctx, tasks)
	var out []AdjectiveRedundancy
	for _, r := range results {
		if r.Error != nil {
			return nil, r.Error
		}
		out = append(out, r.Value...)
	}
	return out, nil
}

func (an *Analyzer) redundantAdjectivesOf(typ, id string) ([]AdjectiveRedundancy, error) {
	local := an.localContext(typ, id)
	for _, obj := range local.Objects() {
		for adj, proof := range obj.Proofs {
			if proof.Structured() {
				delete(obj.Adjectives, adj)
				delete(obj.Proofs, adj)
			}
		}
	}

	ex, _ := local.Get(typ, id)
	var out []AdjectiveRedundancy
	for _, adj := range sortedKeys(ex.Adjectives) {
		value := ex.Adjectives[adj]
		trial := local.Clone()
		target, _ := trial.Get(typ, id)
		delete(target.Adjectives, adj)
		delete(target.Proofs, adj)

		contradiction, err := an.deduce(trial, noOptions)
		if err != nil {
			return nil, fmt.Errorf("example '%s' of type '%s': %w", id, typ, err)
		}
		if contradiction {
			an.logger.Warn("stored facts are contradictory", zap.String("type", typ), zap.String("example", id))
			return nil, nil
		}
		if v, known := target.Known(adj); known && v == value {
			out = append(out, AdjectiveRedundancy{Type: typ, Example: id, Adjective: adj, Value: value, Proof: target.Proofs[adj]})
		}
	}
	return out, nil
}

// localContext copies the connected component of an example: its arguments
// and the examples that take it as an argument, recursively
func (an *Analyzer) localContext(typ, id string) model.Context {
	store := an.book.Examples()
	referrers := make(map[string][]*model.Example)
	for _, obj := range store.Objects() {
		t, ok := an.book.Type(obj.Type)
		if !ok {
			continue
		}
		for _, p := range t.Parameters {
			if arg, ok := obj.Args[p.Name]; ok {
				key := p.Type + "/" + arg
				referrers[key] = append(referrers[key], obj)
			}
		}
	}

	local := make(model.Context)
	var add func(typ, id string)
	add = func(typ, id string) {
		if _, ok := local.Get(typ, id); ok {
			return
		}
		obj, ok := store.Get(typ, id)
		if !ok {
			return
		}
		local.Put(obj.Clone())
		if t, ok := an.book.Type(typ); ok {
			for _, p := range t.Parameters {
				add(p.Type, obj.Args[p.Name])
			}
		}
		for _, ref := range referrers[typ+"/"+id] {
			add(ref.Type, ref.ID)
		}
	}
	add(typ, id)
	return local
}
