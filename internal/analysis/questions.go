package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/assistant"
	"github.com/ppiankov/lemma/internal/model"
	"github.com/ppiankov/lemma/internal/worker"
)

// Constraints restricts the values an adjective may take in a question. An
// adjective mapped to an empty list never appears; unlisted adjectives take
// either value.
type Constraints map[string][]bool

func (c Constraints) allows(adj string, value bool) bool {
	values, ok := c[adj]
	if !ok {
		return true
	}
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// Question is an adjective combination that no stored example has and no
// theorem rules out
type Question struct {
	Type       string          `json:"type"`
	Adjectives map[string]bool `json:"adjectives"`
	Context    model.Context   `json:"-"` // The question as a search pattern
	deduced    model.Context
}

type candidate struct {
	adjectives []string
	values     []bool
}

// Questions lists the open questions about typ combining up to
// maxAdjectives adjectives, at least one of them positive. A question
// implied by another one is dropped.
func (an *Analyzer) Questions(ctx context.Context, typ string, constraints Constraints, maxAdjectives int) ([]Question, error) {
	if _, ok := an.book.Type(typ); !ok {
		return nil, fmt.Errorf("unknown type '%s'", typ)
	}
	if maxAdjectives <= 0 {
		maxAdjectives = 1
	}

	// 1. Generate candidates
	adjectives := an.book.Adjectives(typ)
	var candidates []candidate
	for n := 1; n <= maxAdjectives && n <= len(adjectives); n++ {
		for _, adjs := range combinations(adjectives, n) {
			for _, values := range product(n) {
				if !anyTrue(values) || !fits(constraints, adjs, values) {
					continue
				}
				candidates = append(candidates, candidate{adjectives: adjs, values: values})
			}
		}
	}
	an.logger.Debug("evaluating question candidates", zap.String("type", typ), zap.Int("candidates", len(candidates)))

	// 2. Evaluate in parallel
	tasks := make([]worker.Task[*Question], len(candidates))
	for i, c := range candidates {
		tasks[i] = func(_ context.Context) (*Question, error) {
			return an.evaluate(typ, c)
		}
	}
	results := worker.NewBatchProcessor[*Question](an.workers).Process(ctx, tasks)

	var questions []Question
	for _, r := range results {
		if r.Error != nil {
			return nil, r.Error
		}
		if r.Value != nil {
			questions = append(questions, *r.Value)
		}
	}

	// 3. If A implies B, B adds nothing
	removed := make([]bool, len(questions))
	for i := range questions {
		if removed[i] {
			continue
		}
		for j := range questions {
			if i == j || removed[j] {
				continue
			}
			if an.questionImplies(typ, questions[i], questions[j]) {
				removed[j] = true
			}
		}
	}
	var out []Question
	for i, q := range questions {
		if !removed[i] {
			out = append(out, q)
		}
	}
	return out, nil
}

// evaluate returns the candidate as a question, or nil when an example has
// it or it is contradictory
func (an *Analyzer) evaluate(typ string, c candidate) (*Question, error) {
	facts := make(map[string]bool, len(c.adjectives))
	for i, adj := range c.adjectives {
		facts[adj] = c.values[i]
	}

	pattern, err := an.book.CreateContextFromType(typ, SubjectID)
	if err != nil {
		return nil, err
	}
	subject, _ := pattern.Get(typ, SubjectID)
	for adj, v := range facts {
		subject.Adjectives[adj] = v
	}

	results, err := an.assistant.Search(pattern)
	if errors.Is(err, assistant.ErrSearchBudgetExceeded) {
		an.logger.Debug("question search budget exceeded", zap.String("type", typ), zap.Any("adjectives", facts))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(results) > 0 {
		return nil, nil
	}

	deduced := pattern.Clone()
	for _, obj := range deduced.Objects() {
		for adj := range obj.Adjectives {
			obj.Proofs[adj] = model.Proof{Text: "assumption"}
		}
	}
	contradiction, err := an.deduce(deduced, noOptions)
	if err != nil {
		return nil, err
	}
	if contradiction {
		return nil, nil
	}
	return &Question{Type: typ, Adjectives: facts, Context: pattern, deduced: deduced}, nil
}

// questionImplies reports whether every object answering a answers b
func (an *Analyzer) questionImplies(typ string, a, b Question) bool {
	m := assistant.NewMatcher(an.book, b.Context, a.deduced)
	src, _ := b.Context.Get(typ, SubjectID)
	tgt, _ := a.deduced.Get(typ, SubjectID)
	return m.Match(src, tgt)
}

// combinations returns the size-n subsets of items, in order
func combinations(items []string, n int) [][]string {
	var out [][]string
	var pick func(start int, current []string)
	pick = func(start int, current []string) {
		if len(current) == n {
			out = append(out, append([]string(nil), current...))
			return
		}
		for i := start; i < len(items); i++ {
			pick(i+1, append(current, items[i]))
		}
	}
	pick(0, nil)
	return out
}

// product returns every assignment of n booleans, true first
func product(n int) [][]bool {
	if n == 0 {
		return [][]bool{{}}
	}
	var out [][]bool
	for _, prefix := range product(n - 1) {
		for _, v := range []bool{true, false} {
			out = append(out, append(append([]bool(nil), prefix...), v))
		}
	}
	return out
}

func anyTrue(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

func fits(c Constraints, adjectives []string, values []bool) bool {
	for i, adj := range adjectives {
		if !c.allows(adj, values[i]) {
			return false
		}
	}
	return true
}
