package analysis

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/assistant"
	"github.com/ppiankov/lemma/internal/book"
	"github.com/ppiankov/lemma/internal/model"
)

// SubjectID is the id of the synthesized subject in every analysis context
const SubjectID = "X"

var noOptions = assistant.DeduceOptions{}

// Analyzer answers questions about the theorem set by deducing on
// synthesized contexts. It never mutates the book.
type Analyzer struct {
	book      *book.Book
	assistant *assistant.Assistant
	workers   int
	logger    *zap.Logger
}

// NewAnalyzer creates a new analyzer running batch jobs on workers goroutines
func NewAnalyzer(asst *assistant.Assistant, workers int, logger *zap.Logger) *Analyzer {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		book:      asst.Book(),
		assistant: asst,
		workers:   workers,
		logger:    logger,
	}
}

// Implication is the outcome of assuming hypotheses on a generic subject
type Implication struct {
	Holds   bool              `json:"holds"`
	Vacuous bool              `json:"vacuous"` // The hypotheses are contradictory
	Proof   []model.ProofStep `json:"proof,omitempty"`
}

// assume synthesizes a subject of typ and sets the given facts on it
func (an *Analyzer) assume(typ string, facts map[string]map[string]bool) (model.Context, *model.Example, error) {
	ctx, err := an.book.CreateContextFromType(typ, SubjectID)
	if err != nil {
		return nil, nil, err
	}
	subject, _ := ctx.Get(typ, SubjectID)
	for _, path := range sortedKeys(facts) {
		obj, err := an.book.ResolvePath(ctx, subject, path)
		if err != nil {
			return nil, nil, err
		}
		for _, adj := range sortedKeys(facts[path]) {
			obj.Set(adj, facts[path][adj], model.Proof{Text: "assumption"})
		}
	}
	return ctx, subject, nil
}

// deduce runs a deduction, reporting a contradiction as a bool
func (an *Analyzer) deduce(ctx model.Context, opts assistant.DeduceOptions) (bool, error) {
	_, err := an.assistant.Deduce(ctx, opts)
	var contra *assistant.ContradictionError
	if errors.As(err, &contra) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("deduce: %w", err)
	}
	return false, nil
}

// traceAll traces several facts into one script, each application once
func (an *Analyzer) traceAll(ctx model.Context, facts []fact) ([]model.ProofStep, error) {
	var out []model.ProofStep
	seen := make(map[string]bool)
	for _, f := range facts {
		steps, err := an.book.TraceProof(ctx, f.obj, f.adjective)
		if err != nil {
			return nil, err
		}
		for _, s := range steps {
			key := StepKey(s.Proof)
			if !seen[key] {
				seen[key] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}

type fact struct {
	obj       *model.Example
	adjective string
}

// StepKey identifies a theorem application
func StepKey(p model.Proof) string {
	key := fmt.Sprintf("%s|%s|%s|%t", p.Type, p.Theorem, p.Subject, p.Converse)
	if p.Negated != nil {
		key += "|" + p.Negated.Path + "|" + p.Negated.Adjective
	}
	return key
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
