package book

import (
	"fmt"
	"sort"

	"github.com/ppiankov/lemma/internal/model"
)

// Book holds the schema (types, adjectives, theorems) and the example store
type Book struct {
	types      map[string]*model.Type
	adjectives map[string]map[string]*model.Adjective // type -> id
	theorems   map[string]map[string]*model.Theorem   // type -> id
	examples   model.Context

	descriptions map[Kind]map[string]map[string]string // kind -> type -> id
	frozen       bool
}

// New creates an empty, unfrozen book
func New() *Book {
	return &Book{
		types:        make(map[string]*model.Type),
		adjectives:   make(map[string]map[string]*model.Adjective),
		theorems:     make(map[string]map[string]*model.Theorem),
		examples:     make(model.Context),
		descriptions: make(map[Kind]map[string]map[string]string),
	}
}

// Add classifies a decoded record and inserts it
func (b *Book) Add(id string, data map[string]any) error {
	if b.frozen {
		return fmt.Errorf("add '%s': %w", id, ErrFrozen)
	}
	rec, err := Classify(id, data)
	if err != nil {
		return err
	}
	return b.Insert(rec)
}

// Insert adds an already classified record
func (b *Book) Insert(rec Record) error {
	if b.frozen {
		return fmt.Errorf("insert '%s': %w", rec.RecordID(), ErrFrozen)
	}
	if !IsWord(rec.RecordID()) {
		return fmt.Errorf("%w: '%s'", ErrMalformedID, rec.RecordID())
	}

	switch r := rec.(type) {
	case *TypeRecord:
		if _, ok := b.types[r.Type.ID]; ok {
			return fmt.Errorf("type '%s': %w", r.Type.ID, ErrDuplicateID)
		}
		t := r.Type
		t.Parameters = append([]model.Parameter(nil), r.Type.Parameters...)
		if t.Name == "" {
			t.Name = t.ID
		}
		b.types[t.ID] = &t
		b.describe(KindType, "", t.ID, r.Description)

	case *AdjectiveRecord:
		adj := r.Adjective
		if adj.Name == "" {
			adj.Name = adj.ID
		}
		if _, ok := b.adjectives[adj.Type][adj.ID]; ok {
			return fmt.Errorf("adjective '%s' of type '%s': %w", adj.ID, adj.Type, ErrDuplicateID)
		}
		if b.adjectives[adj.Type] == nil {
			b.adjectives[adj.Type] = make(map[string]*model.Adjective)
		}
		b.adjectives[adj.Type][adj.ID] = &adj
		b.describe(KindAdjective, adj.Type, adj.ID, r.Description)

	case *TheoremRecord:
		thm := r.Theorem
		if thm.Name == "" {
			thm.Name = thm.ID
		}
		if _, ok := b.theorems[thm.Type][thm.ID]; ok {
			return fmt.Errorf("theorem '%s' of type '%s': %w", thm.ID, thm.Type, ErrDuplicateID)
		}
		if thm.Conditions == nil {
			thm.Conditions = make(model.Conditions)
		}
		if b.theorems[thm.Type] == nil {
			b.theorems[thm.Type] = make(map[string]*model.Theorem)
		}
		b.theorems[thm.Type][thm.ID] = &thm
		b.describe(KindTheorem, thm.Type, thm.ID, r.Description)

	case *ExampleRecord:
		ex := r.Example.Clone()
		if ex.Name == "" {
			ex.Name = ex.ID
		}
		if _, ok := b.examples.Get(ex.Type, ex.ID); ok {
			return fmt.Errorf("example '%s' of type '%s': %w", ex.ID, ex.Type, ErrDuplicateID)
		}
		b.examples.Put(ex)
		b.describe(KindExample, ex.Type, ex.ID, r.Description)

	default:
		return structural("record", rec.RecordID(), "unsupported record %T", rec)
	}
	return nil
}

func (b *Book) describe(kind Kind, typ, id, text string) {
	if text == "" {
		return
	}
	if b.descriptions[kind] == nil {
		b.descriptions[kind] = make(map[string]map[string]string)
	}
	if b.descriptions[kind][typ] == nil {
		b.descriptions[kind][typ] = make(map[string]string)
	}
	b.descriptions[kind][typ][id] = text
}

// Frozen reports whether Verify has succeeded
func (b *Book) Frozen() bool {
	return b.frozen
}

// Type returns a registered type
func (b *Book) Type(id string) (*model.Type, bool) {
	t, ok := b.types[id]
	return t, ok
}

// Types returns the sorted type ids
func (b *Book) Types() []string {
	return sortedKeys(b.types)
}

// Adjective returns an adjective of a type
func (b *Book) Adjective(typ, id string) (*model.Adjective, bool) {
	adj, ok := b.adjectives[typ][id]
	return adj, ok
}

// Adjectives returns the sorted adjective ids of a type
func (b *Book) Adjectives(typ string) []string {
	return sortedKeys(b.adjectives[typ])
}

// Theorem returns a theorem about a type
func (b *Book) Theorem(typ, id string) (*model.Theorem, bool) {
	thm, ok := b.theorems[typ][id]
	return thm, ok
}

// Theorems returns the theorems about a type sorted by id
func (b *Book) Theorems(typ string) []*model.Theorem {
	ids := sortedKeys(b.theorems[typ])
	out := make([]*model.Theorem, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.theorems[typ][id])
	}
	return out
}

// TheoremTypes returns the sorted ids of types that have theorems
func (b *Book) TheoremTypes() []string {
	types := make([]string, 0, len(b.theorems))
	for typ, thms := range b.theorems {
		if len(thms) > 0 {
			types = append(types, typ)
		}
	}
	sort.Strings(types)
	return types
}

// Examples returns the example store. Callers must not mutate it while
// another goroutine reads it.
func (b *Book) Examples() model.Context {
	return b.examples
}

// Description returns the free-text description recorded for an entry.
// typ is ignored for types.
func (b *Book) Description(kind Kind, typ, id string) string {
	if kind == KindType {
		typ = ""
	}
	return b.descriptions[kind][typ][id]
}

// Stats counts the book entries
func (b *Book) Stats() model.BookStats {
	stats := model.BookStats{Types: len(b.types), Examples: b.examples.Len()}
	for _, adjs := range b.adjectives {
		stats.Adjectives += len(adjs)
	}
	for _, thms := range b.theorems {
		stats.Theorems += len(thms)
	}
	return stats
}
