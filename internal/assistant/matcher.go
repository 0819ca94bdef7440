package assistant

import (
	"github.com/ppiankov/lemma/internal/book"
	"github.com/ppiankov/lemma/internal/model"
)

// Matcher embeds pattern objects from a source context into a target
// context. Bindings are injective per type.
type Matcher struct {
	book     *book.Book
	source   model.Context
	target   model.Context
	bindings map[string]map[string]string // type -> source id -> target id
	reverse  map[string]map[string]string // type -> target id -> source id
}

// NewMatcher creates a matcher with no bindings
func NewMatcher(b *book.Book, source, target model.Context) *Matcher {
	return &Matcher{
		book:     b,
		source:   source,
		target:   target,
		bindings: make(map[string]map[string]string),
		reverse:  make(map[string]map[string]string),
	}
}

// Bound returns the target id src is bound to
func (m *Matcher) Bound(src *model.Example) (string, bool) {
	id, ok := m.bindings[src.Type][src.ID]
	return id, ok
}

// CanBind runs the cheap checks for binding src to tgt: type, existing
// bindings on both sides, and the adjective subset. Arguments are not
// visited.
func (m *Matcher) CanBind(src, tgt *model.Example) bool {
	if src.Type != tgt.Type {
		return false
	}
	if bound, ok := m.bindings[src.Type][src.ID]; ok {
		return bound == tgt.ID
	}
	if _, taken := m.reverse[tgt.Type][tgt.ID]; taken {
		return false
	}
	for adj, want := range src.Adjectives {
		if got, ok := tgt.Adjectives[adj]; !ok || got != want {
			return false
		}
	}
	return true
}

// Match binds src to tgt and recurses into their arguments. On failure the
// matcher may hold partial bindings; callers that backtrack work on a Clone.
func (m *Matcher) Match(src, tgt *model.Example) bool {
	if src.Type != tgt.Type {
		return false
	}
	if bound, ok := m.bindings[src.Type][src.ID]; ok {
		return bound == tgt.ID
	}
	if !m.CanBind(src, tgt) {
		return false
	}
	m.bind(src, tgt)

	t, ok := m.book.Type(src.Type)
	if !ok {
		return false
	}
	for _, p := range t.Parameters {
		srcArgID, ok := src.Args[p.Name]
		if !ok {
			// Unconstrained in the pattern
			continue
		}
		tgtArgID, ok := tgt.Args[p.Name]
		if !ok {
			return false
		}
		srcArg, ok := m.source.Get(p.Type, srcArgID)
		if !ok {
			return false
		}
		tgtArg, ok := m.target.Get(p.Type, tgtArgID)
		if !ok {
			return false
		}
		if !m.Match(srcArg, tgtArg) {
			return false
		}
	}
	return true
}

func (m *Matcher) bind(src, tgt *model.Example) {
	if m.bindings[src.Type] == nil {
		m.bindings[src.Type] = make(map[string]string)
		m.reverse[src.Type] = make(map[string]string)
	}
	m.bindings[src.Type][src.ID] = tgt.ID
	m.reverse[src.Type][tgt.ID] = src.ID
}

// Clone returns a matcher with deep copies of the binding tables
func (m *Matcher) Clone() *Matcher {
	c := NewMatcher(m.book, m.source, m.target)
	for typ, ids := range m.bindings {
		c.bindings[typ] = make(map[string]string, len(ids))
		c.reverse[typ] = make(map[string]string, len(ids))
		for src, tgt := range ids {
			c.bindings[typ][src] = tgt
			c.reverse[typ][tgt] = src
		}
	}
	return c
}

// Bindings returns a copy of the current bindings: type -> source id -> target id
func (m *Matcher) Bindings() map[string]map[string]string {
	out := make(map[string]map[string]string, len(m.bindings))
	for typ, ids := range m.bindings {
		out[typ] = make(map[string]string, len(ids))
		for src, tgt := range ids {
			out[typ][src] = tgt
		}
	}
	return out
}
