package book

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/lemma/internal/model"
)

// Contents is the record form of a book, shaped like the data directory:
// types by id, everything else by type then id.
type Contents struct {
	Types      map[string]map[string]any            `json:"types"`
	Adjectives map[string]map[string]map[string]any `json:"adjectives"`
	Theorems   map[string]map[string]map[string]any `json:"theorems"`
	Examples   map[string]map[string]map[string]any `json:"examples"`
}

// FromContents builds an unfrozen book from serialized records, adding
// types, adjectives, theorems, then examples.
func FromContents(c Contents) (*Book, error) {
	b := New()
	for _, id := range sortedKeys(c.Types) {
		if err := b.Add(id, c.Types[id]); err != nil {
			return nil, fmt.Errorf("type '%s': %w", id, err)
		}
	}
	for _, group := range []struct {
		kind    string
		records map[string]map[string]map[string]any
	}{
		{"adjective", c.Adjectives},
		{"theorem", c.Theorems},
		{"example", c.Examples},
	} {
		for _, typ := range sortedKeys(group.records) {
			for _, id := range sortedKeys(group.records[typ]) {
				if err := b.Add(id, group.records[typ][id]); err != nil {
					return nil, fmt.Errorf("%s '%s' of type '%s': %w", group.kind, id, typ, err)
				}
			}
		}
	}
	return b, nil
}

// Serialize returns the book as records that FromContents accepts, with
// descriptions and stored proofs included.
func (b *Book) Serialize() Contents {
	c := Contents{
		Types:      make(map[string]map[string]any),
		Adjectives: make(map[string]map[string]map[string]any),
		Theorems:   make(map[string]map[string]map[string]any),
		Examples:   make(map[string]map[string]map[string]any),
	}

	for id, t := range b.types {
		data := map[string]any{"type": "type", "name": t.Name}
		if len(t.Parameters) > 0 {
			params := make([]any, 0, len(t.Parameters))
			for _, p := range t.Parameters {
				params = append(params, map[string]any{p.Name: p.Type})
			}
			data["parameters"] = params
		}
		b.withDescription(data, KindType, "", id)
		c.Types[id] = data
	}

	for typ, adjs := range b.adjectives {
		c.Adjectives[typ] = make(map[string]map[string]any, len(adjs))
		for id, adj := range adjs {
			data := map[string]any{"type": typ + " adjective", "name": adj.Name}
			if adj.Verb != nil {
				data["verb"] = []any{adj.Verb.Affirmative, adj.Verb.Negative}
			}
			b.withDescription(data, KindAdjective, typ, id)
			c.Adjectives[typ][id] = data
		}
	}

	for typ, thms := range b.theorems {
		c.Theorems[typ] = make(map[string]map[string]any, len(thms))
		for id, thm := range thms {
			data := map[string]any{
				"type":  "theorem",
				"name":  thm.Name,
				"given": thm.Type + " " + thm.Subject,
				"then":  FormatConditions(thm.Subject, thm.Conclusions),
			}
			if thm.Conditions.Count() > 0 {
				data["if"] = FormatConditions(thm.Subject, thm.Conditions)
			}
			if thm.Converse {
				data["converse"] = true
			}
			b.withDescription(data, KindTheorem, typ, id)
			c.Theorems[typ][id] = data
		}
	}

	for _, ex := range b.examples.Objects() {
		if c.Examples[ex.Type] == nil {
			c.Examples[ex.Type] = make(map[string]map[string]any)
		}
		c.Examples[ex.Type][ex.ID] = b.serializeExample(ex)
	}
	return c
}

func (b *Book) serializeExample(ex *model.Example) map[string]any {
	data := map[string]any{"type": ex.Type, "name": ex.Name}
	if len(ex.Args) > 0 {
		args := make(map[string]any, len(ex.Args))
		for k, v := range ex.Args {
			args[k] = v
		}
		data["with"] = args
	}
	if len(ex.Adjectives) > 0 {
		adjs := make(map[string]any, len(ex.Adjectives))
		for k, v := range ex.Adjectives {
			adjs[k] = v
		}
		data["adjectives"] = adjs
	}
	if len(ex.Proofs) > 0 {
		proofs := make(map[string]any, len(ex.Proofs))
		for k, p := range ex.Proofs {
			proofs[k] = SerializeProof(p)
		}
		data["proofs"] = proofs
	}
	b.withDescription(data, KindExample, ex.Type, ex.ID)
	return data
}

func (b *Book) withDescription(data map[string]any, kind Kind, typ, id string) {
	if d := b.Description(kind, typ, id); d != "" {
		data["description"] = d
	}
}

// SerializeProof returns the record form of a proof: its text, or a mapping
func SerializeProof(p model.Proof) any {
	if !p.Structured() {
		return p.Text
	}
	out := map[string]any{"type": p.Type, "theorem": p.Theorem, "subject": p.Subject}
	if p.Converse {
		out["converse"] = true
	}
	if p.Negated != nil {
		out["negated"] = map[string]any{"path": p.Negated.Path, "adjective": p.Negated.Adjective}
	}
	return out
}

// FormatConditions renders conditions as "X.path adj" / "X.path not adj"
// statements, sorted by path then adjective.
func FormatConditions(subject string, conds model.Conditions) []any {
	out := make([]any, 0, conds.Count())
	for _, path := range sortedKeys(conds) {
		for _, adj := range sortedKeys(conds[path]) {
			out = append(out, FormatStatement(subject+path, adj, conds[path][adj]))
		}
	}
	return out
}

// FormatStatement renders one condition
func FormatStatement(path, adjective string, value bool) string {
	if value {
		return path + " " + adjective
	}
	return strings.Join([]string{path, "not", adjective}, " ")
}

// Digest is the hex sha256 of the serialized book. Equal books share a digest.
func (b *Book) Digest() string {
	// json.Marshal sorts map keys, which makes the encoding canonical
	raw, err := json.Marshal(b.Serialize())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
