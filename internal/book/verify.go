package book

import (
	"errors"
	"fmt"
)

// Verify checks every cross reference in sorted order and freezes the book
// on success. The first violation is returned as a *ReferenceError.
func (b *Book) Verify() error {
	if b.frozen {
		return nil
	}

	// 1. Type parameters
	for _, id := range b.Types() {
		for _, p := range b.types[id].Parameters {
			if _, ok := b.types[p.Type]; !ok {
				return &ReferenceError{Kind: "type", ID: id, Reason: fmt.Sprintf("parameter '%s' refers to unknown type '%s'", p.Name, p.Type)}
			}
		}
	}

	// 2. Adjective owners
	for _, typ := range sortedKeys(b.adjectives) {
		ids := sortedKeys(b.adjectives[typ])
		if _, ok := b.types[typ]; !ok && len(ids) > 0 {
			return &ReferenceError{Kind: "adjective", Type: typ, ID: ids[0], Reason: fmt.Sprintf("refers to unknown type '%s'", typ)}
		}
	}

	// 3. Theorem subjects, paths and adjectives
	for _, typ := range sortedKeys(b.theorems) {
		for _, id := range sortedKeys(b.theorems[typ]) {
			if err := b.verifyTheorem(typ, id); err != nil {
				return err
			}
		}
	}

	// 4. Examples
	for _, typ := range b.examples.Types() {
		for _, id := range b.examples.IDs(typ) {
			if err := b.verifyExample(typ, id); err != nil {
				return err
			}
		}
	}

	b.frozen = true
	return nil
}

func (b *Book) verifyTheorem(typ, id string) error {
	thm := b.theorems[typ][id]
	refErr := func(format string, args ...any) error {
		return &ReferenceError{Kind: "theorem", Type: typ, ID: id, Reason: fmt.Sprintf(format, args...)}
	}

	if _, ok := b.types[typ]; !ok {
		return refErr("refers to unknown type '%s'", typ)
	}
	if thm.Conclusions.Count() == 0 {
		return refErr("has no conclusions")
	}
	for _, conds := range []map[string]map[string]bool{thm.Conditions, thm.Conclusions} {
		for _, path := range sortedKeys(conds) {
			pathType, err := b.ResolvePathType(typ, path)
			if err != nil {
				var pathErr *UnresolvablePathError
				if errors.As(err, &pathErr) {
					return refErr("path '%s%s': %s", thm.Subject, path, pathErr.Reason)
				}
				return refErr("%v", err)
			}
			for _, adj := range sortedKeys(conds[path]) {
				if _, ok := b.adjectives[pathType][adj]; !ok {
					return refErr("refers to unknown adjective '%s' for '%s%s' of type '%s'", adj, thm.Subject, path, pathType)
				}
			}
		}
	}
	return nil
}

func (b *Book) verifyExample(typ, id string) error {
	ex, _ := b.examples.Get(typ, id)
	refErr := func(format string, args ...any) error {
		return &ReferenceError{Kind: "example", Type: typ, ID: id, Reason: fmt.Sprintf(format, args...)}
	}

	t, ok := b.types[typ]
	if !ok {
		return refErr("refers to unknown type '%s'", typ)
	}
	for _, p := range t.Parameters {
		arg, ok := ex.Args[p.Name]
		if !ok {
			return refErr("missing argument '%s'", p.Name)
		}
		if _, ok := b.examples.Get(p.Type, arg); !ok {
			return refErr("argument '%s' refers to unknown example '%s' of type '%s'", p.Name, arg, p.Type)
		}
	}
	for _, key := range sortedKeys(ex.Args) {
		if _, ok := t.Parameter(key); !ok {
			return refErr("undeclared argument '%s'", key)
		}
	}
	for _, adj := range sortedKeys(ex.Adjectives) {
		if _, ok := b.adjectives[typ][adj]; !ok {
			return refErr("refers to unknown adjective '%s'", adj)
		}
	}
	for _, adj := range sortedKeys(ex.Proofs) {
		if _, ok := b.adjectives[typ][adj]; !ok {
			return refErr("has a proof for unknown adjective '%s'", adj)
		}
		proof := ex.Proofs[adj]
		if !proof.Structured() {
			continue
		}
		if _, ok := b.theorems[proof.Type][proof.Theorem]; !ok {
			return refErr("proof of '%s' refers to unknown theorem '%s' of type '%s'", adj, proof.Theorem, proof.Type)
		}
	}
	return nil
}
