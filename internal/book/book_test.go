package book

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/lemma/internal/model"
)

// schemeBook builds the scheme/morphism schema used across the tests
func schemeBook(t *testing.T) *Book {
	t.Helper()
	b := New()
	records := []struct {
		id   string
		data map[string]any
	}{
		{"scheme", map[string]any{"type": "type"}},
		{"morphism", map[string]any{"type": "type", "parameters": []any{
			map[string]any{"source": "scheme"},
			map[string]any{"target": "scheme"},
		}}},
		{"affine", map[string]any{"type": "scheme adjective"}},
		{"quasi-compact", map[string]any{"type": "scheme adjective", "name": "quasi-compact"}},
		{"finite", map[string]any{"type": "morphism adjective", "verb": []any{"is finite over", "is not finite over"}}},
		{"qc_of_af", map[string]any{"type": "theorem", "given": "scheme X", "if": "X affine", "then": "X quasi-compact", "description": "Affine schemes are quasi-compact."}},
		{"target_af", map[string]any{"type": "theorem", "given": "morphism f", "if": []any{"f finite"}, "then": []any{"f.target affine"}}},
		{"Spec_QQ", map[string]any{"type": "scheme", "adjectives": map[string]any{"affine": true}}},
		{"Spec_ZZ", map[string]any{"type": "scheme", "adjectives": map[string]any{"affine": []any{true, " spectrum of a ring "}}}},
		{"inclusion", map[string]any{"type": "morphism", "with": map[string]any{"source": "Spec_QQ", "target": "Spec_ZZ"}}},
	}
	for _, r := range records {
		if err := b.Add(r.id, r.data); err != nil {
			t.Fatalf("add %s: %v", r.id, err)
		}
	}
	return b
}

func TestBook_Add(t *testing.T) {
	b := schemeBook(t)

	typ, ok := b.Type("morphism")
	if !ok {
		t.Fatal("expected type morphism")
	}
	want := []model.Parameter{{Name: "source", Type: "scheme"}, {Name: "target", Type: "scheme"}}
	if diff := cmp.Diff(want, typ.Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
	if typ.Name != "morphism" {
		t.Errorf("expected name to default to id, got %q", typ.Name)
	}

	adj, ok := b.Adjective("morphism", "finite")
	if !ok || adj.Verb == nil || adj.Verb.Negative != "is not finite over" {
		t.Errorf("expected verb on finite, got %+v", adj)
	}

	thm, ok := b.Theorem("morphism", "target_af")
	if !ok {
		t.Fatal("expected theorem target_af")
	}
	if v, ok := thm.Conclusions[".target"]["affine"]; !ok || !v {
		t.Errorf("expected conclusion .target affine, got %v", thm.Conclusions)
	}

	ex, ok := b.Examples().Get("scheme", "Spec_ZZ")
	if !ok {
		t.Fatal("expected example Spec_ZZ")
	}
	if ex.Proofs["affine"].Text != "spectrum of a ring" {
		t.Errorf("expected trimmed proof text, got %q", ex.Proofs["affine"].Text)
	}

	if got := b.Description(KindTheorem, "scheme", "qc_of_af"); got != "Affine schemes are quasi-compact." {
		t.Errorf("unexpected description %q", got)
	}
}

func TestBook_Add_Errors(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		data    map[string]any
		wantErr error
		wantAs  bool
	}{
		{"malformed id", "bad id", map[string]any{"type": "type"}, ErrMalformedID, false},
		{"duplicate type", "scheme", map[string]any{"type": "type"}, ErrDuplicateID, false},
		{"duplicate example", "Spec_QQ", map[string]any{"type": "scheme"}, ErrDuplicateID, false},
		{"missing type field", "x", map[string]any{"name": "x"}, nil, true},
		{"spaces in type", "x", map[string]any{"type": "a b c"}, nil, true},
		{"bad given", "t", map[string]any{"type": "theorem", "given": "scheme", "then": "X affine"}, nil, true},
		{"missing then", "t", map[string]any{"type": "theorem", "given": "scheme X"}, nil, true},
		{"bad path", "t", map[string]any{"type": "theorem", "given": "scheme X", "then": "Y affine"}, nil, true},
		{"bad statement", "t", map[string]any{"type": "theorem", "given": "scheme X", "then": "X is affine"}, nil, true},
		{"repeated adjective", "t", map[string]any{"type": "theorem", "given": "scheme X", "then": []any{"X affine", "X not affine"}}, nil, true},
		{"bad verb", "a", map[string]any{"type": "scheme adjective", "verb": []any{"is"}}, nil, true},
		{"bad adjective value", "e", map[string]any{"type": "scheme", "adjectives": map[string]any{"affine": "yes"}}, nil, true},
		{"bad structured proof", "e", map[string]any{"type": "scheme", "proofs": map[string]any{"affine": map[string]any{"theorem": "qc_of_af"}}}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := schemeBook(t)
			err := b.Add(tt.id, tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantAs {
				var structErr *StructuralError
				if !errors.As(err, &structErr) {
					t.Errorf("expected *StructuralError, got %T: %v", err, err)
				}
			}
		})
	}
}

func TestBook_DuplicateScopes(t *testing.T) {
	b := schemeBook(t)

	// Adjective ids are scoped per type
	if err := b.Add("affine", map[string]any{"type": "morphism adjective"}); err != nil {
		t.Errorf("expected affine on morphism to be accepted, got %v", err)
	}
	if err := b.Add("affine", map[string]any{"type": "scheme adjective"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestBook_Verify(t *testing.T) {
	b := schemeBook(t)
	if err := b.Verify(); err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if !b.Frozen() {
		t.Error("expected book to be frozen")
	}
	if err := b.Add("later", map[string]any{"type": "type"}); !errors.Is(err, ErrFrozen) {
		t.Errorf("expected ErrFrozen, got %v", err)
	}
}

func TestBook_Verify_ReferenceErrors(t *testing.T) {
	tests := []struct {
		name string
		id   string
		data map[string]any
	}{
		{"unknown parameter type", "sheaf", map[string]any{"type": "type", "parameters": map[string]any{"on": "space"}}},
		{"adjective of unknown type", "open", map[string]any{"type": "space adjective"}},
		{"theorem of unknown type", "t", map[string]any{"type": "theorem", "given": "space S", "then": "S open"}},
		{"theorem path", "t", map[string]any{"type": "theorem", "given": "scheme X", "then": "X.source affine"}},
		{"theorem adjective", "t", map[string]any{"type": "theorem", "given": "morphism f", "then": "f.source finite"}},
		{"missing argument", "m", map[string]any{"type": "morphism", "with": map[string]any{"source": "Spec_QQ"}}},
		{"wrong argument", "m", map[string]any{"type": "morphism", "with": map[string]any{"source": "Spec_QQ", "target": "inclusion"}}},
		{"undeclared argument", "s", map[string]any{"type": "scheme", "with": map[string]any{"base": "Spec_QQ"}}},
		{"unknown adjective", "s", map[string]any{"type": "scheme", "adjectives": map[string]any{"finite": true}}},
		{"unknown proof theorem", "s", map[string]any{"type": "scheme", "adjectives": map[string]any{"affine": true},
			"proofs": map[string]any{"affine": map[string]any{"type": "scheme", "theorem": "nope", "subject": "s"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := schemeBook(t)
			if err := b.Add(tt.id, tt.data); err != nil {
				t.Fatalf("add: %v", err)
			}
			err := b.Verify()
			var refErr *ReferenceError
			if !errors.As(err, &refErr) {
				t.Fatalf("expected *ReferenceError, got %v", err)
			}
			if b.Frozen() {
				t.Error("expected book to stay unfrozen")
			}
		})
	}
}

func TestBook_Stats(t *testing.T) {
	b := schemeBook(t)
	got := b.Stats()
	want := model.BookStats{Types: 2, Adjectives: 3, Theorems: 2, Examples: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}
