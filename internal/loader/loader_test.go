package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/lemma/internal/book"
	"github.com/ppiankov/lemma/internal/model"
)

var dataFiles = map[string]string{
	"types/scheme.yaml": "type: type\n",
	"types/morphism.yaml": `type: type
parameters:
  target: scheme
  source: scheme
`,
	"adjectives/affine.yaml":        "type: scheme adjective\n",
	"adjectives/quasi-compact.yaml": "type: scheme adjective\nname: quasi-compact\n",
	"theorems/qc_of_af.yaml": `type: theorem
given: scheme X
if: X affine
then: X quasi-compact
description: Affine schemes are quasi-compact.
`,
	"examples/Spec_ZZ.yml": `type: scheme
adjectives:
  affine: [true, "by definition"]
`,
	"examples/Spec_QQ.yaml": "type: scheme\nadjectives:\n  affine: true\n",
	"examples/inclusion.yaml": `type: morphism
with:
  source: Spec_QQ
  target: Spec_ZZ
`,
	".drafts/broken.yaml": "not: [valid",
	"README.md":           "# data\n",
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoadDir(t *testing.T) {
	dir := writeTree(t, dataFiles)

	b, err := LoadDir(context.Background(), dir, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}

	morphism, ok := b.Type("morphism")
	if !ok {
		t.Fatal("expected morphism type")
	}
	want := []model.Parameter{{Name: "target", Type: "scheme"}, {Name: "source", Type: "scheme"}}
	if diff := cmp.Diff(want, morphism.Parameters); diff != "" {
		t.Errorf("parameter order mismatch (-want +got):\n%s", diff)
	}

	stats := b.Stats()
	if stats.Types != 2 || stats.Adjectives != 2 || stats.Theorems != 1 || stats.Examples != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if got := b.Description(book.KindTheorem, "scheme", "qc_of_af"); got != "Affine schemes are quasi-compact." {
		t.Errorf("unexpected description %q", got)
	}

	zz, _ := b.Examples().Get("scheme", "Spec_ZZ")
	if zz.Proofs["affine"].Text != "by definition" {
		t.Errorf("expected proof text, got %+v", zz.Proofs["affine"])
	}
}

func TestLoadDir_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "invalid yaml",
			files: map[string]string{"bad.yaml": "type: [type"},
			want:  "bad.yaml",
		},
		{
			name:  "not a mapping",
			files: map[string]string{"list.yaml": "- a\n- b\n"},
			want:  "record must be a mapping",
		},
		{
			name:  "malformed id",
			files: map[string]string{"bad id.yaml": "type: type\n"},
			want:  "malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeTree(t, tt.files)
			_, err := LoadDir(context.Background(), dir, 2)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadDir_Duplicate(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a/scheme.yaml": "type: type\n",
		"b/scheme.yaml": "type: type\n",
	})
	_, err := LoadDir(context.Background(), dir, 1)
	if !errors.Is(err, book.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestDecodeRecord(t *testing.T) {
	got, err := DecodeRecord([]byte("type: type\nparameters:\n  b: x\n  a: y\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{
		"type":       "type",
		"parameters": []any{map[string]any{"b": "x"}, map[string]any{"a": "y"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	if _, err := DecodeRecord([]byte("")); err == nil {
		t.Error("expected error for empty record")
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	b, err := LoadDir(context.Background(), writeTree(t, dataFiles), 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Verify(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out", "book.json")
	if err := WriteSummary(path, b); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := ReadSummary(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := loaded.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if loaded.Digest() != b.Digest() {
		t.Error("expected identical digest after round trip")
	}

	morphism, _ := loaded.Type("morphism")
	if morphism.Parameters[0].Name != "target" {
		t.Errorf("expected parameter order to survive, got %+v", morphism.Parameters)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the summary file, got %d entries", len(entries))
	}
}

func TestReadSummary_Errors(t *testing.T) {
	if _, err := ReadSummary(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	_ = os.WriteFile(path, []byte("{"), 0644)
	if _, err := ReadSummary(path); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestParseQuery(t *testing.T) {
	yamlQuery := `
morphism:
  f:
    with: {source: X, target: Y}
    adjectives: {finite: true}
scheme:
  X: {}
  Y:
    adjectives: {affine: false}
`
	jsonQuery := `{"morphism": {"f": {"with": {"source": "X", "target": "Y"}, "adjectives": {"finite": true}}}, "scheme": {"X": {}, "Y": {"adjectives": {"affine": false}}}}`

	fromYAML, err := ParseQuery([]byte(yamlQuery))
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	fromJSON, err := ParseQuery([]byte(jsonQuery))
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if diff := cmp.Diff(fromYAML, fromJSON); diff != "" {
		t.Errorf("yaml/json mismatch (-yaml +json):\n%s", diff)
	}

	f, ok := fromYAML.Get("morphism", "f")
	if !ok || f.Args["source"] != "X" || !f.Adjectives["finite"] {
		t.Errorf("unexpected object %+v", f)
	}

	a, _ := EncodeQuery(fromYAML)
	b, _ := EncodeQuery(fromJSON)
	if string(a) != string(b) {
		t.Errorf("expected canonical encoding, got %s and %s", a, b)
	}
	roundTrip, err := ParseQuery(a)
	if err != nil {
		t.Fatalf("parse encoded: %v", err)
	}
	if diff := cmp.Diff(fromYAML, roundTrip); diff != "" {
		t.Errorf("encode round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseQuery_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"not a mapping", "- scheme"},
		{"bad type", "'bad type': {X: {}}"},
		{"bad id", "scheme: {'bad id': {}}"},
		{"bad adjective value", "scheme: {X: {adjectives: {affine: maybe}}}"},
		{"reserved type", "theorem: {X: {}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseQuery([]byte(tt.query)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWatcher(t *testing.T) {
	dir := writeTree(t, map[string]string{"scheme.yaml": "type: type\n"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	w := NewWatcher(dir, 20*time.Millisecond, nil)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			calls.Add(1)
			changed <- struct{}{}
			return nil
		})
	}()

	// Give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644)
	if err := os.WriteFile(filepath.Join(dir, "affine.yaml"), []byte("type: scheme adjective\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("expected change notification")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
	if calls.Load() < 1 {
		t.Errorf("expected at least one call, got %d", calls.Load())
	}
}
