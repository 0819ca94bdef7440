package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/lemma/internal/book"
	"github.com/ppiankov/lemma/internal/model"
)

type record struct {
	id   string
	data map[string]any
}

func testRecords() []record {
	return []record{
		{"scheme", map[string]any{"type": "type"}},
		{"morphism", map[string]any{"type": "type", "parameters": []any{
			map[string]any{"source": "scheme"},
			map[string]any{"target": "scheme"},
		}}},
		{"affine", map[string]any{"type": "scheme adjective"}},
		{"quasi-compact", map[string]any{"type": "scheme adjective"}},
		{"finite", map[string]any{"type": "morphism adjective", "verb": []any{"is finite", "is not finite"}}},
		{"qc_of_af", map[string]any{"type": "theorem", "name": "affine schemes are quasi-compact",
			"given": "scheme X", "if": "X affine", "then": "X quasi-compact"}},
		{"fin_af", map[string]any{"type": "theorem", "given": "morphism f", "if": []any{"f finite", "f.target affine"}, "then": "f.source affine"}},
		{"Spec_QQ", map[string]any{"type": "scheme", "adjectives": map[string]any{"affine": true}}},
		{"Spec_ZZ", map[string]any{"type": "scheme", "adjectives": map[string]any{"affine": true}}},
		{"Spec_FF", map[string]any{"type": "scheme", "adjectives": map[string]any{"affine": false}}},
	}
}

func testBook(t *testing.T) *book.Book {
	t.Helper()
	b := book.New()
	for _, r := range testRecords() {
		if err := b.Add(r.id, r.data); err != nil {
			t.Fatalf("add %s: %v", r.id, err)
		}
	}
	if err := b.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return b
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Analysis.Workers = 2
	cfg.Cache.Dir = ""
	return cfg
}

func newTestPipeline(t *testing.T, cfg *model.Config) *Pipeline {
	t.Helper()
	p := New(cfg, nil)
	p.renderer = NewRenderer(io.Discard)
	p.SetBook(testBook(t))
	return p
}

func schemeQuery(id string, adjectives map[string]bool) model.Context {
	x := model.NewExample("scheme", id, "")
	for k, v := range adjectives {
		x.Set(k, v, model.Proof{Text: "assumption"})
	}
	ctx := make(model.Context)
	ctx.Put(x)
	return ctx
}

func TestExplore(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	query := schemeQuery("X", map[string]bool{"affine": true})

	report, err := p.Explore(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Kind != "explore" || report.RunID == "" {
		t.Errorf("unexpected report header %+v", report)
	}
	if len(report.Conclusions) != 1 {
		t.Fatalf("expected 1 conclusion, got %+v", report.Conclusions)
	}
	c := report.Conclusions[0]
	if c.Object != "X" || c.Adjective != "quasi-compact" || !c.Value {
		t.Errorf("unexpected conclusion %+v", c)
	}
	if len(c.Proof) != 1 || c.Proof[0].Proof.Theorem != "qc_of_af" {
		t.Errorf("unexpected proof %+v", c.Proof)
	}

	// The query is never modified
	x, _ := query.Get("scheme", "X")
	if _, known := x.Known("quasi-compact"); known {
		t.Error("expected query to be left untouched")
	}
	if report.Book.Digest == "" || report.Book.Examples != 3 {
		t.Errorf("unexpected book stats %+v", report.Book)
	}
}

func TestExplore_CompletesArguments(t *testing.T) {
	p := newTestPipeline(t, testConfig())

	query := schemeQuery("T", map[string]bool{"affine": true})
	f := model.NewExample("morphism", "f", "")
	f.Args["target"] = "T"
	f.Set("finite", true, model.Proof{Text: "assumption"})
	query.Put(f)

	report, err := p.Explore(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for _, c := range report.Conclusions {
		got = append(got, c.Object+" "+c.Adjective)
	}
	for _, want := range []string{"f.source affine", "f.source quasi-compact", "T quasi-compact"} {
		found := false
		for _, g := range got {
			if g == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected conclusion %q in %v", want, got)
		}
	}
	if _, ok := f.Args["source"]; ok {
		t.Error("expected query arguments to be left untouched")
	}
}

func TestExplore_InvalidQuery(t *testing.T) {
	p := newTestPipeline(t, testConfig())

	query := schemeQuery("X", nil)
	query["manifold"] = map[string]*model.Example{"M": model.NewExample("manifold", "M", "")}

	if _, err := p.Explore(query); err == nil {
		t.Error("expected error for unknown query type")
	}
}

func TestExplore_Contradiction(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	query := schemeQuery("X", map[string]bool{"affine": true, "quasi-compact": false})

	report, err := p.Explore(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := report.Contradiction
	if c == nil {
		t.Fatal("expected a contradiction")
	}
	if c.Theorem != "qc_of_af" || c.Object != "X" {
		t.Errorf("unexpected contradiction %+v", c)
	}
	if len(c.Violates) != 1 || c.Violates[0].Proof.Theorem != "qc_of_af" {
		t.Errorf("unexpected asserted side %+v", c.Violates)
	}
	if !strings.Contains(c.Message, "contradiction") {
		t.Errorf("unexpected message %q", c.Message)
	}
}

func TestNotLoaded(t *testing.T) {
	p := New(testConfig(), nil)

	if _, err := p.Explore(schemeQuery("X", nil)); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded from Explore, got %v", err)
	}
	if _, err := p.Search(schemeQuery("X", nil)); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded from Search, got %v", err)
	}
	if _, err := p.DeduceStore(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded from DeduceStore, got %v", err)
	}
}

func TestDeduceStore(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	before := p.Stats().Digest

	report, err := p.DeduceStore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Conclusions) != 2 {
		t.Fatalf("expected 2 conclusions, got %+v", report.Conclusions)
	}
	after := report.Book.Digest
	if after == before {
		t.Error("expected digest to change after persisting conclusions")
	}

	zz, _ := p.Book().Examples().Get("scheme", "Spec_ZZ")
	if v, known := zz.Known("quasi-compact"); !known || !v {
		t.Error("expected Spec_ZZ to be stored quasi-compact")
	}
	if zz.Proofs["quasi-compact"].Theorem != "qc_of_af" {
		t.Errorf("expected structured proof, got %+v", zz.Proofs["quasi-compact"])
	}

	// Nothing left to derive
	report, err = p.DeduceStore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Conclusions) != 0 || report.Book.Digest != after {
		t.Errorf("expected a stable store, got %d conclusions", len(report.Conclusions))
	}
}

func TestSearch_Cache(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	query := schemeQuery("X", map[string]bool{"affine": true})

	report, err := p.Search(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Cached {
		t.Error("expected first search to miss the cache")
	}
	want := []model.Match{
		{Bindings: map[string]map[string]string{"scheme": {"X": "Spec_QQ"}}},
		{Bindings: map[string]map[string]string{"scheme": {"X": "Spec_ZZ"}}},
	}
	if diff := cmp.Diff(want, report.Matches); diff != "" {
		t.Errorf("matches mismatch (-want +got):\n%s", diff)
	}

	report, err = p.Search(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Cached {
		t.Error("expected second search to hit the cache")
	}
	if diff := cmp.Diff(want, report.Matches); diff != "" {
		t.Errorf("cached matches mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch_BudgetExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.Search.MaxVisits = 1
	p := newTestPipeline(t, cfg)
	query := schemeQuery("X", map[string]bool{"affine": true})

	report, err := p.Search(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "partial") {
		t.Errorf("expected a partial-results warning, got %v", report.Warnings)
	}

	// Partial results are never cached
	report, err = p.Search(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Cached {
		t.Error("expected partial results not to be cached")
	}
}

func TestNarrate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model":    "llama3.1",
				"response": "X is affine, so it is quasi-compact [thm:qc_of_af].",
				"done":     true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3.1"
	cfg.LLM.BaseURL = server.URL
	p := newTestPipeline(t, cfg)

	report, err := p.Explore(schemeQuery("X", map[string]bool{"affine": true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Narrate(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := report.Narration
	if n == nil || !n.Enabled {
		t.Fatalf("expected an enabled narration, got %+v", n)
	}
	if !strings.Contains(n.Text, "[thm:qc_of_af]") {
		t.Errorf("unexpected narration %q", n.Text)
	}
	if len(report.Conclusions) != 1 {
		t.Errorf("narration must not change conclusions, got %+v", report.Conclusions)
	}
}

func TestNarrate_Disabled(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	report, err := p.Explore(schemeQuery("X", map[string]bool{"affine": true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Narrate(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Narration != nil {
		t.Errorf("expected no narration, got %+v", report.Narration)
	}
}

func TestRenderReport(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	report, err := p.Explore(schemeQuery("X", map[string]bool{"affine": true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report.Narration = &model.Narration{Enabled: true, Provider: "ollama", Text: "X is quasi-compact [thm:qc_of_af]."}

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "out", "report.json")
	mdPath := filepath.Join(dir, "out", "report.md")
	if err := p.RenderReport(report, jsonPath, mdPath, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read JSON: %v", err)
	}
	var decoded model.Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if decoded.RunID != report.RunID || len(decoded.Conclusions) != 1 {
		t.Errorf("unexpected decoded report %+v", decoded)
	}

	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("read Markdown: %v", err)
	}
	if !strings.Contains(string(md), "### X is quasi-compact") {
		t.Errorf("expected conclusion heading in:\n%s", md)
	}
	if !strings.Contains(string(md), "by affine schemes are quasi-compact [thm:qc_of_af] applied to X") {
		t.Errorf("expected proof step in:\n%s", md)
	}

	if _, err := os.Stat(filepath.Join(dir, "out", "report.llm.md")); err != nil {
		t.Errorf("expected narration file: %v", err)
	}
}

func TestPhrase(t *testing.T) {
	b := testBook(t)

	tests := []struct {
		name      string
		typ       string
		adjective string
		value     bool
		want      string
	}{
		{"plain", "scheme", "affine", true, "X is affine"},
		{"negated", "scheme", "affine", false, "X is not affine"},
		{"verb", "morphism", "finite", true, "X is finite"},
		{"negated verb", "morphism", "finite", false, "X is not finite"},
		{"unknown adjective", "scheme", "smooth", true, "X is smooth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Phrase(b, tt.typ, "X", tt.adjective, tt.value); got != tt.want {
				t.Errorf("Phrase() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := Phrase(nil, "scheme", "X", "affine", true); got != "X is affine" {
		t.Errorf("Phrase(nil) = %q", got)
	}
}

func TestStepText(t *testing.T) {
	b := testBook(t)

	step := model.ProofStep{
		Proof:      model.Proof{Type: "scheme", Theorem: "qc_of_af", Subject: "X", Negated: &model.Negation{Adjective: "quasi-compact"}},
		ObjectType: "scheme",
		Object:     "X",
		Adjective:  "affine",
		Value:      false,
	}
	want := "X is not affine, contrapositive of affine schemes are quasi-compact [thm:qc_of_af] applied to X"
	if got := StepText(b, step); got != want {
		t.Errorf("StepText() = %q, want %q", got, want)
	}

	plain := model.ProofStep{Proof: model.Proof{Text: "by definition"}, ObjectType: "scheme", Object: "X", Adjective: "affine", Value: true}
	if got := StepText(b, plain); got != "X is affine (by definition)" {
		t.Errorf("StepText() = %q", got)
	}
}

func TestShortDigest(t *testing.T) {
	tests := map[string]string{
		"":                          "",
		"abc":                       "abc",
		"0123456789ab":              "0123456789ab",
		"0123456789abcdef0123456789": "0123456789ab",
	}
	for in, want := range tests {
		if got := ShortDigest(in); got != want {
			t.Errorf("ShortDigest(%q) = %q, want %q", in, got, want)
		}
	}
}
