package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/lemma/internal/book"
	"github.com/ppiankov/lemma/internal/model"
)

// Renderer writes reports as JSON, Markdown and a short console summary
type Renderer struct {
	out  io.Writer
	book *book.Book // Optional, phrases fall back to ids without it
}

// NewRenderer creates a renderer printing summaries to out
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// WithBook returns a copy of the renderer that phrases facts with the
// display names of b
func (r *Renderer) WithBook(b *book.Book) *Renderer {
	return &Renderer{out: r.out, book: b}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as a Markdown document
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderLLMMarkdown writes an already rendered narration document
func (r *Renderer) RenderLLMMarkdown(markdown, path string) error {
	return writeFile(path, []byte(markdown))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown renders the report
func (r *Renderer) Markdown(report *model.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Lemma %s report\n\n", report.Kind)
	fmt.Fprintf(&sb, "**Subject**: %s\n\n", report.Subject)
	fmt.Fprintf(&sb, "**Run**: `%s` at %s\n\n", report.RunID, report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&sb, "**Book**: %d types, %d adjectives, %d theorems, %d examples (digest `%s`)\n\n",
		report.Book.Types, report.Book.Adjectives, report.Book.Theorems, report.Book.Examples, ShortDigest(report.Book.Digest))

	if c := report.Contradiction; c != nil {
		sb.WriteString("## Contradiction\n\n")
		fmt.Fprintf(&sb, "Theorem `%s` contradicts a known value of **%s** on `%s`.\n\n", c.Theorem, c.Adjective, c.Object)
		sb.WriteString("### Known value\n\n")
		r.writeScript(&sb, c.Holds)
		sb.WriteString("### Asserted opposite\n\n")
		r.writeScript(&sb, c.Violates)
	}

	if len(report.Conclusions) > 0 {
		sb.WriteString("## Conclusions\n\n")
		for _, c := range report.Conclusions {
			fmt.Fprintf(&sb, "### %s\n\n", Phrase(r.book, c.Type, c.Name, c.Adjective, c.Value))
			r.writeScript(&sb, c.Proof)
		}
	} else if report.Kind != "search" && report.Contradiction == nil {
		sb.WriteString("_Nothing new follows._\n\n")
	}

	if report.Kind == "search" {
		sb.WriteString("## Matches\n\n")
		if len(report.Matches) == 0 {
			sb.WriteString("_No stored example matches._\n\n")
		}
		for i, m := range report.Matches {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, formatBindings(m.Bindings))
		}
		if len(report.Matches) > 0 {
			sb.WriteString("\n")
		}
		if report.Cached {
			sb.WriteString("_Served from cache._\n\n")
		}
	}

	if len(report.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range report.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func (r *Renderer) writeScript(sb *strings.Builder, steps []model.ProofStep) {
	if len(steps) == 0 {
		sb.WriteString("_Stated in the book._\n\n")
		return
	}
	for i, s := range steps {
		fmt.Fprintf(sb, "%d. %s\n", i+1, StepText(r.book, s))
	}
	sb.WriteString("\n")
}

// RenderSummary prints a short console summary
func (r *Renderer) RenderSummary(report *model.Report) {
	w := r.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  Lemma %s: %s\n", report.Kind, report.Subject)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(w)

	switch {
	case report.Contradiction != nil:
		c := report.Contradiction
		fmt.Fprintf(w, "  ✗ Contradiction: theorem '%s' on '%s' (%s)\n", c.Theorem, c.Object, c.Adjective)
		fmt.Fprintf(w, "    Known value:       %d steps\n", len(c.Holds))
		fmt.Fprintf(w, "    Asserted opposite: %d steps\n", len(c.Violates))
	case report.Kind == "search":
		suffix := ""
		if report.Cached {
			suffix = " (cached)"
		}
		fmt.Fprintf(w, "  Matches: %d%s\n", len(report.Matches), suffix)
		for _, m := range report.Matches {
			fmt.Fprintf(w, "    • %s\n", formatBindings(m.Bindings))
		}
	}

	if len(report.Conclusions) > 0 {
		fmt.Fprintf(w, "  Conclusions: %d\n", len(report.Conclusions))
		for _, c := range report.Conclusions {
			fmt.Fprintf(w, "    • %s\n", Phrase(r.book, c.Type, c.Name, c.Adjective, c.Value))
		}
	} else if report.Kind != "search" && report.Contradiction == nil {
		fmt.Fprintln(w, "  Nothing new follows.")
	}

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  ⚠ %s\n", warning)
	}
	if n := report.Narration; n != nil && n.Enabled {
		fmt.Fprintf(w, "  Narration: %s/%s\n", n.Provider, n.Model)
	}
	fmt.Fprintln(w)
}

// formatBindings renders "X → Spec_ZZ, f → frob" with types sorted
func formatBindings(bindings map[string]map[string]string) string {
	var parts []string
	for _, typ := range sortedKeys(bindings) {
		for _, id := range sortedKeys(bindings[typ]) {
			parts = append(parts, fmt.Sprintf("%s → %s", id, bindings[typ][id]))
		}
	}
	return strings.Join(parts, ", ")
}

// Phrase renders a fact about object: the adjective's verb when it has
// one, "is <name>" / "is not <name>" otherwise
func Phrase(b *book.Book, typ, object, adjective string, value bool) string {
	if b != nil {
		if adj, ok := b.Adjective(typ, adjective); ok {
			if adj.Verb != nil {
				if value {
					return object + " " + adj.Verb.Affirmative
				}
				return object + " " + adj.Verb.Negative
			}
			adjective = adj.Name
		}
	}
	if value {
		return object + " is " + adjective
	}
	return object + " is not " + adjective
}

// StepText renders one theorem application in a proof script
func StepText(b *book.Book, step model.ProofStep) string {
	p := step.Proof
	if !p.Structured() {
		text := Phrase(b, step.ObjectType, step.Object, step.Adjective, step.Value)
		if p.Text != "" {
			text += " (" + p.Text + ")"
		}
		return text
	}

	name := p.Theorem
	if b != nil {
		if thm, ok := b.Theorem(p.Type, p.Theorem); ok && thm.Name != "" {
			name = thm.Name
		}
	}

	var how string
	switch {
	case p.Negated != nil && p.Converse:
		how = "contrapositive of the converse of"
	case p.Negated != nil:
		how = "contrapositive of"
	case p.Converse:
		how = "converse of"
	default:
		how = "by"
	}
	return fmt.Sprintf("%s, %s %s [thm:%s] applied to %s",
		Phrase(b, step.ObjectType, step.Object, step.Adjective, step.Value), how, name, p.Theorem, p.Subject)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
