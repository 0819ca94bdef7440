package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/analysis"
	"github.com/ppiankov/lemma/internal/assistant"
	"github.com/ppiankov/lemma/internal/book"
	"github.com/ppiankov/lemma/internal/cache"
	"github.com/ppiankov/lemma/internal/llm"
	"github.com/ppiankov/lemma/internal/loader"
	"github.com/ppiankov/lemma/internal/model"
)

// ErrNotLoaded is returned by operations that need a book before Load
var ErrNotLoaded = errors.New("no book loaded")

// Pipeline orchestrates loading, deduction, search and narration. The
// example store is the only mutable state: DeduceStore holds the write
// lock, everything else reads.
type Pipeline struct {
	config   *model.Config
	logger   *zap.Logger
	cache    cache.Cache     // nil if disabled
	narrator *llm.Narrator   // nil if disabled
	renderer *Renderer

	mu        sync.RWMutex
	book      *book.Book
	assistant *assistant.Assistant
	analyzer  *analysis.Analyzer
	digest    string
}

// New creates a pipeline. A misconfigured LLM provider disables narration
// with a warning.
func New(cfg *model.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	var narrator *llm.Narrator
	if cfg.LLM.Provider != "" {
		n, err := llm.NewNarrator(llm.ConfigFromModel(cfg.LLM), logger)
		if err != nil {
			logger.Warn("failed to initialize LLM provider", zap.Error(err))
		} else {
			narrator = n
		}
	}

	return &Pipeline{
		config:   cfg,
		logger:   logger,
		cache:    cache.New(cfg.Cache),
		narrator: narrator,
		renderer: NewRenderer(os.Stdout),
	}
}

// Load reads the book from the summary file if configured, else from the
// data directory, and verifies it
func (p *Pipeline) Load(ctx context.Context) error {
	start := time.Now()

	// 1. Read records
	var b *book.Book
	var err error
	source := p.config.Data.Dir
	if p.config.Data.Summary != "" {
		source = p.config.Data.Summary
		b, err = loader.ReadSummary(p.config.Data.Summary)
	} else {
		b, err = loader.LoadDir(ctx, p.config.Data.Dir, p.config.Analysis.Workers)
	}
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	// 2. Check references and freeze
	if err := b.Verify(); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	p.SetBook(b)
	stats := p.Stats()
	p.logger.Info("book loaded",
		zap.String("source", source),
		zap.Int("types", stats.Types),
		zap.Int("adjectives", stats.Adjectives),
		zap.Int("theorems", stats.Theorems),
		zap.Int("examples", stats.Examples),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// SetBook installs a verified book
func (p *Pipeline) SetBook(b *book.Book) {
	asst := assistant.New(b,
		assistant.WithLogger(p.logger),
		assistant.WithSearchBudget(p.config.Search.MaxVisits))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.book = b
	p.assistant = asst
	p.analyzer = analysis.NewAnalyzer(asst, p.config.Analysis.Workers, p.logger)
	p.digest = b.Digest()
}

// Book returns the loaded book, or nil
func (p *Pipeline) Book() *book.Book {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.book
}

// Analyzer returns the analyzer for the loaded book, or nil
func (p *Pipeline) Analyzer() *analysis.Analyzer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.analyzer
}

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Stats summarizes the loaded book
func (p *Pipeline) Stats() model.BookStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.statsLocked()
}

func (p *Pipeline) statsLocked() model.BookStats {
	if p.book == nil {
		return model.BookStats{}
	}
	stats := p.book.Stats()
	stats.Digest = p.digest
	return stats
}

func (p *Pipeline) newReport(kind, subject string) *model.Report {
	return &model.Report{
		RunID:       uuid.NewString(),
		Kind:        kind,
		Subject:     subject,
		GeneratedAt: time.Now().UTC(),
	}
}

// DeduceStore deduces on the example store itself, persisting every derived
// fact with its proof. A contradiction between stored facts is reported on
// the returned report; the facts derived before it are kept.
func (p *Pipeline) DeduceStore() (*model.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.book == nil {
		return nil, ErrNotLoaded
	}

	report := p.newReport("deduce", "example store")
	store := p.book.Examples()
	conclusions, err := p.assistant.Deduce(store, assistant.DeduceOptions{})
	if err := p.record(report, store, conclusions, err); err != nil {
		return nil, err
	}

	if len(conclusions) > 0 {
		old := p.digest
		p.digest = p.book.Digest()
		p.logger.Info("example store updated",
			zap.Int("conclusions", len(conclusions)),
			zap.String("old_digest", ShortDigest(old)),
			zap.String("new_digest", ShortDigest(p.digest)))
	}
	report.Book = p.statsLocked()
	return report, nil
}

// Explore deduces on a copy of query; the query and the store are never
// modified. Objects with unbound arguments get synthesized placeholders.
func (p *Pipeline) Explore(query model.Context) (*model.Report, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.book == nil {
		return nil, ErrNotLoaded
	}

	// 1. Check and complete the query
	work, err := p.completeQuery(query)
	if err != nil {
		return nil, err
	}

	// 2. Deduce
	report := p.newReport("explore", DescribeQuery(query))
	conclusions, err := p.assistant.Deduce(work, assistant.DeduceOptions{})

	// 3. Trace conclusions and any contradiction
	if err := p.record(report, work, conclusions, err); err != nil {
		return nil, err
	}
	report.Book = p.statsLocked()
	return report, nil
}

// completeQuery validates a query and binds every missing argument to a
// synthesized placeholder "<id>.<param>"
func (p *Pipeline) completeQuery(query model.Context) (model.Context, error) {
	work := query.Clone()
	for _, obj := range work.Objects() {
		t, ok := p.book.Type(obj.Type)
		if !ok {
			continue
		}
		if obj.Args == nil {
			obj.Args = make(map[string]string)
		}
		for _, param := range t.Parameters {
			if _, bound := obj.Args[param.Name]; bound {
				continue
			}
			id := obj.ID + "." + param.Name
			sub, err := p.book.CreateContextFromType(param.Type, id)
			if err != nil {
				return nil, fmt.Errorf("complete query: %w", err)
			}
			for _, placeholder := range sub.Objects() {
				if _, exists := work.Get(placeholder.Type, placeholder.ID); !exists {
					work.Put(placeholder)
				}
			}
			obj.Args[param.Name] = id
		}
	}
	if err := p.assistant.ValidateQuery(work); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return work, nil
}

// record traces conclusions into the report and captures a contradiction.
// Errors other than contradictions are returned.
func (p *Pipeline) record(report *model.Report, ctx model.Context, conclusions []model.Conclusion, deduceErr error) error {
	var contra *assistant.ContradictionError
	if deduceErr != nil && !errors.As(deduceErr, &contra) {
		return fmt.Errorf("deduce: %w", deduceErr)
	}

	for _, c := range conclusions {
		steps, err := p.book.TraceProof(ctx, c.Object, c.Adjective)
		if err != nil {
			return fmt.Errorf("trace: %w", err)
		}
		report.Conclusions = append(report.Conclusions, model.ConclusionRecord{
			Type:      c.Object.Type,
			Object:    c.Object.ID,
			Name:      c.Object.Name,
			Adjective: c.Adjective,
			Value:     c.Value,
			Proof:     steps,
		})
	}

	if contra != nil {
		rec, err := p.contradictionRecord(ctx, contra)
		if err != nil {
			return err
		}
		report.Contradiction = rec
		p.logger.Info("contradiction found",
			zap.String("type", contra.Object.Type),
			zap.String("object", contra.Object.ID),
			zap.String("adjective", contra.Adjective),
			zap.String("theorem", contra.Theorem))
	}
	return nil
}

// contradictionRecord traces both sides: the value already known and the
// application that asserts its opposite
func (p *Pipeline) contradictionRecord(ctx model.Context, e *assistant.ContradictionError) (*model.ContradictionRecord, error) {
	holds, err := p.book.TraceProof(ctx, e.Object, e.Adjective)
	if err != nil {
		return nil, fmt.Errorf("trace known value: %w", err)
	}
	violates, err := p.book.TraceProofWithHint(ctx, e.Object, e.Adjective, e.Proof, e.Value)
	if err != nil {
		return nil, fmt.Errorf("trace asserted value: %w", err)
	}
	return &model.ContradictionRecord{
		Type:      e.Object.Type,
		Object:    e.Object.ID,
		Adjective: e.Adjective,
		Theorem:   e.Theorem,
		Holds:     holds,
		Violates:  violates,
		Message:   e.Error(),
	}, nil
}

// Search finds the stored examples matching query. Complete results are
// cached under the book digest; partial results (budget exceeded) are
// returned with a warning and never cached.
func (p *Pipeline) Search(query model.Context) (*model.Report, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.book == nil {
		return nil, ErrNotLoaded
	}

	report := p.newReport("search", DescribeQuery(query))
	report.Book = p.statsLocked()

	encoded, err := loader.EncodeQuery(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	key := cache.QueryKey(p.digest, "search", encoded)

	// 1. Cache lookup
	if p.cache != nil {
		if bindings, ok := cache.GetJSON[[]map[string]map[string]string](p.cache, key); ok {
			p.logger.Debug("search cache hit", zap.String("key", key))
			report.Matches = toMatches(bindings)
			report.Cached = true
			return report, nil
		}
	}

	// 2. Search the store
	results, err := p.assistant.Search(query)
	partial := errors.Is(err, assistant.ErrSearchBudgetExceeded)
	if err != nil && !partial {
		return nil, fmt.Errorf("search: %w", err)
	}
	bindings := make([]map[string]map[string]string, 0, len(results))
	for _, r := range results {
		bindings = append(bindings, assistant.ResultBindings(r))
	}
	report.Matches = toMatches(bindings)

	// 3. Cache complete results
	if partial {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("search budget of %d visits exceeded, results are partial", p.config.Search.MaxVisits))
	} else if p.cache != nil {
		if err := cache.SetJSON(p.cache, key, bindings, 0); err != nil {
			p.logger.Warn("failed to cache search results", zap.Error(err))
		}
	}
	return report, nil
}

func toMatches(bindings []map[string]map[string]string) []model.Match {
	matches := make([]model.Match, 0, len(bindings))
	for _, b := range bindings {
		matches = append(matches, model.Match{Bindings: b})
	}
	return matches
}

// Narrate attaches an LLM narration of the report's proof script. It never
// changes the deduction results; provider failures end up as warnings on
// the narration.
func (p *Pipeline) Narrate(ctx context.Context, report *model.Report) error {
	if p.narrator == nil || !p.narrator.IsEnabled() {
		return nil
	}

	req := p.narrationRequest(report)
	if len(req.Steps) == 0 {
		return nil
	}
	narration, err := p.narrator.Narrate(ctx, req)
	if err != nil {
		return fmt.Errorf("narrate: %w", err)
	}
	report.Narration = narration
	return nil
}

// narrationRequest flattens the report's proofs into one script, each
// application once
func (p *Pipeline) narrationRequest(report *model.Report) llm.NarrateRequest {
	b := p.Book()
	req := llm.NarrateRequest{Subject: report.Subject}

	var scripts [][]model.ProofStep
	if c := report.Contradiction; c != nil {
		req.Subject = fmt.Sprintf("%s: contradiction on '%s' of %s", report.Subject, c.Adjective, c.Object)
		scripts = append(scripts, c.Holds, c.Violates)
	}
	for _, c := range report.Conclusions {
		scripts = append(scripts, c.Proof)
	}

	seen := make(map[string]bool)
	for _, script := range scripts {
		for _, s := range script {
			key := analysis.StepKey(s.Proof)
			if seen[key] {
				continue
			}
			seen[key] = true
			req.Steps = append(req.Steps, llm.Step{Theorem: s.Proof.Theorem, Text: StepText(b, s)})
		}
	}
	return req
}

// DescribeQuery renders a query for report subjects: "f (morphism), X (scheme)"
func DescribeQuery(query model.Context) string {
	objects := query.Objects()
	if len(objects) == 0 {
		return "empty query"
	}
	parts := make([]string, 0, len(objects))
	for _, obj := range objects {
		parts = append(parts, fmt.Sprintf("%s (%s)", obj.Name, obj.Type))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// ShortDigest abbreviates a book digest for display
func ShortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

// RenderReport renders the report to the specified outputs
func (p *Pipeline) RenderReport(report *model.Report, jsonPath string, mdPath string, verbose bool) error {
	renderer := p.renderer.WithBook(p.Book())

	// Render JSON
	if jsonPath != "" {
		if err := renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	// Render Markdown
	if mdPath != "" {
		if err := renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	// Narration goes to a separate file
	if report.Narration != nil && report.Narration.Enabled && mdPath != "" {
		llmMdPath := strings.TrimSuffix(mdPath, ".md") + ".llm.md"
		if err := renderer.RenderLLMMarkdown(llm.RenderMarkdown(report.Narration), llmMdPath); err != nil {
			p.logger.Warn("failed to write narration", zap.String("path", llmMdPath), zap.Error(err))
		} else if verbose {
			fmt.Printf("✓ Wrote Narration: %s\n", llmMdPath)
		}
	}

	renderer.RenderSummary(report)
	return nil
}
