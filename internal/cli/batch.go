package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lemma/internal/loader"
	"github.com/ppiankov/lemma/internal/model"
	"github.com/ppiankov/lemma/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchSearch  bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Explore (or search) many query files in parallel",
	Long: `Batch processes multiple query files concurrently:
- Read query file paths from input file (one per line, # comments allowed)
- Explore each query on its own copy, in parallel
- Generate individual JSON and Markdown reports

Example:
  lemma batch queries.txt
  lemma batch queries.txt --concurrency 8 --output-dir ./reports
  lemma batch queries.txt --search`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./lemma-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchSearch, "search", false, "search the store instead of exploring")
}

type batchResult struct {
	path   string
	report *model.Report
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	mode := "explore"
	if batchSearch {
		mode = "search"
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Lemma Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Mode:         %s\n", mode)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	paths, err := worker.ReadListFile(file)
	if err != nil {
		return fmt.Errorf("read query list: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d query files\n", len(paths))

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	_, p, err := loadPipeline(ctx, false)
	if err != nil {
		return err
	}

	// Relative query paths resolve against the list file
	base := filepath.Dir(file)
	tasks := make([]worker.Task[batchResult], len(paths))
	for i, path := range paths {
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		tasks[i] = func(_ context.Context) (batchResult, error) {
			query, err := loader.ReadQuery(path)
			if err != nil {
				return batchResult{path: path}, err
			}
			var report *model.Report
			if batchSearch {
				report, err = p.Search(query)
			} else {
				report, err = p.Explore(query)
			}
			return batchResult{path: path, report: report}, err
		}
	}

	fmt.Fprintf(os.Stderr, "⚙️  Processing queries with %d workers...\n", concurrency)
	fmt.Fprintf(os.Stderr, "\n")
	results := worker.NewBatchProcessor[batchResult](concurrency).Process(ctx, tasks)

	successCount := 0
	failureCount := 0
	contradictions := 0
	renderer := p.Renderer().WithBook(p.Book())

	for i, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", paths[i], result.Error)
			continue
		}

		report := result.Value.report
		slug := sanitizeFilename(result.Value.path)
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(report, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", paths[i], err)
			continue
		}
		if err := renderer.RenderMarkdown(report, mdPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", paths[i], err)
			continue
		}

		successCount++
		switch {
		case report.Contradiction != nil:
			contradictions++
			fmt.Fprintf(os.Stderr, "✓ %s (contradiction: %s)\n", paths[i], report.Contradiction.Theorem)
		case batchSearch:
			fmt.Fprintf(os.Stderr, "✓ %s (%d matches)\n", paths[i], len(report.Matches))
		default:
			fmt.Fprintf(os.Stderr, "✓ %s (%d conclusions)\n", paths[i], len(report.Conclusions))
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:          %d queries\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:        %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Contradictions: %d\n", contradictions)
	fmt.Fprintf(os.Stderr, "  Failures:       %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:         %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename turns a query path into a report file stem
func sanitizeFilename(s string) string {
	s = filepath.Base(s)
	s = strings.TrimSuffix(s, filepath.Ext(s))

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "query"
	}
	return s
}
