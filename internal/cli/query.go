package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lemma/internal/loader"
	"github.com/ppiankov/lemma/internal/model"
	"github.com/ppiankov/lemma/internal/pipeline"
)

var (
	outJSON      string
	outMD        string
	narrate      bool
	narrateModel string
	runTimeout   time.Duration
	writeSummary string
)

// deduceCmd represents the deduce command
var deduceCmd = &cobra.Command{
	Use:   "deduce",
	Short: "Deduce on the example store and persist derived facts",
	Long: `Deduce applies every theorem to every stored example until nothing new
follows. Derived facts are stored with the theorem application that
established them; a contradiction between stored facts is reported with
both derivations.

Example:
  lemma deduce --data ./data
  lemma deduce --write-summary book.json --md deduce.md`,
	Args: cobra.NoArgs,
	RunE: runDeduce,
}

// exploreCmd represents the explore command
var exploreCmd = &cobra.Command{
	Use:   "explore <query-file>",
	Short: "Deduce what follows from a hypothetical context",
	Long: `Explore reads a query context (YAML or JSON) and deduces on a copy of it.
The example store is never modified. Unbound arguments are filled with
placeholder objects named <id>.<parameter>.

Query format:
  scheme:
    X:
      adjectives:
        affine: true

Example:
  lemma explore query.yaml
  lemma explore query.yaml --md explore.md --narrate`,
	Args: cobra.ExactArgs(1),
	RunE: runExplore,
}

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query-file>",
	Short: "Find stored examples matching a query context",
	Long: `Search matches a query context against the example store. Each query
object binds to a distinct stored example of its type whose adjectives
and arguments agree with it.

Example:
  lemma search query.yaml
  lemma search query.yaml --json matches.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(deduceCmd, exploreCmd, searchCmd)

	for _, cmd := range []*cobra.Command{deduceCmd, exploreCmd, searchCmd} {
		cmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
		cmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
		cmd.Flags().DurationVar(&runTimeout, "timeout", 2*time.Minute, "overall timeout")
	}
	for _, cmd := range []*cobra.Command{deduceCmd, exploreCmd} {
		cmd.Flags().BoolVar(&narrate, "narrate", false, "narrate the proofs with the configured LLM provider")
		cmd.Flags().StringVar(&narrateModel, "llm-model", "", "LLM model name (overrides config)")
	}
	deduceCmd.Flags().StringVar(&writeSummary, "write-summary", "", "write the deduced book as a JSON summary")
}

// loadPipeline builds and loads a pipeline. Narration stays off unless
// requested.
func loadPipeline(ctx context.Context, withNarration bool) (*model.Config, *pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !withNarration {
		cfg.LLM.Provider = ""
	} else if narrateModel != "" {
		cfg.LLM.Model = narrateModel
	}
	if withNarration && cfg.LLM.Provider == "" {
		return nil, nil, fmt.Errorf("--narrate needs llm.provider in the config (or LEMMA_LLM_PROVIDER)")
	}

	_, p, err := setupWith(cfg)
	if err != nil {
		return nil, nil, err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Loading book...\n")
	}
	if err := p.Load(ctx); err != nil {
		return nil, nil, err
	}
	if verbose {
		stats := p.Stats()
		fmt.Fprintf(os.Stderr, "✓ Loaded %d types, %d adjectives, %d theorems, %d examples\n",
			stats.Types, stats.Adjectives, stats.Theorems, stats.Examples)
		fmt.Fprintln(os.Stderr)
	}
	return cfg, p, nil
}

func runDeduce(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	_, p, err := loadPipeline(ctx, narrate)
	if err != nil {
		return err
	}

	report, err := p.DeduceStore()
	if err != nil {
		return fmt.Errorf("deduce failed: %w", err)
	}
	if narrate {
		if err := p.Narrate(ctx, report); err != nil {
			return err
		}
	}

	if writeSummary != "" {
		if report.Contradiction != nil {
			return fmt.Errorf("not writing summary: %s", report.Contradiction.Message)
		}
		if err := loader.WriteSummary(writeSummary, p.Book()); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote summary: %s\n", writeSummary)
		}
	}

	if err := p.RenderReport(report, outJSON, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}

func runExplore(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	query, err := loader.ReadQuery(args[0])
	if err != nil {
		return err
	}
	_, p, err := loadPipeline(ctx, narrate)
	if err != nil {
		return err
	}

	report, err := p.Explore(query)
	if err != nil {
		return fmt.Errorf("explore failed: %w", err)
	}
	if narrate {
		if err := p.Narrate(ctx, report); err != nil {
			return err
		}
	}

	if err := p.RenderReport(report, outJSON, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	query, err := loader.ReadQuery(args[0])
	if err != nil {
		return err
	}
	_, p, err := loadPipeline(ctx, false)
	if err != nil {
		return err
	}

	report, err := p.Search(query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if err := p.RenderReport(report, outJSON, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}
