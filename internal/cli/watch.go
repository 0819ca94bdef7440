package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/loader"
	"github.com/ppiankov/lemma/internal/pipeline"
)

var (
	watchDebounce time.Duration
	watchSummary  string
	watchDeduce   bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-verify the data directory whenever a record changes",
	Long: `Watch loads and verifies the data directory, then reloads it after
every settled burst of record file changes. With --write-summary the
verified (and, with --deduce, deduced) book is written after each reload.

Example:
  lemma watch --data ./data
  lemma watch --data ./data --deduce --write-summary book.json`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "quiet period before reloading")
	watchCmd.Flags().StringVar(&watchSummary, "write-summary", "", "write a JSON summary after each reload")
	watchCmd.Flags().BoolVar(&watchDeduce, "deduce", false, "deduce on the example store after each reload")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Watching only makes sense on the record files
	cfg.Data.Summary = ""
	cfg.LLM.Provider = ""

	logger, p, err := setupWith(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reload := func(ctx context.Context) error {
		if err := p.Load(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			return err
		}
		stats := p.Stats()
		if watchDeduce {
			report, err := p.DeduceStore()
			if err != nil {
				return err
			}
			if c := report.Contradiction; c != nil {
				fmt.Fprintf(os.Stderr, "✗ %s\n", c.Message)
				return fmt.Errorf("stored facts are contradictory")
			}
			stats = report.Book
			fmt.Fprintf(os.Stderr, "✓ Deduced %d new facts\n", len(report.Conclusions))
		}
		fmt.Fprintf(os.Stderr, "✓ Book verified: %d types, %d adjectives, %d theorems, %d examples (%s)\n",
			stats.Types, stats.Adjectives, stats.Theorems, stats.Examples, pipeline.ShortDigest(stats.Digest))

		if watchSummary != "" {
			if err := loader.WriteSummary(watchSummary, p.Book()); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			logger.Info("summary written", zap.String("path", watchSummary))
		}
		return nil
	}

	// A broken book at startup is reported like any later one
	_ = reload(ctx)

	w := loader.NewWatcher(cfg.Data.Dir, watchDebounce, logger)
	if err := w.Run(ctx, reload); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
