package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lemma/internal/analysis"
	"github.com/ppiankov/lemma/internal/book"
	"github.com/ppiankov/lemma/internal/pipeline"
)

var (
	maxAdjectives    int
	constraintFlags  []string
	checkAdjectives  bool
	analysisTimeout  time.Duration
	analysisJSONPath string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Load the book and check its references",
	Long: `Verify loads every record and checks that types, adjectives, theorem
paths and example arguments all refer to known entries.

Example:
  lemma verify --data ./data`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
		defer cancel()

		_, p, err := loadPipeline(ctx, false)
		if err != nil {
			return err
		}
		stats := p.Stats()
		fmt.Printf("✓ Book verified: %d types, %d adjectives, %d theorems, %d examples\n",
			stats.Types, stats.Adjectives, stats.Theorems, stats.Examples)
		fmt.Printf("  Digest: %s\n", stats.Digest)
		return nil
	},
}

// questionsCmd represents the questions command
var questionsCmd = &cobra.Command{
	Use:   "questions <type>",
	Short: "List adjective combinations with no known example",
	Long: `Questions lists the combinations of up to --max adjectives that no
stored example has and no theorem rules out. A question implied by a
more specific one is dropped.

Constraints restrict the values an adjective may take:
  --constraint affine=true         only positive
  --constraint noetherian=none     never used

Example:
  lemma questions scheme --max 2
  lemma questions scheme --constraint affine=true`,
	Args: cobra.ExactArgs(1),
	RunE: runQuestions,
}

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <type>",
	Short: "Print the implication graph between adjectives",
	Long: `Graph assumes each adjective alone on a generic object and records the
adjectives that follow. Edges that factor through another adjective are
dropped; the result is printed top-down in layers.

Example:
  lemma graph scheme`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare <type> <adjective> <adjective>",
	Short: "Check whether two adjectives imply each other",
	Args:  cobra.ExactArgs(3),
	RunE:  runCompare,
}

// redundantCmd represents the redundant command
var redundantCmd = &cobra.Command{
	Use:   "redundant",
	Short: "Find theorems (and stored facts) that follow from the rest",
	Long: `Redundant re-derives each theorem from the others by assuming its
conditions on a generic object. With --adjectives it also reports stored
example facts that the other stored facts already imply.

Example:
  lemma redundant
  lemma redundant --adjectives --json redundant.json`,
	Args: cobra.NoArgs,
	RunE: runRedundant,
}

func init() {
	rootCmd.AddCommand(verifyCmd, questionsCmd, graphCmd, compareCmd, redundantCmd)

	for _, cmd := range []*cobra.Command{verifyCmd, questionsCmd, graphCmd, compareCmd, redundantCmd} {
		cmd.Flags().DurationVar(&analysisTimeout, "timeout", 10*time.Minute, "overall timeout")
	}
	for _, cmd := range []*cobra.Command{questionsCmd, graphCmd, compareCmd, redundantCmd} {
		cmd.Flags().StringVar(&analysisJSONPath, "json", "", "write results as JSON (\"-\" for stdout)")
	}

	questionsCmd.Flags().IntVar(&maxAdjectives, "max", 0, "adjectives combined per question (default from config)")
	questionsCmd.Flags().StringArrayVar(&constraintFlags, "constraint", nil, "adjective=true|false|none, repeatable")
	redundantCmd.Flags().BoolVar(&checkAdjectives, "adjectives", false, "also check stored example facts")
}

// ParseConstraints parses "adjective=true", "adjective=false",
// "adjective=none" and "adjective=true,false"
func ParseConstraints(flags []string) (analysis.Constraints, error) {
	constraints := make(analysis.Constraints)
	for _, f := range flags {
		adj, raw, ok := strings.Cut(f, "=")
		if !ok || adj == "" {
			return nil, fmt.Errorf("invalid constraint %q: expected adjective=value", f)
		}
		values := []bool{}
		if raw != "none" {
			for _, v := range strings.Split(raw, ",") {
				switch strings.TrimSpace(v) {
				case "true":
					values = append(values, true)
				case "false":
					values = append(values, false)
				default:
					return nil, fmt.Errorf("invalid constraint %q: value must be true, false or none", f)
				}
			}
		}
		if _, ok := constraints[adj]; !ok {
			constraints[adj] = []bool{}
		}
		constraints[adj] = append(constraints[adj], values...)
	}
	return constraints, nil
}

func sortedAdjectives(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func runQuestions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	constraints, err := ParseConstraints(constraintFlags)
	if err != nil {
		return err
	}
	cfg, p, err := loadPipeline(ctx, false)
	if err != nil {
		return err
	}
	n := maxAdjectives
	if n <= 0 {
		n = cfg.Analysis.MaxAdjectives
	}

	questions, err := p.Analyzer().Questions(ctx, args[0], constraints, n)
	if err != nil {
		return fmt.Errorf("questions failed: %w", err)
	}
	if analysisJSONPath != "" {
		return writeJSON(analysisJSONPath, questions)
	}

	b := p.Book()
	fmt.Printf("%d open questions about %s:\n", len(questions), args[0])
	for _, q := range questions {
		var parts []string
		for _, adj := range sortedAdjectives(q.Adjectives) {
			parts = append(parts, pipeline.Phrase(b, args[0], "X", adj, q.Adjectives[adj]))
		}
		fmt.Printf("  • %s\n", strings.Join(parts, ", "))
	}
	return nil
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	_, p, err := loadPipeline(ctx, false)
	if err != nil {
		return err
	}
	graph, err := p.Analyzer().AdjectiveGraph(args[0])
	if err != nil {
		return fmt.Errorf("graph failed: %w", err)
	}
	if analysisJSONPath != "" {
		return writeJSON(analysisJSONPath, graph)
	}

	for i, layer := range analysis.Layers(graph) {
		fmt.Printf("Layer %d:\n", i+1)
		for _, adj := range layer {
			if implied := graph[adj]; len(implied) > 0 {
				fmt.Printf("  %s ⇒ %s\n", adj, strings.Join(implied, ", "))
			} else {
				fmt.Printf("  %s\n", adj)
			}
		}
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	_, p, err := loadPipeline(ctx, false)
	if err != nil {
		return err
	}
	result, err := p.Analyzer().Compare(args[0], args[1], args[2])
	if err != nil {
		return fmt.Errorf("compare failed: %w", err)
	}
	if analysisJSONPath != "" {
		return writeJSON(analysisJSONPath, result)
	}

	b := p.Book()
	printImplication(b, result.A, result.B, result.AImpliesB)
	printImplication(b, result.B, result.A, result.BImpliesA)
	if result.Equivalent() {
		fmt.Printf("%s and %s are equivalent\n", result.A, result.B)
	}
	return nil
}

func printImplication(b *book.Book, a, c string, imp *analysis.Implication) {
	switch {
	case imp.Vacuous:
		fmt.Printf("✓ %s ⇒ %s (vacuously, %s is contradictory)\n", a, c, a)
	case imp.Holds:
		fmt.Printf("✓ %s ⇒ %s\n", a, c)
		for i, step := range imp.Proof {
			fmt.Printf("    %d. %s\n", i+1, pipeline.StepText(b, step))
		}
	default:
		fmt.Printf("✗ %s does not imply %s\n", a, c)
	}
}

func runRedundant(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	_, p, err := loadPipeline(ctx, false)
	if err != nil {
		return err
	}
	an := p.Analyzer()

	theorems, err := an.RedundancyAll(ctx)
	if err != nil {
		return fmt.Errorf("redundancy check failed: %w", err)
	}
	var adjectives []analysis.AdjectiveRedundancy
	if checkAdjectives {
		adjectives, err = an.RedundantAdjectives(ctx)
		if err != nil {
			return fmt.Errorf("redundancy check failed: %w", err)
		}
	}

	if analysisJSONPath != "" {
		return writeJSON(analysisJSONPath, map[string]any{
			"theorems":   theorems,
			"adjectives": adjectives,
		})
	}

	b := p.Book()
	count := 0
	for _, r := range theorems {
		if !r.Redundant {
			continue
		}
		count++
		if r.Vacuous {
			fmt.Printf("• %s (%s): its conditions are contradictory\n", r.Theorem, r.Type)
			continue
		}
		fmt.Printf("• %s (%s) follows from:\n", r.Theorem, r.Type)
		for i, step := range r.Proof {
			fmt.Printf("    %d. %s\n", i+1, pipeline.StepText(b, step))
		}
	}
	fmt.Printf("%d of %d theorems are redundant\n", count, len(theorems))

	if checkAdjectives {
		for _, r := range adjectives {
			fmt.Printf("• %s: %s [thm:%s]\n", r.Example, pipeline.Phrase(b, r.Type, r.Example, r.Adjective, r.Value), r.Proof.Theorem)
		}
		fmt.Printf("%d stored facts follow from the others\n", len(adjectives))
	}
	return nil
}
