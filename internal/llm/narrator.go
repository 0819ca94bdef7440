package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/model"
	"github.com/ppiankov/lemma/internal/worker"
)

// Narrator wraps a provider with rate limiting and graceful degradation: a
// failed narration becomes a warning on the report, never an error.
type Narrator struct {
	provider Provider
	config   Config
	limiter  *worker.Limiter
	logger   *zap.Logger
}

// NewNarrator creates a narrator. With no provider configured the narrator
// is disabled.
func NewNarrator(config Config, logger *zap.Logger) (*Narrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Logger == nil {
		config.Logger = logger
	}
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return newNarrator(provider, config, logger), nil
}

func newNarrator(provider Provider, config Config, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{
		provider: provider,
		config:   config,
		limiter:  worker.NewLimiter(config.RequestsPerSecond, 1),
		logger:   logger,
	}
}

// IsEnabled reports whether a provider is configured
func (n *Narrator) IsEnabled() bool {
	return n.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (n *Narrator) ProviderName() string {
	if n.provider == nil {
		return ""
	}
	return n.provider.Name()
}

// Narrate renders a proof script. It returns nil when disabled. Provider
// failures and citation leaks are reported as warnings; only a cancelled
// context is an error.
func (n *Narrator) Narrate(ctx context.Context, req NarrateRequest) (*model.Narration, error) {
	if n.provider == nil {
		return nil, nil
	}

	narration := &model.Narration{
		Enabled:         true,
		Provider:        n.provider.Name(),
		Model:           n.config.Model,
		StrictCitations: n.config.StrictCitations,
	}

	if !n.provider.IsAvailable(ctx) {
		narration.Enabled = false
		narration.Warnings = append(narration.Warnings, fmt.Sprintf("LLM provider %s is not available", n.provider.Name()))
		return narration, nil
	}

	if err := n.limiter.Wait(ctx, n.provider.Name()); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	resp, err := n.provider.Narrate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n.logger.Warn("narration failed", zap.String("provider", n.provider.Name()), zap.Error(err))
		if errors.Is(err, ErrCitationLeak) {
			narration.Warnings = append(narration.Warnings, fmt.Sprintf("Narration rejected: %v", err))
		} else {
			narration.Warnings = append(narration.Warnings, fmt.Sprintf("Narration failed: %v", err))
		}
		return narration, nil
	}

	narration.Text = resp.Text
	if resp.Model != "" {
		narration.Model = resp.Model
	}
	narration.Warnings = append(narration.Warnings,
		fmt.Sprintf("Tokens used: %d", resp.TokensUsed),
		fmt.Sprintf("Verified %d citations", len(resp.CitedTheorems)),
	)
	return narration, nil
}

// RenderMarkdown renders a narration as a standalone Markdown document
func RenderMarkdown(n *model.Narration) string {
	if n == nil || !n.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Proof Narration\n\n")
	b.WriteString("> GENERATED CONTENT. The deduction results were determined independently of the LLM; this text only restates them.\n\n")
	fmt.Fprintf(&b, "- **Provider**: %s\n", n.Provider)
	if n.Model != "" {
		fmt.Fprintf(&b, "- **Model**: %s\n", n.Model)
	}
	fmt.Fprintf(&b, "- **Strict Citations**: %t\n\n", n.StrictCitations)

	if n.Text == "" {
		b.WriteString("_No narration generated._\n")
	} else {
		b.WriteString(n.Text)
		b.WriteString("\n")
	}

	if len(n.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range n.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
