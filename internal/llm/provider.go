package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Narrate renders a proof script as prose, citing only its theorems
	Narrate(ctx context.Context, req NarrateRequest) (*NarrateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Step is one line of a proof script
type Step struct {
	Theorem string // Theorem id cited by the step
	Text    string // e.g. "Spec_ZZ is quasi-compact, by qc_of_af applied to Spec_ZZ"
}

// NarrateRequest contains the input for narration
type NarrateRequest struct {
	// Subject describes what the proof establishes
	Subject string

	// Steps is the proof script. Its theorems are the STRICT allowlist of
	// citations.
	Steps []Step

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// AllowedTheorems returns the theorem ids the script cites, in order
func (r NarrateRequest) AllowedTheorems() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range r.Steps {
		if s.Theorem != "" && !seen[s.Theorem] {
			seen[s.Theorem] = true
			ids = append(ids, s.Theorem)
		}
	}
	return ids
}

// NarrateResponse contains the narration output
type NarrateResponse struct {
	// Text is the generated narration
	Text string

	// CitedTheorems are the theorem ids the narration cites
	CitedTheorems []string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// StrictCitations rejects narrations citing theorems outside the script
	StrictCitations bool

	// MaxTokens for response generation
	MaxTokens int

	// RequestsPerSecond bounds calls per provider, 0 = unlimited
	RequestsPerSecond float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	// Logger receives availability diagnostics, nil = discard
	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return time.Duration(c.Timeout) * time.Second
	}
	return fallback
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:          "", // Disabled by default
		Timeout:           30,
		StrictCitations:   true,
		MaxTokens:         800,
		RequestsPerSecond: 1,
	}
}

// ErrCitationLeak is returned in strict mode when a narration cites a
// theorem the proof script does not use
var ErrCitationLeak = errors.New("citation leak")

const systemPrompt = "You explain deductions made from a fixed set of theorems. You restate the proof script you are given and never add facts or theorems of your own."

// BuildPrompt constructs the default narration prompt
func BuildPrompt(req NarrateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Explain the following proof in plain language.

RULES:
1. Cite a theorem as [thm:<id>], and ONLY cite theorems from this list:
%s

2. Follow the steps in order. Do not skip, merge or invent steps.
3. Do not claim anything beyond what the steps establish.

Claim: %s

Proof script:
`, joinTheorems(req.AllowedTheorems()), req.Subject)

	for i, s := range req.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Text)
	}
	b.WriteString("\nWrite one short paragraph per step.")
	return b.String()
}

func joinTheorems(ids []string) string {
	if len(ids) == 0 {
		return "(No theorems: the claim is stated directly)"
	}
	var b strings.Builder
	for i, id := range ids {
		if i >= 30 {
			fmt.Fprintf(&b, "\n... and %d more theorems", len(ids)-30)
			break
		}
		fmt.Fprintf(&b, "\n- [thm:%s]", id)
	}
	return b.String()
}

var citationPattern = regexp.MustCompile(`\[thm:([A-Za-z0-9_-]+)\]`)

// extractCitations returns the theorem ids cited in text, deduplicated
func extractCitations(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	}
	return ids
}

// checkCitations verifies every cited theorem is in the script
func checkCitations(req NarrateRequest, cited []string) error {
	allowed := make(map[string]bool)
	for _, id := range req.AllowedTheorems() {
		allowed[id] = true
	}
	for _, id := range cited {
		if !allowed[id] {
			return fmt.Errorf("%w: narration cited [thm:%s]", ErrCitationLeak, id)
		}
	}
	return nil
}

// finish extracts and, in strict mode, checks the citations of a narration
func finish(cfg Config, req NarrateRequest, text string) ([]string, error) {
	cited := extractCitations(text)
	if cfg.StrictCitations {
		if err := checkCitations(req, cited); err != nil {
			return nil, err
		}
	}
	return cited, nil
}

func maxTokens(req NarrateRequest, cfg Config) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 800
}
