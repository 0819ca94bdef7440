package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/lemma/internal/model"
)

// NewProvider creates a new LLM provider based on configuration. An empty
// provider name disables narration and returns nil.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "", "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:          c.Provider,
		Model:             c.Model,
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Timeout:           c.Timeout,
		StrictCitations:   c.StrictCitations,
		MaxTokens:         c.MaxTokens,
		RequestsPerSecond: c.RequestsPerSecond,
		HTTPProxy:         c.HTTPProxy,
		HTTPSProxy:        c.HTTPSProxy,
		NoProxy:           c.NoProxy,
	}
}
