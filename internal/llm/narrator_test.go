package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ppiankov/lemma/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name      string
	available bool
	response  *NarrateResponse
	err       error
	calls     int
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Narrate(ctx context.Context, req NarrateRequest) (*NarrateResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

func TestNewNarrator_DisabledProvider(t *testing.T) {
	narrator, err := NewNarrator(Config{Provider: ""}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if narrator.IsEnabled() {
		t.Error("Expected narrator to be disabled")
	}
	if narrator.ProviderName() != "" {
		t.Error("Expected empty provider name when disabled")
	}

	narration, err := narrator.Narrate(context.Background(), testRequest())
	if err != nil || narration != nil {
		t.Errorf("Expected nil narration when disabled, got %+v, %v", narration, err)
	}
}

func TestNewNarrator_UnknownProvider(t *testing.T) {
	if _, err := NewNarrator(Config{Provider: "parrot"}, nil); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestNarrator_ProviderUnavailable(t *testing.T) {
	mock := &MockProvider{name: "test-provider", available: false}
	narrator := newNarrator(mock, Config{StrictCitations: true}, nil)

	narration, err := narrator.Narrate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if narration == nil || narration.Enabled {
		t.Fatalf("Expected disabled narration with warnings, got %+v", narration)
	}
	if len(narration.Warnings) == 0 || !strings.Contains(narration.Warnings[0], "not available") {
		t.Errorf("Expected warning about unavailability, got %v", narration.Warnings)
	}
	if mock.calls != 0 {
		t.Error("Expected no narration call for an unavailable provider")
	}
}

func TestNarrator_Success(t *testing.T) {
	mock := &MockProvider{
		name:      "test-provider",
		available: true,
		response: &NarrateResponse{
			Text:          "Affine implies quasi-compact [thm:qc_of_af].",
			CitedTheorems: []string{"qc_of_af"},
			Model:         "test-model",
			TokensUsed:    150,
		},
	}
	narrator := newNarrator(mock, Config{Model: "test-model", StrictCitations: true}, nil)

	narration, err := narrator.Narrate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !narration.Enabled || narration.Provider != "test-provider" || narration.Model != "test-model" {
		t.Errorf("Unexpected narration %+v", narration)
	}
	if !narration.StrictCitations {
		t.Error("Expected strict citations to be recorded")
	}
	joined := strings.Join(narration.Warnings, "\n")
	if !strings.Contains(joined, "Tokens used: 150") || !strings.Contains(joined, "Verified 1 citations") {
		t.Errorf("Expected token and citation notes, got %v", narration.Warnings)
	}
}

func TestNarrator_ProviderError(t *testing.T) {
	mock := &MockProvider{name: "test-provider", available: true, err: errors.New("API rate limit exceeded")}
	narrator := newNarrator(mock, Config{}, nil)

	narration, err := narrator.Narrate(context.Background(), testRequest())
	if err != nil {
		t.Errorf("Expected no error (graceful degradation), got %v", err)
	}
	if narration == nil || !narration.Enabled {
		t.Fatalf("Expected enabled narration with warnings, got %+v", narration)
	}
	if len(narration.Warnings) != 1 || !strings.Contains(narration.Warnings[0], "failed") || !strings.Contains(narration.Warnings[0], "rate limit") {
		t.Errorf("Expected failure warning, got %v", narration.Warnings)
	}
}

func TestNarrator_CitationLeak(t *testing.T) {
	mock := &MockProvider{
		name:      "test-provider",
		available: true,
		err:       fmt.Errorf("%w: narration cited [thm:x]", ErrCitationLeak),
	}
	narrator := newNarrator(mock, Config{StrictCitations: true}, nil)

	narration, err := narrator.Narrate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if narration.Text != "" || !strings.Contains(narration.Warnings[0], "rejected") {
		t.Errorf("Expected rejected narration, got %+v", narration)
	}
}

func TestNarrator_CancelledContext(t *testing.T) {
	mock := &MockProvider{name: "test-provider", available: true, response: &NarrateResponse{}}
	narrator := newNarrator(mock, Config{RequestsPerSecond: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := narrator.Narrate(ctx, testRequest()); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestRenderMarkdown(t *testing.T) {
	if RenderMarkdown(nil) != "" || RenderMarkdown(&model.Narration{}) != "" {
		t.Error("Expected empty markdown when disabled")
	}

	md := RenderMarkdown(&model.Narration{
		Enabled:         true,
		Provider:        "openai",
		Model:           "gpt-4o-mini",
		StrictCitations: true,
		Text:            "Spec_ZZ is quasi-compact [thm:qc_of_af].",
		Warnings:        []string{"Tokens used: 150"},
	})
	for _, want := range []string{
		"# Proof Narration",
		"GENERATED CONTENT",
		"determined independently",
		"openai",
		"gpt-4o-mini",
		"Strict Citations**: true",
		"[thm:qc_of_af]",
		"## Notes",
		"Tokens used: 150",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Expected markdown to contain %q", want)
		}
	}

	empty := RenderMarkdown(&model.Narration{Enabled: true, Provider: "ollama"})
	if !strings.Contains(empty, "No narration generated") {
		t.Error("Expected message about missing narration")
	}
}

func TestBuildPrompt(t *testing.T) {
	req := testRequest()
	req.Steps = append(req.Steps, Step{Theorem: "qc_of_af", Text: "repeated"}, Step{Theorem: "sep_of_af", Text: "Spec_ZZ is separated"})

	prompt := BuildPrompt(req)
	for _, want := range []string{"[thm:qc_of_af]", "[thm:sep_of_af]", "Claim: Spec_ZZ is quasi-compact", "3. Spec_ZZ is separated"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
	if strings.Count(prompt, "- [thm:qc_of_af]") != 1 {
		t.Error("Expected each allowed theorem listed once")
	}

	if !strings.Contains(BuildPrompt(NarrateRequest{Subject: "x"}), "No theorems") {
		t.Error("Expected note for an empty script")
	}
}

func TestExtractCitations(t *testing.T) {
	got := extractCitations("[thm:a] then [thm:b-2], again [thm:a]; not [thm:] or [theorem:c]")
	if len(got) != 2 || got[0] != "a" || got[1] != "b-2" {
		t.Errorf("Unexpected citations %v", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.Provider != "" {
		t.Errorf("Expected provider to be empty (disabled), got '%s'", config.Provider)
	}
	if !config.StrictCitations {
		t.Error("Expected strict citations by default")
	}
	if config.Timeout <= 0 || config.MaxTokens <= 0 {
		t.Error("Expected positive timeout and max tokens")
	}
}

func TestConfigFromModel(t *testing.T) {
	c := ConfigFromModel(model.LLMConfig{Provider: "ollama", Model: "m", StrictCitations: true, RequestsPerSecond: 2, NoProxy: "localhost"})
	if c.Provider != "ollama" || c.Model != "m" || !c.StrictCitations || c.RequestsPerSecond != 2 || c.NoProxy != "localhost" {
		t.Errorf("Unexpected config %+v", c)
	}
}
