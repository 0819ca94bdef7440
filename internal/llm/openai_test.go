package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func testRequest() NarrateRequest {
	return NarrateRequest{
		Subject: "Spec_ZZ is quasi-compact",
		Steps: []Step{
			{Theorem: "qc_of_af", Text: "Spec_ZZ is quasi-compact, by qc_of_af applied to Spec_ZZ"},
		},
	}
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "[thm:qc_of_af]") {
			t.Errorf("Expected prompt listing the allowed theorems, got %+v", req.Messages)
		}

		resp := openai.ChatCompletionResponse{
			ID:      "chatcmpl-123",
			Object:  "chat.completion",
			Created: 1677652288,
			Model:   "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Index: 0,
					Message: openai.ChatCompletionMessage{
						Role:    "assistant",
						Content: content,
					},
					FinishReason: "stop",
				},
			},
			Usage: openai.Usage{TotalTokens: 100},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIProvider_Narrate_Success(t *testing.T) {
	server := chatServer(t, "Affine schemes are quasi-compact [thm:qc_of_af], so Spec_ZZ is.")
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{
		APIKey:          "test-key",
		BaseURL:         server.URL,
		Model:           "gpt-4o-mini",
		Timeout:         5,
		StrictCitations: true,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Narrate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if !strings.Contains(resp.Text, "[thm:qc_of_af]") {
		t.Errorf("Unexpected narration: %s", resp.Text)
	}
	if len(resp.CitedTheorems) != 1 || resp.CitedTheorems[0] != "qc_of_af" {
		t.Errorf("Unexpected citations: %v", resp.CitedTheorems)
	}
	if resp.TokensUsed != 100 {
		t.Errorf("Unexpected token usage: %d", resp.TokensUsed)
	}
}

func TestOpenAIProvider_Narrate_CitationLeak(t *testing.T) {
	server := chatServer(t, "By [thm:qc_of_af] and [thm:sep_of_af] the claim follows.")
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, StrictCitations: true})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Narrate(context.Background(), testRequest())
	if !errors.Is(err, ErrCitationLeak) {
		t.Fatalf("Expected citation leak, got %v", err)
	}
	if !strings.Contains(err.Error(), "sep_of_af") {
		t.Errorf("Expected the leaked theorem in the error, got %v", err)
	}
}

func TestOpenAIProvider_Narrate_LenientCitations(t *testing.T) {
	server := chatServer(t, "By [thm:qc_of_af] and [thm:sep_of_af] the claim follows.")
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Narrate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Expected lenient mode to accept the narration, got %v", err)
	}
	if len(resp.CitedTheorems) != 2 {
		t.Errorf("Expected both citations recorded, got %v", resp.CitedTheorems)
	}
}

func TestOpenAIProvider_Narrate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "Internal Server Error", "type": "server_error"}}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.Narrate(context.Background(), testRequest()); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestOpenAIProvider_Narrate_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{malformed json`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.Narrate(context.Background(), testRequest()); err == nil {
		t.Fatal("Expected error for malformed JSON, got nil")
	}
}

func TestOpenAIProvider_Narrate_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	// The caller's deadline wins over the configured timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := provider.Narrate(ctx, testRequest()); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	down, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL + "/broken"})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if down.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

func TestNewOpenAIProvider_NoKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
