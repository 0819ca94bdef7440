package model

import "time"

// ProofStep is one theorem application in a linear proof script
type ProofStep struct {
	Proof Proof `json:"proof"` // The application

	// The fact the application is quoted for
	ObjectType string `json:"object_type"`
	Object     string `json:"object"`
	Adjective  string `json:"adjective"`
	Value      bool   `json:"value"`
}

// Report is the serializable outcome of an explore, deduce or search run
type Report struct {
	RunID       string    `json:"run_id"`
	Kind        string    `json:"kind"`         // deduce, explore or search
	Subject     string    `json:"subject"`      // Human-readable description of the query
	GeneratedAt time.Time `json:"generated_at"` // When the report was produced
	Book        BookStats `json:"book"`

	Conclusions   []ConclusionRecord   `json:"conclusions,omitempty"`
	Contradiction *ContradictionRecord `json:"contradiction,omitempty"`
	Matches       []Match              `json:"matches,omitempty"`
	Cached        bool                 `json:"cached,omitempty"` // Matches served from the result cache
	Warnings      []string             `json:"warnings,omitempty"`

	Narration *Narration `json:"narration,omitempty"` // Optional, never affects results
}

// BookStats summarizes the book a report was computed against
type BookStats struct {
	Digest     string `json:"digest"`
	Types      int    `json:"types"`
	Adjectives int    `json:"adjectives"`
	Theorems   int    `json:"theorems"`
	Examples   int    `json:"examples"`
}

// ConclusionRecord is a derived fact with its proof script
type ConclusionRecord struct {
	Type      string      `json:"type"`
	Object    string      `json:"object"`
	Name      string      `json:"name"`
	Adjective string      `json:"adjective"`
	Value     bool        `json:"value"`
	Proof     []ProofStep `json:"proof,omitempty"`
}

// ContradictionRecord holds both sides of a contradiction
type ContradictionRecord struct {
	Type      string      `json:"type"`
	Object    string      `json:"object"`
	Adjective string      `json:"adjective"`
	Theorem   string      `json:"theorem"`
	Holds     []ProofStep `json:"holds"`     // Derivation of the value already known
	Violates  []ProofStep `json:"violates"`  // Derivation of the opposite value
	Message   string      `json:"message"`
}

// Match is one search result: pattern id -> example id, per type
type Match struct {
	Bindings map[string]map[string]string `json:"bindings"`
}

// Narration is an optional LLM rendering of a proof script
type Narration struct {
	Enabled         bool     `json:"enabled"`
	Provider        string   `json:"provider,omitempty"`
	Model           string   `json:"model,omitempty"`
	StrictCitations bool     `json:"strict_citations"`
	Text            string   `json:"text,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}
