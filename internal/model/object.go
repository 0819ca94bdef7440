package model

// Type is a schema entry defining a class of objects and their typed parameters
type Type struct {
	ID         string      `json:"id"`                   // e.g. "morphism"
	Name       string      `json:"name"`                 // Display name, defaults to ID
	Parameters []Parameter `json:"parameters,omitempty"` // Ordered, e.g. source: scheme, target: scheme
}

// Parameter is a single named, typed argument slot of a Type
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Parameter returns the type of the named parameter
func (t *Type) Parameter(name string) (string, bool) {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p.Type, true
		}
	}
	return "", false
}

// Adjective is a named boolean property attachable to objects of one Type
type Adjective struct {
	ID   string `json:"id"`             // e.g. "closed-immersion"
	Type string `json:"type"`           // Owning type, e.g. "morphism"
	Name string `json:"name"`           // e.g. "closed immersion"
	Verb *Verb  `json:"verb,omitempty"` // Optional phrasing used instead of "is"/"is not"
}

// Verb is the affirmative/negative phrasing pair of an adjective
type Verb struct {
	Affirmative string `json:"affirmative"`
	Negative    string `json:"negative"`
}

// Conditions maps a subject-relative path to required adjective values.
// The empty path is the subject itself, ".source" its source argument.
type Conditions map[string]map[string]bool

// Count returns the number of (path, adjective) pairs
func (c Conditions) Count() int {
	n := 0
	for _, adjs := range c {
		n += len(adjs)
	}
	return n
}

// Theorem is a directional implication rule over one implicit subject
type Theorem struct {
	ID          string     `json:"id"`          // e.g. "qc_of_af"
	Name        string     `json:"name"`        // e.g. "affine schemes are quasi-compact"
	Type        string     `json:"type"`        // Subject type
	Subject     string     `json:"subject"`     // Subject placeholder name, e.g. "X"
	Conditions  Conditions `json:"conditions"`  // Hypotheses
	Conclusions Conditions `json:"conclusions"` // Consequences
	Converse    bool       `json:"converse"`    // Whether the implication also holds backwards
}

// Example is a concrete (or synthesized) object with bound arguments
type Example struct {
	ID         string            `json:"id"`   // e.g. "Spec_ZZ_to_Spec_QQ"
	Type       string            `json:"type"` // e.g. "morphism"
	Name       string            `json:"name"`
	Args       map[string]string `json:"args,omitempty"` // parameter -> example id
	Adjectives map[string]bool   `json:"adjectives,omitempty"`
	Proofs     map[string]Proof  `json:"proofs,omitempty"`
}

// NewExample creates an example with initialized maps
func NewExample(typ, id, name string) *Example {
	if name == "" {
		name = id
	}
	return &Example{
		ID:         id,
		Type:       typ,
		Name:       name,
		Args:       make(map[string]string),
		Adjectives: make(map[string]bool),
		Proofs:     make(map[string]Proof),
	}
}

// Clone returns a deep copy of the example
func (e *Example) Clone() *Example {
	c := &Example{
		ID:         e.ID,
		Type:       e.Type,
		Name:       e.Name,
		Args:       make(map[string]string, len(e.Args)),
		Adjectives: make(map[string]bool, len(e.Adjectives)),
		Proofs:     make(map[string]Proof, len(e.Proofs)),
	}
	for k, v := range e.Args {
		c.Args[k] = v
	}
	for k, v := range e.Adjectives {
		c.Adjectives[k] = v
	}
	for k, v := range e.Proofs {
		c.Proofs[k] = v.clone()
	}
	return c
}

// Known returns the value of an adjective and whether it is known
func (e *Example) Known(adjective string) (value bool, known bool) {
	value, known = e.Adjectives[adjective]
	return value, known
}

// Set asserts an adjective value together with its proof
func (e *Example) Set(adjective string, value bool, proof Proof) {
	if e.Adjectives == nil {
		e.Adjectives = make(map[string]bool)
	}
	if e.Proofs == nil {
		e.Proofs = make(map[string]Proof)
	}
	e.Adjectives[adjective] = value
	e.Proofs[adjective] = proof
}

// Proof justifies an adjective value: either free text, or the structured
// record of the theorem application that derived it.
type Proof struct {
	Text string `json:"text,omitempty"` // Free-text justification

	Type     string    `json:"type,omitempty"`    // Type of the subject the theorem was applied to
	Theorem  string    `json:"theorem,omitempty"` // Applied theorem id
	Subject  string    `json:"subject,omitempty"` // Subject id
	Converse bool      `json:"converse,omitempty"`
	Negated  *Negation `json:"negated,omitempty"` // Set when derived by the backward rule
}

// Negation names the conclusion that was already known false when the
// backward rule asserted the negation of a condition.
type Negation struct {
	Path      string `json:"path"`
	Adjective string `json:"adjective"`
}

// Structured reports whether the proof records a theorem application
func (p Proof) Structured() bool {
	return p.Theorem != ""
}

func (p Proof) clone() Proof {
	if p.Negated != nil {
		n := *p.Negated
		p.Negated = &n
	}
	return p
}

// Conclusion is a newly derived fact, not persisted
type Conclusion struct {
	Object    *Example
	Adjective string
	Value     bool
}
